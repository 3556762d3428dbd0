package main

import (
	"flag"
	"log/slog"
	"os"
)

type flags struct {
	configPath    string
	listenAddress *string
	logLevel      slog.Level
}

func loadFlags(logger *slog.Logger) flags {
	configPath := flag.String("config", "drydock.yaml", "Path to the configuration file")
	listenAddress := flag.String("listenAddress", "", "Address to listen on, overrides the configuration file")
	logLevel := flag.String("logLevel", "info", "Log level: debug, info, warn or error")

	flag.Parse()

	var level slog.Level
	err := level.UnmarshalText([]byte(*logLevel))
	if err != nil {
		logger.Error("Flag 'logLevel' is invalid", "value", *logLevel)
		os.Exit(1)
	}

	// Nulling flags that weren't passed
	if *listenAddress == "" {
		listenAddress = nil
	}

	return flags{
		configPath:    *configPath,
		listenAddress: listenAddress,
		logLevel:      level,
	}
}
