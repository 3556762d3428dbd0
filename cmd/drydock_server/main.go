package main

import (
	"log/slog"
	"os"

	"github.com/bkralik/drydock/internal/archive"
	"github.com/bkralik/drydock/internal/config"
	"github.com/bkralik/drydock/internal/deploy"
	"github.com/bkralik/drydock/internal/docker"
	"github.com/bkralik/drydock/internal/httpserve"
	"github.com/bkralik/drydock/internal/httpserve/handlers"
	"github.com/docker/docker/client"
)

func main() {
	logLevel := new(slog.LevelVar)
	logger := slog.New(
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}),
	)

	flags := loadFlags(logger)
	logLevel.Set(flags.logLevel)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		logger.Error("Failed to load configuration", "path", flags.configPath, "err", err)
		os.Exit(1)
	}
	if flags.listenAddress != nil {
		conf.ListenAddress = *flags.listenAddress
	}

	for _, dir := range []string{conf.UploadDir, conf.BuildDir} {
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			logger.Error("Failed to create directory", "path", dir, "err", err)
			os.Exit(1)
		}
	}

	dockerClient, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		logger.Error("Failed to initialize docker client", "err", err)
		os.Exit(1)
	}

	dockerConf := docker.Conf{
		Logger:       logger,
		Client:       dockerClient,
		BuildTimeout: conf.BuildTimeout.Std(),
		RunTimeout:   conf.RunTimeout.Std(),
	}
	store := archive.Store{
		Logger:            logger,
		UploadDir:         conf.UploadDir,
		BuildDir:          conf.BuildDir,
		AllowedExtensions: conf.AllowedExtensions,
	}
	deployer := deploy.NewDeployer(logger, store, dockerConf, conf)

	e := httpserve.New(&handlers.App{
		Logger:         logger,
		Deployer:       deployer,
		Containers:     dockerConf,
		Images:         dockerConf,
		MaxUploadBytes: conf.MaxUploadBytes,
	})

	logger.Info("Server starting", "address", conf.ListenAddress)
	err = e.Start(conf.ListenAddress)
	if err != nil {
		logger.Error("Server stopped", "err", err)
		os.Exit(1)
	}
}
