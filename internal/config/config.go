package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration decodes Go duration strings ("90s", "10m") from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("Failed to parse duration `%s`: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	ListenAddress     string   `yaml:"listenAddress" validate:"required"`
	UploadDir         string   `yaml:"uploadDir" validate:"required"`
	BuildDir          string   `yaml:"buildDir" validate:"required"`
	ManifestName      string   `yaml:"manifestName" validate:"required"`
	AllowedExtensions []string `yaml:"allowedExtensions" validate:"required,min=1"`
	MaxUploadBytes    int64    `yaml:"maxUploadBytes" validate:"required,gt=0"`
	HostPort          int      `yaml:"hostPort" validate:"required,gt=0,lte=65535"`
	ContainerPort     int      `yaml:"containerPort" validate:"required,gt=0,lte=65535"`
	BuildTimeout      Duration `yaml:"buildTimeout" validate:"required"`
	RunTimeout        Duration `yaml:"runTimeout" validate:"required"`
	KeepFailedBuilds  bool     `yaml:"keepFailedBuilds"`
}

func Default() Config {
	return Config{
		ListenAddress:     ":8080",
		UploadDir:         "uploads",
		BuildDir:          "builds",
		ManifestName:      "package.json",
		AllowedExtensions: []string{"zip"},
		MaxUploadBytes:    512 * 1024 * 1024,
		HostPort:          3000,
		ContainerPort:     3000,
		BuildTimeout:      Duration(10 * time.Minute),
		RunTimeout:        Duration(time.Minute),
		KeepFailedBuilds:  true,
	}
}

// Load reads the configuration file at path on top of the defaults. A
// missing file is not an error, the defaults are used as is.
func Load(path string) (Config, error) {
	conf := Default()

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return conf, nil
		}
		return Config{}, err
	}
	defer file.Close()

	err = yaml.NewDecoder(file).Decode(&conf)
	if err != nil {
		return Config{}, fmt.Errorf("Failed to decode configuration file `%s`. Error: %s", path, err.Error())
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	err = validate.Struct(conf)
	if err != nil {
		return Config{}, err
	}

	return conf, nil
}
