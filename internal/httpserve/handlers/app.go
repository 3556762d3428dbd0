package handlers

import (
	"context"
	"io"
	"log/slog"

	"github.com/bkralik/drydock/internal/deploy"
	"github.com/bkralik/drydock/internal/docker"
)

type Deployer interface {
	Deploy(ctx context.Context, filename string, content io.Reader) (deploy.Result, error)
}

type ContainerLister interface {
	ListManaged(ctx context.Context) ([]docker.Container, error)
}

type ImageChecker interface {
	ImageExists(ctx context.Context, reference string) (bool, error)
}

// App bundles what the handlers need from the rest of the server.
type App struct {
	Logger         *slog.Logger
	Deployer       Deployer
	Containers     ContainerLister
	Images         ImageChecker
	MaxUploadBytes int64
}

type errorResponse struct {
	Error string `json:"error"`
}
