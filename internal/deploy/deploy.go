package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bkralik/drydock/internal/archive"
	"github.com/bkralik/drydock/internal/config"
	"github.com/bkralik/drydock/internal/docker"
	"github.com/bkralik/drydock/internal/dockerfile"
	"github.com/bkralik/drydock/internal/locks"
	"github.com/bkralik/drydock/internal/manifest"
)

// ContainerRuntime is the slice of the container engine the pipeline
// needs: build an image, clear the way, start a container.
type ContainerRuntime interface {
	BuildImage(ctx context.Context, name string, dir string) error
	RemoveContainer(ctx context.Context, name string) error
	RunContainer(ctx context.Context, imageName string, name string, opts docker.RunOpts) error
}

type Result struct {
	Message   string
	Image     string
	Container string
}

// Deployer runs the upload pipeline: validate, extract, locate the
// manifest, ensure a Dockerfile, build the image, replace the container.
type Deployer struct {
	logger           *slog.Logger
	store            archive.Store
	runtime          ContainerRuntime
	locks            *locks.Keyed
	manifestName     string
	portMapping      string
	keepFailedBuilds bool
}

func NewDeployer(logger *slog.Logger, store archive.Store, runtime ContainerRuntime, conf config.Config) *Deployer {
	return &Deployer{
		logger:           logger,
		store:            store,
		runtime:          runtime,
		locks:            locks.NewKeyed(),
		manifestName:     conf.ManifestName,
		portMapping:      fmt.Sprintf("%d:%d", conf.HostPort, conf.ContainerPort),
		keepFailedBuilds: conf.KeepFailedBuilds,
	}
}

// Deploy drives the whole pipeline for one upload. Stages run in order
// and the first failure aborts the rest; there are no retries. Deploys
// sharing a base name serialize on a per-key lock so they cannot race
// on the working tree or the container identity.
func (d *Deployer) Deploy(ctx context.Context, filename string, content io.Reader) (Result, error) {
	if filename == "" {
		return Result{}, &Error{Kind: KindInvalidInput, Message: archive.ErrEmptyFilename.Error(), Err: archive.ErrEmptyFilename}
	}
	if !d.store.Allowed(filename) {
		return Result{}, &Error{Kind: KindInvalidInput, Message: archive.ErrUnsupportedFormat.Error(), Err: archive.ErrUnsupportedFormat}
	}

	key := archive.BaseName(filename)
	d.locks.Lock(key)
	defer d.locks.Unlock(key)

	savedPath, err := d.store.Save(filename, content)
	if err != nil {
		return Result{}, internalError(err)
	}

	workTree, err := d.store.Extract(savedPath, filename)
	if err != nil {
		if errors.Is(err, archive.ErrMalformedArchive) {
			return Result{}, &Error{Kind: KindExtraction, Message: err.Error(), Err: err}
		}
		return Result{}, internalError(err)
	}

	result, err := d.buildAndRun(ctx, key, workTree)
	if err != nil && !d.keepFailedBuilds {
		removeErr := os.RemoveAll(workTree)
		if removeErr != nil {
			d.logger.Error("Failed to remove work tree", "path", workTree, "err", removeErr)
		}
	}
	return result, err
}

func (d *Deployer) buildAndRun(ctx context.Context, key string, workTree string) (Result, error) {
	manifestPath, err := manifest.Locate(workTree, d.manifestName)
	if err != nil {
		if errors.Is(err, manifest.ErrNotFound) {
			message := fmt.Sprintf("%s not found in the extracted ZIP.", d.manifestName)
			return Result{}, &Error{Kind: KindManifestNotFound, Message: message, Err: err}
		}
		return Result{}, internalError(err)
	}
	buildContext := filepath.Dir(manifestPath)

	descriptorPath, created, err := dockerfile.Ensure(buildContext)
	if err != nil {
		return Result{}, internalError(err)
	}
	if created {
		d.logger.Info("Dockerfile created", "path", descriptorPath)
	}

	imageName := key + "-image"
	containerName := key + "-container"

	err = d.runtime.BuildImage(ctx, imageName, buildContext)
	if err != nil {
		return Result{}, &Error{Kind: KindBuild, Message: dockerMessage(err), Err: err}
	}

	// Best-effort cleanup of a previous deploy. "Nothing to remove" is
	// the steady state, so failures are swallowed.
	err = d.runtime.RemoveContainer(ctx, containerName)
	if err != nil {
		d.logger.Debug("Failed to remove previous container", "container", containerName, "err", err)
	}

	err = d.runtime.RunContainer(ctx, imageName, containerName, docker.RunOpts{
		PortMappings: []string{d.portMapping},
	})
	if err != nil {
		return Result{}, &Error{Kind: KindDeploy, Message: dockerMessage(err), Err: err}
	}

	d.logger.Info("App deployed", "image", imageName, "container", containerName)
	return Result{
		Message:   "File uploaded and Docker container started successfully",
		Image:     imageName,
		Container: containerName,
	}, nil
}

func dockerMessage(err error) string {
	var cmdErr *docker.CommandError
	if errors.As(err, &cmdErr) {
		return "Docker error: " + cmdErr.Stderr
	}
	return "Docker error: " + err.Error()
}
