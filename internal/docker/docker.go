package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

const domain = "dev.drydock"

var managedLabel = domain + ".managed=true"
var managedLabelName = domain + ".managed"
var appLabelName = domain + ".app"

// CommandError is a non-zero exit (or timeout) of a docker CLI
// invocation, carrying the captured stderr.
type CommandError struct {
	Op     string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("docker %s failed: %s", e.Op, e.Stderr)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Conf drives the container runtime. Builds and runs go through the
// docker CLI; the contract with it is exit code plus captured streams.
// Inspection goes through the SDK client.
type Conf struct {
	Logger       *slog.Logger
	Client       *client.Client
	BuildTimeout time.Duration
	RunTimeout   time.Duration
}

type RunOpts struct {
	// In standard Docker format <host>:<container>
	PortMappings []string
	// In standard Docker format <name>=<value>
	Labels []string
}

func (c Conf) BuildImage(ctx context.Context, name string, dir string) error {
	ctx, cancel := context.WithTimeout(ctx, c.BuildTimeout)
	defer cancel()

	stdout, stderr, err := runCommand(ctx,
		"docker", "build", dir,
		"--tag", name,
		"--label", managedLabel,
	)
	if err != nil {
		c.Logger.Error("Build failed", "image", name, "stdout", stdout.String(), "stderr", stderr.String())
		return &CommandError{Op: "build", Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}

	c.Logger.Info("Build finished", "image", name, "stdout", stdout.String(), "stderr", stderr.String())
	return nil
}

// RunContainer starts a detached container named name from image.
func (c Conf) RunContainer(ctx context.Context, imageName string, name string, opts RunOpts) error {
	ctx, cancel := context.WithTimeout(ctx, c.RunTimeout)
	defer cancel()

	var args = []string{
		"run",
		"--detach",
		"--label", managedLabel,
		"--label", appLabelName + "=" + name,
	}
	for _, portMapping := range opts.PortMappings {
		args = append(args, "-p", portMapping)
	}
	for _, label := range opts.Labels {
		args = append(args, "--label", label)
	}
	args = append(args, "--name", name)
	args = append(args, imageName)

	stdout, stderr, err := runCommand(ctx, "docker", args...)
	if err != nil {
		c.Logger.Error("Run failed", "container", name, "stdout", stdout.String(), "stderr", stderr.String())
		return &CommandError{Op: "run", Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}

	c.Logger.Info("Run finished", "container", name, "stdout", stdout.String(), "stderr", stderr.String())
	return nil
}

// RemoveContainer force-removes the named container, running or not.
func (c Conf) RemoveContainer(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, c.RunTimeout)
	defer cancel()

	_, stderr, err := runCommand(ctx, "docker", "rm", "-f", name)
	if err != nil {
		return &CommandError{Op: "rm", Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return nil
}

func runCommand(ctx context.Context, name string, arg ...string) (bytes.Buffer, bytes.Buffer, error) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, arg...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	if ctx.Err() != nil {
		err = ctx.Err()
	}
	if err == nil && cmd.ProcessState.ExitCode() != 0 {
		err = errors.New("Process returned non-zero exit code")
	}

	return stdout, stderr, err
}

// ImageExists reports whether a managed image with the given reference
// is present in the engine.
func (c Conf) ImageExists(ctx context.Context, reference string) (bool, error) {
	listFilters := filters.NewArgs(
		filters.KeyValuePair{Key: "reference", Value: reference},
		filters.KeyValuePair{Key: "label", Value: managedLabelName},
	)

	images, err := c.Client.ImageList(ctx, image.ListOptions{Filters: listFilters})
	if err != nil {
		return false, err
	}

	return len(images) > 0, nil
}

type Container struct {
	Name  string `json:"name"`
	Image string `json:"image"`
	State string `json:"state"`
}

// ListManaged returns every container carrying the managed label,
// running or not.
func (c Conf) ListManaged(ctx context.Context) ([]Container, error) {
	listFilters := filters.NewArgs(
		filters.KeyValuePair{Key: "label", Value: managedLabel},
	)

	containers, err := c.Client.ContainerList(ctx, container.ListOptions{All: true, Filters: listFilters})
	if err != nil {
		return nil, err
	}

	result := make([]Container, 0, len(containers))
	for _, item := range containers {
		name := ""
		if len(item.Names) > 0 {
			name = strings.TrimPrefix(item.Names[0], "/")
		}
		result = append(result, Container{
			Name:  name,
			Image: item.Image,
			State: item.State,
		})
	}

	return result, nil
}
