package deploy

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/bkralik/drydock/internal/archive"
	"github.com/bkralik/drydock/internal/config"
	"github.com/bkralik/drydock/internal/docker"
)

type fakeRuntime struct {
	buildErr  error
	removeErr error
	runErr    error

	builtImages   []string
	builtDirs     []string
	removed       []string
	runContainers []string
	runImages     []string
	runOpts       []docker.RunOpts
}

func (f *fakeRuntime) BuildImage(ctx context.Context, name string, dir string) error {
	f.builtImages = append(f.builtImages, name)
	f.builtDirs = append(f.builtDirs, dir)
	return f.buildErr
}

func (f *fakeRuntime) RemoveContainer(ctx context.Context, name string) error {
	f.removed = append(f.removed, name)
	return f.removeErr
}

func (f *fakeRuntime) RunContainer(ctx context.Context, imageName string, name string, opts docker.RunOpts) error {
	f.runImages = append(f.runImages, imageName)
	f.runContainers = append(f.runContainers, name)
	f.runOpts = append(f.runOpts, opts)
	return f.runErr
}

func newTestDeployer(t *testing.T, runtime *fakeRuntime, conf config.Config) (*Deployer, archive.Store) {
	t.Helper()
	root := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := archive.Store{
		Logger:            logger,
		UploadDir:         filepath.Join(root, "uploads"),
		BuildDir:          filepath.Join(root, "builds"),
		AllowedExtensions: conf.AllowedExtensions,
	}
	return NewDeployer(logger, store, runtime, conf), store
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for name, content := range files {
		entry, err := writer.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		_, err = entry.Write([]byte(content))
		if err != nil {
			t.Fatal(err)
		}
	}
	err := writer.Close()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func deployError(t *testing.T, err error) *Error {
	t.Helper()
	var deployErr *Error
	if !errors.As(err, &deployErr) {
		t.Fatalf("Expected *deploy.Error, got %v", err)
	}
	return deployErr
}

func TestDeployRejectsDisallowedExtension(t *testing.T) {
	runtime := &fakeRuntime{}
	deployer, store := newTestDeployer(t, runtime, config.Default())

	_, err := deployer.Deploy(context.Background(), "bad.txt", bytes.NewReader([]byte("whatever")))

	deployErr := deployError(t, err)
	if deployErr.Kind != KindInvalidInput {
		t.Fatalf("Expected KindInvalidInput, got %d", deployErr.Kind)
	}
	if !deployErr.ClientFault() {
		t.Fatal("Expected client fault")
	}
	if deployErr.Message != "Invalid file format. Only .zip files are allowed." {
		t.Fatalf("Unexpected message '%s'", deployErr.Message)
	}

	// Validation must fail before any side effect.
	if _, err := os.Stat(store.UploadDir); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("Expected no upload directory to be created")
	}
	if _, err := os.Stat(store.BuildDir); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("Expected no build directory to be created")
	}
	if len(runtime.builtImages) != 0 {
		t.Fatal("Expected no build to be invoked")
	}
}

func TestDeployRejectsEmptyFilename(t *testing.T) {
	runtime := &fakeRuntime{}
	deployer, _ := newTestDeployer(t, runtime, config.Default())

	_, err := deployer.Deploy(context.Background(), "", bytes.NewReader(nil))

	deployErr := deployError(t, err)
	if deployErr.Kind != KindInvalidInput {
		t.Fatalf("Expected KindInvalidInput, got %d", deployErr.Kind)
	}
}

func TestDeployMalformedArchive(t *testing.T) {
	runtime := &fakeRuntime{}
	deployer, _ := newTestDeployer(t, runtime, config.Default())

	_, err := deployer.Deploy(context.Background(), "demo.zip", bytes.NewReader([]byte("not a zip")))

	deployErr := deployError(t, err)
	if deployErr.Kind != KindExtraction {
		t.Fatalf("Expected KindExtraction, got %d", deployErr.Kind)
	}
	if !deployErr.ClientFault() {
		t.Fatal("Expected client fault")
	}
	if len(runtime.builtImages) != 0 {
		t.Fatal("Expected no build to be invoked")
	}
}

func TestDeployManifestNotFound(t *testing.T) {
	runtime := &fakeRuntime{}
	deployer, _ := newTestDeployer(t, runtime, config.Default())
	content := zipBytes(t, map[string]string{"index.js": "console.log('hi')"})

	_, err := deployer.Deploy(context.Background(), "noapp.zip", bytes.NewReader(content))

	deployErr := deployError(t, err)
	if deployErr.Kind != KindManifestNotFound {
		t.Fatalf("Expected KindManifestNotFound, got %d", deployErr.Kind)
	}
	if deployErr.Message != "package.json not found in the extracted ZIP." {
		t.Fatalf("Unexpected message '%s'", deployErr.Message)
	}
	if len(runtime.builtImages) != 0 || len(runtime.runContainers) != 0 {
		t.Fatal("Expected no docker command to be invoked")
	}
}

func TestDeploySuccess(t *testing.T) {
	runtime := &fakeRuntime{}
	deployer, store := newTestDeployer(t, runtime, config.Default())
	content := zipBytes(t, map[string]string{
		"sub/pkg/package.json": `{"name":"demo"}`,
		"sub/pkg/index.js":     "console.log('hi')",
	})

	result, err := deployer.Deploy(context.Background(), "demo.zip", bytes.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}

	if result.Image != "demo-image" {
		t.Fatalf("Expected image 'demo-image', got '%s'", result.Image)
	}
	if result.Container != "demo-container" {
		t.Fatalf("Expected container 'demo-container', got '%s'", result.Container)
	}
	if result.Message != "File uploaded and Docker container started successfully" {
		t.Fatalf("Unexpected message '%s'", result.Message)
	}

	expectedContext, err := filepath.Abs(filepath.Join(store.BuildDir, "demo", "sub", "pkg"))
	if err != nil {
		t.Fatal(err)
	}
	if len(runtime.builtDirs) != 1 || runtime.builtDirs[0] != expectedContext {
		t.Fatalf("Expected build context '%s', got %v", expectedContext, runtime.builtDirs)
	}

	// Default descriptor must have been written next to the manifest.
	if _, err := os.Stat(filepath.Join(expectedContext, "Dockerfile")); err != nil {
		t.Fatal("Expected generated Dockerfile in the build context")
	}

	if len(runtime.removed) != 1 || runtime.removed[0] != "demo-container" {
		t.Fatalf("Expected previous container removal, got %v", runtime.removed)
	}
	if len(runtime.runImages) != 1 || runtime.runImages[0] != "demo-image" {
		t.Fatalf("Expected run of 'demo-image', got %v", runtime.runImages)
	}
	if len(runtime.runOpts) != 1 || len(runtime.runOpts[0].PortMappings) != 1 || runtime.runOpts[0].PortMappings[0] != "3000:3000" {
		t.Fatalf("Expected port mapping 3000:3000, got %v", runtime.runOpts)
	}
}

func TestDeployNamingIgnoresManifestDepth(t *testing.T) {
	runtime := &fakeRuntime{}
	deployer, _ := newTestDeployer(t, runtime, config.Default())
	content := zipBytes(t, map[string]string{
		"a/very/deep/tree/package.json": `{}`,
	})

	result, err := deployer.Deploy(context.Background(), "App.ZIP", bytes.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}
	if result.Image != "app-image" || result.Container != "app-container" {
		t.Fatalf("Unexpected names %s/%s", result.Image, result.Container)
	}
}

func TestDeployKeepsExistingDescriptor(t *testing.T) {
	runtime := &fakeRuntime{}
	deployer, store := newTestDeployer(t, runtime, config.Default())
	custom := "FROM node:20\n"
	content := zipBytes(t, map[string]string{
		"package.json": `{}`,
		"Dockerfile":   custom,
	})

	_, err := deployer.Deploy(context.Background(), "demo.zip", bytes.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(store.BuildDir, "demo", "Dockerfile"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != custom {
		t.Fatal("Expected uploaded Dockerfile to be used unmodified")
	}
}

func TestDeployBuildFailure(t *testing.T) {
	runtime := &fakeRuntime{
		buildErr: &docker.CommandError{Op: "build", Stderr: "no space left on device", Err: errors.New("exit status 1")},
	}
	deployer, _ := newTestDeployer(t, runtime, config.Default())
	content := zipBytes(t, map[string]string{"package.json": `{}`})

	_, err := deployer.Deploy(context.Background(), "demo.zip", bytes.NewReader(content))

	deployErr := deployError(t, err)
	if deployErr.Kind != KindBuild {
		t.Fatalf("Expected KindBuild, got %d", deployErr.Kind)
	}
	if deployErr.ClientFault() {
		t.Fatal("Expected server fault")
	}
	if deployErr.Message != "Docker error: no space left on device" {
		t.Fatalf("Unexpected message '%s'", deployErr.Message)
	}
	if len(runtime.runContainers) != 0 {
		t.Fatal("Expected no deploy after failed build")
	}
}

func TestDeployRemoveFailureIsSwallowed(t *testing.T) {
	runtime := &fakeRuntime{
		removeErr: &docker.CommandError{Op: "rm", Stderr: "No such container", Err: errors.New("exit status 1")},
	}
	deployer, _ := newTestDeployer(t, runtime, config.Default())
	content := zipBytes(t, map[string]string{"package.json": `{}`})

	_, err := deployer.Deploy(context.Background(), "demo.zip", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Expected removal of missing container to be absorbed, got %v", err)
	}
	if len(runtime.runContainers) != 1 {
		t.Fatal("Expected container to be started")
	}
}

func TestDeployRunFailure(t *testing.T) {
	runtime := &fakeRuntime{
		runErr: &docker.CommandError{Op: "run", Stderr: "port is already allocated", Err: errors.New("exit status 125")},
	}
	deployer, _ := newTestDeployer(t, runtime, config.Default())
	content := zipBytes(t, map[string]string{"package.json": `{}`})

	_, err := deployer.Deploy(context.Background(), "demo.zip", bytes.NewReader(content))

	deployErr := deployError(t, err)
	if deployErr.Kind != KindDeploy {
		t.Fatalf("Expected KindDeploy, got %d", deployErr.Kind)
	}
	if deployErr.Message != "Docker error: port is already allocated" {
		t.Fatalf("Unexpected message '%s'", deployErr.Message)
	}
}

func TestDeployRemovesWorkTreeOnFailureWhenConfigured(t *testing.T) {
	conf := config.Default()
	conf.KeepFailedBuilds = false
	runtime := &fakeRuntime{
		buildErr: &docker.CommandError{Op: "build", Stderr: "boom", Err: errors.New("exit status 1")},
	}
	deployer, store := newTestDeployer(t, runtime, conf)
	content := zipBytes(t, map[string]string{"package.json": `{}`})

	_, err := deployer.Deploy(context.Background(), "demo.zip", bytes.NewReader(content))
	if err == nil {
		t.Fatal("Expected build failure")
	}

	_, err = os.Stat(filepath.Join(store.BuildDir, "demo"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatal("Expected failed work tree to be removed")
	}
}

func TestDeployKeepsWorkTreeOnFailureByDefault(t *testing.T) {
	runtime := &fakeRuntime{
		buildErr: &docker.CommandError{Op: "build", Stderr: "boom", Err: errors.New("exit status 1")},
	}
	deployer, store := newTestDeployer(t, runtime, config.Default())
	content := zipBytes(t, map[string]string{"package.json": `{}`})

	_, err := deployer.Deploy(context.Background(), "demo.zip", bytes.NewReader(content))
	if err == nil {
		t.Fatal("Expected build failure")
	}

	_, err = os.Stat(filepath.Join(store.BuildDir, "demo"))
	if err != nil {
		t.Fatal("Expected failed work tree to be retained for debugging")
	}
}
