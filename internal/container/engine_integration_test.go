// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const registryPort = "5000/tcp"

// checkTestcontainersAvailable reports whether testcontainers can reach a
// container provider. Provider discovery can panic on misconfigured hosts.
func checkTestcontainersAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer provider.Close()
	return true
}

// TestEngine_Integration runs the image lifecycle against the engines
// installed on the host. A throwaway registry:2 container receives the pushes.
func TestEngine_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	engine, err := AutoDetectEngine()
	if err != nil {
		t.Skipf("skipping container integration tests: no container engine available: %v", err)
	}
	if !engine.Available() {
		t.Skip("skipping container integration tests: container engine not available")
	}
	if !checkTestcontainersAvailable() {
		t.Skip("skipping container integration tests: testcontainers provider not available")
	}

	registry := startRegistry(t)

	// podman refuses plain-HTTP registries unless they are marked insecure.
	registriesConf := filepath.Join(t.TempDir(), "registries.conf")
	writeTestFile(t, registriesConf, fmt.Sprintf("[[registry]]\nlocation = %q\ninsecure = true\n", registry))
	t.Setenv("CONTAINERS_REGISTRIES_CONF", registriesConf)

	engines := []Engine{NewDockerEngine(), NewPodmanEngine()}
	for _, e := range engines {
		t.Run(e.Name(), func(t *testing.T) {
			if !e.Available() {
				t.Skipf("%s is not available", e.Name())
			}
			testEngineLifecycle(t, e, registry)
		})
	}
}

// startRegistry starts a registry:2 container and returns its host:port.
func startRegistry(t *testing.T) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "registry:2",
			ExposedPorts: []string{registryPort},
			WaitingFor:   wait.ForHTTP("/v2/").WithPort(registryPort).WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, c)
	if err != nil {
		t.Fatalf("failed to start registry container: %v", err)
	}

	endpoint, err := c.PortEndpoint(ctx, registryPort, "")
	if err != nil {
		t.Fatalf("failed to resolve registry endpoint: %v", err)
	}
	return endpoint
}

func testEngineLifecycle(t *testing.T, engine Engine, registry string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	contextDir := t.TempDir()
	writeTestFile(t, filepath.Join(contextDir, "Dockerfile"), "FROM scratch\nCOPY hello.txt /hello.txt\n")
	writeTestFile(t, filepath.Join(contextDir, "hello.txt"), "hello\n")

	local := fmt.Sprintf("imgexport-it/scratch:%s-%d", engine.Name(), time.Now().UnixNano())
	remote := fmt.Sprintf("%s/imgexport-it/scratch:%s", registry, engine.Name())

	var stderr bytes.Buffer
	code, err := engine.Build(ctx, BuildOptions{
		ContextDir: contextDir,
		Tags:       []string{local, remote},
		Stdout:     &stderr,
		Stderr:     &stderr,
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !code.IsSuccess() {
		t.Fatalf("Build() exit code = %d, output: %s", code, stderr.String())
	}

	id, err := engine.ImageID(ctx, local)
	if err != nil {
		t.Fatalf("ImageID() error = %v", err)
	}
	if id == "" {
		t.Fatalf("ImageID(%q) returned no id after a successful build", local)
	}

	// The registry runs without auth; an empty auths map is a valid credential file.
	configDir := t.TempDir()
	writeTestFile(t, filepath.Join(configDir, "config.json"), `{"auths":{}}`)

	stderr.Reset()
	code, err = engine.Push(ctx, PushOptions{
		ConfigDir: configDir,
		Reference: remote,
		Stdout:    &stderr,
		Stderr:    &stderr,
	})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if !code.IsSuccess() {
		t.Fatalf("Push() exit code = %d, output: %s", code, stderr.String())
	}

	for _, ref := range []string{remote, local} {
		code, err = engine.RemoveImage(ctx, ref)
		if err != nil {
			t.Fatalf("RemoveImage(%q) error = %v", ref, err)
		}
		if !code.IsSuccess() {
			t.Errorf("RemoveImage(%q) exit code = %d, want 0", ref, code)
		}
	}

	id, err = engine.ImageID(ctx, local)
	if err != nil {
		t.Fatalf("ImageID() after remove error = %v", err)
	}
	if id != "" {
		t.Errorf("ImageID(%q) = %q after RemoveImage, want empty", local, id)
	}
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
