// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/invowk/imgexport/internal/config"
	"github.com/invowk/imgexport/internal/container"
)

const testManifest = `
base_image:      "scratch"
rootfs:          "rootfs"
env_path:        "/hab/bin:/bin"
exposes:         ["8080"]
primary_service: "acme/app"
packages: [
	{ident: "acme/app/1.0.0/20240101000000"},
]
users: [{name: "hab", uid: 42, gid: 42}]
groups: [{name: "hab", gid: 42, members: ["hab"]}]
`

type (
	// exportFixture is a manifest next to its populated rootfs, plus a config
	// file pointing the report and staging directories into the test's tempdir.
	exportFixture struct {
		manifest   string
		configPath string
		reportDir  string
		stagingDir string
	}

	// fakeEngine answers every call successfully unless told otherwise.
	fakeEngine struct {
		mu       sync.Mutex
		id       string
		buildErr error
		pushCode container.ExitCode
		builds   []container.BuildOptions
		pushes   []string
		removals []string
	}
)

var _ container.Engine = (*fakeEngine)(nil)

func newExportFixture(t *testing.T) exportFixture {
	t.Helper()

	dir := t.TempDir()
	rootfs := filepath.Join(dir, "rootfs")
	for _, pkg := range []string{
		"core/busybox-static/1.29.2/20190115014552",
		"core/hab/0.79.1/20190410220617",
		"acme/app/1.0.0/20240101000000",
	} {
		if err := os.MkdirAll(filepath.Join(rootfs, "hab", "pkgs", filepath.FromSlash(pkg)), 0o755); err != nil {
			t.Fatalf("failed to create package dir: %v", err)
		}
	}
	writeFile(t, filepath.Join(rootfs, "etc", "passwd"), "root:x:0:0:root:/root:/bin/sh\n")

	fx := exportFixture{
		manifest:   filepath.Join(dir, "export.cue"),
		configPath: filepath.Join(dir, "config.cue"),
		reportDir:  filepath.Join(dir, "results"),
		stagingDir: filepath.Join(dir, "staging"),
	}
	if err := os.MkdirAll(fx.stagingDir, 0o755); err != nil {
		t.Fatalf("failed to create staging dir: %v", err)
	}
	writeFile(t, fx.manifest, testManifest)
	writeFile(t, fx.configPath, fmt.Sprintf(`container_engine: "podman"
report_dir:    %q
staging_dir:   %q
init_strategy: "container"
`, fx.reportDir, fx.stagingDir))
	return fx
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// newTestApp returns an App whose engine factory hands out engine and records
// the requested engine type. Stderr is discarded: the global slog logger
// writes there and tests run in parallel.
func newTestApp(stdout io.Writer, engine *fakeEngine, requested *config.ContainerEngine) *App {
	return NewApp(Dependencies{
		Stdout: stdout,
		Stderr: io.Discard,
		Getenv: func(string) string { return "" },
		Engines: func(ce config.ContainerEngine) (container.Engine, error) {
			if requested != nil {
				*requested = ce
			}
			return engine, nil
		},
	})
}

func (f *fakeEngine) Name() string                            { return "fake" }
func (f *fakeEngine) Available() bool                         { return true }
func (f *fakeEngine) Version(context.Context) (string, error) { return "0.0.0", nil }

func (f *fakeEngine) Build(_ context.Context, opts container.BuildOptions) (container.ExitCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds = append(f.builds, opts)
	return 0, f.buildErr
}

func (f *fakeEngine) ImageID(context.Context, string) (string, error) {
	return f.id, nil
}

func (f *fakeEngine) Push(_ context.Context, opts container.PushOptions) (container.ExitCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, opts.Reference)
	return f.pushCode, nil
}

func (f *fakeEngine) RemoveImage(_ context.Context, ref string) (container.ExitCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removals = append(f.removals, ref)
	return 0, nil
}
