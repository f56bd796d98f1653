// SPDX-License-Identifier: MPL-2.0

package buildroot

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/invowk/imgexport/internal/buildctx"
	"github.com/invowk/imgexport/internal/container"
)

const (
	busyboxRelease = "core/busybox-static/1.29.2/20190115014552"
	habRelease     = "core/hab/0.79.1/20190410220617"
	appRelease     = "acme/app/1.0.0/20240101000000"
)

// newRootFS lays out a minimal populated root filesystem and returns its path.
func newRootFS(t *testing.T) string {
	t.Helper()

	rootfs := filepath.Join(t.TempDir(), "rootfs")
	for _, pkg := range []string{
		busyboxRelease,
		habRelease,
		"core/hab/0.55.0/20180321220925",
		appRelease,
		"acme/runtime/2.1.0/20240101000000",
		"acme/base/3.0.0/20240101000000",
	} {
		if err := os.MkdirAll(filepath.Join(rootfs, "hab", "pkgs", filepath.FromSlash(pkg), "bin"), 0o755); err != nil {
			t.Fatalf("failed to create package dir: %v", err)
		}
	}
	writeTestFile(t, filepath.Join(rootfs, "etc", "passwd"), "root:x:0:0:root:/root:/bin/sh\n")
	writeTestFile(t, filepath.Join(rootfs, "hab", "pkgs", filepath.FromSlash(busyboxRelease), "bin", "busybox"), "#!/bin/true\n")

	if err := os.MkdirAll(filepath.Join(rootfs, "bin"), 0o755); err != nil {
		t.Fatalf("failed to create bin dir: %v", err)
	}
	if err := os.Symlink("/hab/pkgs/"+busyboxRelease+"/bin/busybox", filepath.Join(rootfs, "bin", "sh")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}
	return rootfs
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// testManifest lists dependents before their dependencies.
func testManifest(rootfs string) *buildctx.Manifest {
	return &buildctx.Manifest{
		BaseImage:      "scratch",
		RootFS:         rootfs,
		EnvPath:        "/hab/bin:/bin",
		Exposes:        []string{"8080", "8443"},
		PrimaryService: "acme/app",
		Packages: []buildctx.Package{
			{Ident: appRelease, Deps: []string{"acme/runtime"}},
			{Ident: "acme/runtime/2.1.0/20240101000000", Deps: []string{"acme/base"}},
			{Ident: "acme/base/3.0.0/20240101000000"},
		},
		Environment: map[string]string{"B": "2", "A": "1 x"},
		Users:       []buildctx.User{{Name: "hab", UID: 42, GID: 42, Home: "/", Shell: "/bin/false"}},
		Groups:      []buildctx.Group{{Name: "hab", GID: 42, Members: []string{"hab"}}},
	}
}

func newTestContext(t *testing.T, m *buildctx.Manifest) *buildctx.Context {
	t.Helper()
	bctx, err := buildctx.New(m, t.TempDir())
	if err != nil {
		t.Fatalf("buildctx.New() unexpected error: %v", err)
	}
	return bctx
}

func newTestRoot(t *testing.T, m *buildctx.Manifest) *Root {
	t.Helper()
	root, err := Stage(newTestContext(t, m), WithParentDir(t.TempDir()))
	if err != nil {
		t.Fatalf("Stage() unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = root.Destroy() })
	return root
}

// fakeEngine answers builds successfully and reports ids from a map.
type fakeEngine struct {
	mu     sync.Mutex
	ids    map[string]string
	builds []container.BuildOptions
}

var _ container.Engine = (*fakeEngine)(nil)

func (f *fakeEngine) Name() string                            { return "fake" }
func (f *fakeEngine) Available() bool                         { return true }
func (f *fakeEngine) Version(context.Context) (string, error) { return "0.0.0", nil }

func (f *fakeEngine) Build(_ context.Context, opts container.BuildOptions) (container.ExitCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds = append(f.builds, opts)
	return 0, nil
}

func (f *fakeEngine) ImageID(_ context.Context, ref string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ids[ref], nil
}

func (f *fakeEngine) Push(context.Context, container.PushOptions) (container.ExitCode, error) {
	return 0, nil
}

func (f *fakeEngine) RemoveImage(context.Context, string) (container.ExitCode, error) {
	return 0, nil
}
