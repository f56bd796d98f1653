// SPDX-License-Identifier: MPL-2.0

package image

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/subosito/gotenv"

	"github.com/invowk/imgexport/internal/ui"
)

func buildTestImage(t *testing.T, engine *fakeEngine, rec ui.Reporter, tags ...string) *Image {
	t.Helper()

	req := NewRequest(t.TempDir(), "core/redis")
	for _, tag := range tags {
		req = req.WithTag(tag)
	}
	engine.ids[req.idReference()] = "i"

	img, err := NewBuilder(engine, WithReporter(rec)).Build(context.Background(), req)
	if err != nil {
		t.Fatalf("Build() unexpected error: %v", err)
	}
	return img
}

func TestImage_Push(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	rec := ui.NewRecorder()
	img := buildTestImage(t, engine, rec, "a", "b", "c")

	if err := img.Push(context.Background(), Credentials{Token: "T"}, ""); err != nil {
		t.Fatalf("Push() unexpected error: %v", err)
	}

	if got := engine.pushedRefs(); !slices.Equal(got, []string{"core/redis:a", "core/redis:b", "core/redis:c"}) {
		t.Errorf("pushed = %v", got)
	}
	for _, p := range engine.pushes {
		if p.ConfigDir != img.Workdir() {
			t.Errorf("push ConfigDir = %q, want workdir %q", p.ConfigDir, img.Workdir())
		}
	}
	if _, err := os.Stat(filepath.Join(img.Workdir(), ConfigFileName)); err != nil {
		t.Errorf("auth file should exist before pushing: %v", err)
	}
}

func TestImage_Push_FailFast(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.pushCodes["core/redis:b"] = 1
	rec := ui.NewRecorder()
	img := buildTestImage(t, engine, rec, "a", "b", "c")

	err := img.Push(context.Background(), Credentials{Token: "T"}, "")

	var pushErr *PushImageFailedError
	if !errors.As(err, &pushErr) {
		t.Fatalf("expected PushImageFailedError, got %v", err)
	}
	if pushErr.Reference != "core/redis:b" || pushErr.ExitCode != 1 {
		t.Errorf("PushImageFailedError = %+v", pushErr)
	}
	if !errors.Is(err, ErrPushImageFailed) {
		t.Error("error should unwrap to ErrPushImageFailed")
	}

	if got := engine.pushedRefs(); !slices.Equal(got, []string{"core/redis:a", "core/redis:b"}) {
		t.Errorf("pushed = %v, c must never be attempted", got)
	}

	var uploads []string
	for _, s := range rec.Statuses() {
		if strings.HasPrefix(s, "Upload") {
			uploads = append(uploads, s)
		}
	}
	want := []string{
		"Uploading image 'core/redis:a' to remote registry",
		"Uploaded image 'core/redis:a'",
		"Uploading image 'core/redis:b' to remote registry",
	}
	if !slices.Equal(uploads, want) {
		t.Errorf("upload statuses = %v, want %v", uploads, want)
	}
}

func TestImage_Push_AuthWriteFailureAborts(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	img := buildTestImage(t, engine, ui.Nop(), "a")

	// A directory in place of config.json makes the write fail.
	if err := os.Mkdir(filepath.Join(img.Workdir(), ConfigFileName), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := img.Push(context.Background(), Credentials{Token: "T"}, ""); err == nil {
		t.Fatal("expected error when the auth file cannot be written")
	}
	if len(engine.pushes) != 0 {
		t.Errorf("no push should run, got %v", engine.pushedRefs())
	}
}

func TestImage_CreateDockerConfigFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		registry string
		want     string
	}{
		{
			name: "default registry",
			want: `{"auths":{"https://index.docker.io/v1/":{"auth":"T"}}}`,
		},
		{
			name:     "custom registry",
			registry: "registry.example.com",
			want:     `{"auths":{"registry.example.com":{"auth":"T"}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			img := buildTestImage(t, newFakeEngine(), ui.Nop())
			if err := img.CreateDockerConfigFile(Credentials{Token: "T"}, tt.registry); err != nil {
				t.Fatalf("CreateDockerConfigFile() unexpected error: %v", err)
			}

			got, err := os.ReadFile(filepath.Join(img.Workdir(), ConfigFileName))
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Errorf("config.json = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestImage_CreateDockerConfigFile_Overwrites(t *testing.T) {
	t.Parallel()

	img := buildTestImage(t, newFakeEngine(), ui.Nop())
	path := filepath.Join(img.Workdir(), ConfigFileName)
	if err := os.WriteFile(path, []byte(`{"auths":{"old":{"auth":"a-much-longer-previous-token"}}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := img.CreateDockerConfigFile(Credentials{Token: "T"}, ""); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != `{"auths":{"https://index.docker.io/v1/":{"auth":"T"}}}` {
		t.Errorf("config.json was not truncated: %s", got)
	}
}

func TestImage_CreateReport(t *testing.T) {
	t.Parallel()

	img := buildTestImage(t, newFakeEngine(), ui.Nop(), "a", "b")
	dst := filepath.Join(t.TempDir(), "results", "nested")

	if err := img.CreateReport(dst); err != nil {
		t.Fatalf("CreateReport() unexpected error: %v", err)
	}

	f, err := os.Open(filepath.Join(dst, ReportFileName))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	env, err := gotenv.StrictParse(f)
	if err != nil {
		t.Fatalf("report is not a valid env file: %v", err)
	}

	want := map[string]string{
		"id":        "i",
		"name":      "core/redis",
		"tags":      "a,b",
		"name_tags": "core/redis:a,core/redis:b",
	}
	for k, v := range want {
		if env[k] != v {
			t.Errorf("%s = %q, want %q", k, env[k], v)
		}
	}
}

func TestImage_CreateReport_NoTags(t *testing.T) {
	t.Parallel()

	img := buildTestImage(t, newFakeEngine(), ui.Nop())
	dst := t.TempDir()
	if err := img.CreateReport(dst); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dst, ReportFileName))
	if err != nil {
		t.Fatal(err)
	}
	want := "id=i\nname=core/redis\ntags=\nname_tags=\n"
	if string(data) != want {
		t.Errorf("report = %q, want %q", data, want)
	}
}

func TestImage_Rm(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	rec := ui.NewRecorder()
	img := buildTestImage(t, engine, rec, "a", "b")

	if err := img.Rm(context.Background()); err != nil {
		t.Fatalf("Rm() unexpected error: %v", err)
	}
	if !slices.Equal(engine.removes, []string{"core/redis:a", "core/redis:b"}) {
		t.Errorf("removed = %v", engine.removes)
	}

	if err := img.Rm(context.Background()); !errors.Is(err, ErrImageConsumed) {
		t.Errorf("second Rm() = %v, want ErrImageConsumed", err)
	}
	if err := img.Push(context.Background(), Credentials{Token: "T"}, ""); !errors.Is(err, ErrImageConsumed) {
		t.Errorf("Push() after Rm = %v, want ErrImageConsumed", err)
	}
	if err := img.CreateReport(t.TempDir()); !errors.Is(err, ErrImageConsumed) {
		t.Errorf("CreateReport() after Rm = %v, want ErrImageConsumed", err)
	}
	if err := img.CreateDockerConfigFile(Credentials{}, ""); !errors.Is(err, ErrImageConsumed) {
		t.Errorf("CreateDockerConfigFile() after Rm = %v, want ErrImageConsumed", err)
	}
	if len(engine.removes) != 2 {
		t.Errorf("engine should not be called after consumption, removes = %v", engine.removes)
	}
}

func TestImage_Rm_FailFastStillConsumes(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.rmCodes["core/redis:a"] = 1
	img := buildTestImage(t, engine, ui.Nop(), "a", "b")

	err := img.Rm(context.Background())
	var rmErr *RemoveImageFailedError
	if !errors.As(err, &rmErr) {
		t.Fatalf("expected RemoveImageFailedError, got %v", err)
	}
	if rmErr.Reference != "core/redis:a" {
		t.Errorf("Reference = %q", rmErr.Reference)
	}
	if !slices.Equal(engine.removes, []string{"core/redis:a"}) {
		t.Errorf("removed = %v, b must never be attempted", engine.removes)
	}
	if err := img.Rm(context.Background()); !errors.Is(err, ErrImageConsumed) {
		t.Errorf("Rm() after failed Rm = %v, want ErrImageConsumed", err)
	}
}

func TestCredentialsFromLogin(t *testing.T) {
	t.Parallel()

	creds := CredentialsFromLogin("user", "pass")
	if creds.Token != "dXNlcjpwYXNz" {
		t.Errorf("Token = %q, want base64 of user:pass", creds.Token)
	}
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{&BuildFailedError{ExitCode: 2}, "image build failed with exit code 2"},
		{&ImageIDNotFoundError{Reference: "core/redis:4.0.14"}, `image id not found for "core/redis:4.0.14"`},
		{&PushImageFailedError{Reference: "core/redis:b", ExitCode: 1}, `push of "core/redis:b" failed with exit code 1`},
		{&RemoveImageFailedError{Reference: "core/redis:a", ExitCode: 1}, `removal of "core/redis:a" failed with exit code 1`},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
