// SPDX-License-Identifier: MPL-2.0

package image

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/invowk/imgexport/internal/ui"
)

func TestBuilder_Build(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.ids["core/redis:4.0.14"] = "abc123"
	rec := ui.NewRecorder()

	req := NewRequest("/tmp/work", "core/redis").
		WithTag("4.0.14").
		WithTag("latest").
		WithMemory("2g")

	img, err := NewBuilder(engine, WithReporter(rec)).Build(context.Background(), req)
	if err != nil {
		t.Fatalf("Build() unexpected error: %v", err)
	}

	if img.ID() != "abc123" {
		t.Errorf("ID() = %q, want abc123", img.ID())
	}
	if img.Name() != "core/redis" || img.Workdir() != "/tmp/work" {
		t.Errorf("Name/Workdir = %q/%q", img.Name(), img.Workdir())
	}
	if !slices.Equal(img.Tags(), []string{"4.0.14", "latest"}) {
		t.Errorf("Tags() = %v", img.Tags())
	}

	if len(engine.builds) != 1 {
		t.Fatalf("expected one build, got %d", len(engine.builds))
	}
	build := engine.builds[0]
	if build.ContextDir != "/tmp/work" || build.Memory != "2g" {
		t.Errorf("build options = %+v", build)
	}
	if !slices.Equal(build.Tags, []string{"core/redis:4.0.14", "core/redis:latest"}) {
		t.Errorf("build tags = %v", build.Tags)
	}
	if !slices.Equal(engine.idQuery, []string{"core/redis:4.0.14"}) {
		t.Errorf("id queries = %v, want the first tag only", engine.idQuery)
	}

	statuses := rec.Statuses()
	if len(statuses) != 2 || statuses[0] != "Creating image core/redis:4.0.14, core/redis:latest" || statuses[1] != "Created image abc123" {
		t.Errorf("statuses = %v", statuses)
	}
}

func TestBuilder_Build_NoTagsQueriesBareName(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.ids["core/redis"] = "def456"

	img, err := NewBuilder(engine).Build(context.Background(), NewRequest("/tmp/work", "core/redis"))
	if err != nil {
		t.Fatalf("Build() unexpected error: %v", err)
	}
	if img.ID() != "def456" {
		t.Errorf("ID() = %q, want def456", img.ID())
	}
	if !slices.Equal(engine.builds[0].Tags, []string{"core/redis"}) {
		t.Errorf("build tags = %v", engine.builds[0].Tags)
	}
	if engine.builds[0].Memory != "" {
		t.Errorf("memory should be unset, got %q", engine.builds[0].Memory)
	}
}

func TestBuilder_Build_IDNotFound(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()

	img, err := NewBuilder(engine).Build(context.Background(), NewRequest("/tmp/work", "core/redis").WithTag("4.0.14"))
	if img != nil {
		t.Error("no Image should be returned on failure")
	}

	var notFound *ImageIDNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ImageIDNotFoundError, got %v", err)
	}
	if notFound.Reference != "core/redis:4.0.14" {
		t.Errorf("Reference = %q, want core/redis:4.0.14", notFound.Reference)
	}
	if !errors.Is(err, ErrImageIDNotFound) {
		t.Error("error should unwrap to ErrImageIDNotFound")
	}
}

func TestBuilder_Build_Failure(t *testing.T) {
	t.Parallel()

	t.Run("non-zero exit", func(t *testing.T) {
		t.Parallel()

		engine := newFakeEngine()
		engine.buildCode = 1
		rec := ui.NewRecorder()

		_, err := NewBuilder(engine, WithReporter(rec)).Build(context.Background(), NewRequest("/tmp/work", "core/redis"))

		var buildErr *BuildFailedError
		if !errors.As(err, &buildErr) {
			t.Fatalf("expected BuildFailedError, got %v", err)
		}
		if buildErr.ExitCode != 1 {
			t.Errorf("ExitCode = %d, want 1", buildErr.ExitCode)
		}
		if !errors.Is(err, ErrBuildFailed) {
			t.Error("error should unwrap to ErrBuildFailed")
		}
		if len(engine.idQuery) != 0 {
			t.Error("id must not be queried after a failed build")
		}
		if len(rec.Statuses()) != 1 {
			t.Errorf("statuses = %v, want only the starting signal, no completion", rec.Statuses())
		}
	})

	t.Run("engine error is returned as is", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("docker: not found")
		engine := newFakeEngine()
		engine.buildErr = cause

		_, err := NewBuilder(engine).Build(context.Background(), NewRequest("/tmp/work", "core/redis"))
		if !errors.Is(err, cause) {
			t.Fatalf("expected engine error, got %v", err)
		}
	})
}
