// SPDX-License-Identifier: MPL-2.0

package image

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/invowk/imgexport/internal/container"
	"github.com/invowk/imgexport/internal/ui"
)

type (
	// Builder runs image builds against a container engine.
	Builder struct {
		engine   container.Engine
		reporter ui.Reporter
		stdout   io.Writer
		stderr   io.Writer
	}

	// BuilderOption configures a Builder.
	BuilderOption func(*Builder)
)

// WithReporter sets the progress reporter used by the builder and by the
// images it returns.
func WithReporter(r ui.Reporter) BuilderOption {
	return func(b *Builder) {
		b.reporter = r
	}
}

// WithOutput forwards engine output to the given writers.
func WithOutput(stdout, stderr io.Writer) BuilderOption {
	return func(b *Builder) {
		b.stdout = stdout
		b.stderr = stderr
	}
}

// NewBuilder creates a Builder for engine. Progress is discarded unless
// WithReporter is given.
func NewBuilder(engine container.Engine, opts ...BuilderOption) *Builder {
	b := &Builder{
		engine:   engine,
		reporter: ui.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build builds the image described by req and resolves its id.
//
// The build runs with req.Workdir() as working directory and build context and
// tags the image with every expanded identifier. The id is taken from the
// engine listing for the first tag, or the bare name when there are no tags.
// Nothing is retried and no Image exists after a failure.
func (b *Builder) Build(ctx context.Context, req Request) (*Image, error) {
	ids := req.ExpandedIdentifiers()
	b.reporter.Status(ui.StatusCreating, "image "+strings.Join(ids, ", "))

	code, err := b.engine.Build(ctx, container.BuildOptions{
		ContextDir: req.Workdir(),
		Tags:       ids,
		Memory:     req.Memory(),
		Stdout:     b.stdout,
		Stderr:     b.stderr,
	})
	if err != nil {
		return nil, err
	}
	if !code.IsSuccess() {
		return nil, &BuildFailedError{ExitCode: code}
	}

	ref := req.idReference()
	id, err := b.engine.ImageID(ctx, ref)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, &ImageIDNotFoundError{Reference: ref}
	}

	slog.Debug("image built", "id", id, "name", req.Name(), "tags", req.Tags())
	b.reporter.Status(ui.StatusCreated, "image "+id)

	return &Image{
		id:       id,
		name:     req.Name(),
		tags:     req.Tags(),
		workdir:  req.Workdir(),
		engine:   b.engine,
		reporter: b.reporter,
		stdout:   b.stdout,
		stderr:   b.stderr,
	}, nil
}
