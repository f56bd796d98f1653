// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/invowk/imgexport/internal/issue"
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// PushArgsFunc builds the engine-specific arguments of a push invocation.
	// Docker reads credentials from a config directory while Podman takes an
	// auth file, so the two engines disagree on flag placement.
	PushArgsFunc func(opts PushOptions) []string

	// BaseCLIEngineOption configures a BaseCLIEngine.
	BaseCLIEngineOption func(*BaseCLIEngine)

	// BaseCLIEngine provides common implementation for CLI-based container engines.
	// Docker and Podman engines embed this struct. Methods that are identical across
	// CLI engines (Build, ImageID, Push, RemoveImage) are implemented here;
	// engine-specific methods (Name, Available, Version) remain on the concrete types.
	BaseCLIEngine struct {
		name        string // Engine name for error messages (e.g., "docker", "podman")
		binaryPath  string
		execCommand ExecCommandFunc
		pushArgs    PushArgsFunc
	}
)

// --- Option Functions ---

// WithName sets the engine name used in error messages.
func WithName(name string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.name = name
	}
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.execCommand = fn
	}
}

// WithPushArgs sets the builder for push arguments.
func WithPushArgs(fn PushArgsFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.pushArgs = fn
	}
}

// --- Constructor ---

// NewBaseCLIEngine creates a new base engine with the given binary path.
// Push arguments default to the Docker layout.
func NewBaseCLIEngine(binaryPath string, opts ...BaseCLIEngineOption) *BaseCLIEngine {
	e := &BaseCLIEngine{
		binaryPath:  binaryPath,
		execCommand: exec.CommandContext,
		pushArgs:    DockerPushArgs,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// --- Accessor Methods ---

// BinaryPath returns the path to the container engine binary.
func (e *BaseCLIEngine) BinaryPath() string {
	return e.binaryPath
}

// --- Argument Builders ---

// BuildArgs constructs arguments for an image build.
// The context is always "." because the command runs inside opts.ContextDir.
//
// Generated command: <binary> build --force-rm [--memory M] --tag T... .
func (e *BaseCLIEngine) BuildArgs(opts BuildOptions) []string {
	args := []string{"build", "--force-rm"}

	if opts.Memory != "" {
		args = append(args, "--memory", opts.Memory)
	}

	for _, tag := range opts.Tags {
		args = append(args, "--tag", tag)
	}

	return append(args, ".")
}

// ImageIDArgs constructs arguments for listing the id of an image reference.
func (e *BaseCLIEngine) ImageIDArgs(ref string) []string {
	return []string{"images", "-q", ref}
}

// PushArgs constructs arguments for an image push using the engine's layout.
func (e *BaseCLIEngine) PushArgs(opts PushOptions) []string {
	return e.pushArgs(opts)
}

// RemoveImageArgs constructs arguments for an image remove command.
func (e *BaseCLIEngine) RemoveImageArgs(ref string) []string {
	return []string{"rmi", ref}
}

// --- Command Execution ---

// RunCommandWithOutput executes a command with stdout captured to a buffer.
func (e *BaseCLIEngine) RunCommandWithOutput(ctx context.Context, args ...string) (string, error) {
	cmd := e.CreateCommand(ctx, args...)
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("command %s %v failed: %w", e.binaryPath, args, err)
	}

	return out.String(), nil
}

// CreateCommand creates an exec.Cmd for the given arguments.
// This is useful when the caller needs to customize stdin/stdout/stderr.
func (e *BaseCLIEngine) CreateCommand(ctx context.Context, args ...string) *exec.Cmd {
	slog.Debug("running container engine", "binary", e.binaryPath, "args", strings.Join(args, " "))
	return e.execCommand(ctx, e.binaryPath, args...)
}

// --- Promoted Engine Methods (shared by Docker and Podman) ---

// Build builds an image from the Dockerfile at the root of opts.ContextDir.
// A non-zero exit code is returned as ExitCode, not as an error.
func (e *BaseCLIEngine) Build(ctx context.Context, opts BuildOptions) (ExitCode, error) {
	if err := opts.Validate(); err != nil {
		return 0, err
	}

	cmd := e.CreateCommand(ctx, e.BuildArgs(opts)...)
	cmd.Dir = opts.ContextDir
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	code, err := exitStatus(cmd.Run())
	if err != nil {
		return code, buildContainerError(e.name, opts, err)
	}
	return code, nil
}

// ImageID lists the image id for ref. The exit status of the listing is
// ignored; only the first line of stdout matters.
func (e *BaseCLIEngine) ImageID(ctx context.Context, ref string) (string, error) {
	cmd := e.CreateCommand(ctx, e.ImageIDArgs(ref)...)
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("command %s images -q %s failed: %w", e.binaryPath, ref, err)
		}
	}

	line, _, _ := strings.Cut(out.String(), "\n")
	return strings.TrimSpace(line), nil
}

// Push uploads an image with the engine-specific credential flags.
func (e *BaseCLIEngine) Push(ctx context.Context, opts PushOptions) (ExitCode, error) {
	cmd := e.CreateCommand(ctx, e.PushArgs(opts)...)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	code, err := exitStatus(cmd.Run())
	if err != nil {
		return code, pushContainerError(e.name, opts, err)
	}
	return code, nil
}

// RemoveImage removes a local image.
func (e *BaseCLIEngine) RemoveImage(ctx context.Context, ref string) (ExitCode, error) {
	cmd := e.CreateCommand(ctx, e.RemoveImageArgs(ref)...)
	return exitStatus(cmd.Run())
}

// exitStatus separates a process exit status from infrastructure failures.
func exitStatus(err error) (ExitCode, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return ExitCode(exitErr.ExitCode()), nil
	}
	return 1, err
}

// buildContainerError creates an actionable error for build invocations that never ran.
func buildContainerError(engine string, opts BuildOptions, cause error) error {
	ctx := issue.NewErrorContext().
		WithOperation("build container image").
		WithResource(opts.ContextDir + "/Dockerfile")

	ctx.WithSuggestion("Verify the build context path exists and is accessible")
	ctx.WithSuggestion("Check that " + engine + " is installed and on PATH")

	return ctx.Wrap(cause).BuildError()
}

// pushContainerError creates an actionable error for push invocations that never ran.
func pushContainerError(engine string, opts PushOptions, cause error) error {
	ctx := issue.NewErrorContext().
		WithOperation("push container image").
		WithResource(opts.Reference)

	ctx.WithSuggestion("Check that " + engine + " is installed and on PATH")
	ctx.WithSuggestion("Verify " + opts.ConfigDir + " is readable")

	return ctx.Wrap(cause).BuildError()
}
