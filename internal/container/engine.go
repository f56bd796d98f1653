// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// EngineTypeDocker selects the Docker CLI.
	EngineTypeDocker EngineType = "docker"
	// EngineTypePodman selects the Podman CLI.
	EngineTypePodman EngineType = "podman"
)

var (
	// ErrNoEngineAvailable is the sentinel error wrapped by EngineNotAvailableError.
	ErrNoEngineAvailable = errors.New("no container engine available")

	// ErrInvalidEngineType is returned when an engine name is not docker or podman.
	ErrInvalidEngineType = errors.New("invalid container engine type")

	// ErrInvalidBuildOptions is returned when BuildOptions lack a context directory or tags.
	ErrInvalidBuildOptions = errors.New("invalid build options")
)

type (
	// Engine defines the image lifecycle operations against a container engine.
	Engine interface {
		// Name returns the engine name (docker or podman)
		Name() string
		// Available checks if the engine is available on the system
		Available() bool
		// Version returns the engine version
		Version(ctx context.Context) (string, error)

		// Build runs an image build with the build context as working directory.
		Build(ctx context.Context, opts BuildOptions) (ExitCode, error)
		// ImageID returns the first image id listed for ref, or "" when the
		// engine lists nothing. The exit status of the query is ignored.
		ImageID(ctx context.Context, ref string) (string, error)
		// Push uploads ref using the credentials stored in opts.ConfigDir.
		Push(ctx context.Context, opts PushOptions) (ExitCode, error)
		// RemoveImage deletes a local image.
		RemoveImage(ctx context.Context, ref string) (ExitCode, error)
	}

	// BuildOptions contains options for building an image.
	BuildOptions struct {
		// ContextDir is the build context directory; the command runs inside it.
		ContextDir string
		// Tags are the identifiers applied to the image, in order.
		Tags []string
		// Memory is an optional memory limit passed through to the engine.
		Memory string
		// Stdout is where to write build output
		Stdout io.Writer
		// Stderr is where to write build errors
		Stderr io.Writer
	}

	// PushOptions contains options for pushing an image.
	PushOptions struct {
		// ConfigDir holds the config.json with registry credentials.
		ConfigDir string
		// Reference is the image identifier to upload.
		Reference string
		Stdout    io.Writer
		Stderr    io.Writer
	}

	// ExitCode represents a process exit status code.
	// The zero value (0) means success.
	ExitCode int

	// EngineType identifies the container engine type
	EngineType string

	// EngineNotAvailableError is returned when a container engine is not available.
	EngineNotAvailableError struct {
		Engine string
		Reason string
	}
)

// IsSuccess returns true if the exit code indicates successful execution.
func (c ExitCode) IsSuccess() bool { return c == 0 }

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }

// Validate returns an error if the options cannot produce a build invocation.
func (o BuildOptions) Validate() error {
	if strings.TrimSpace(o.ContextDir) == "" {
		return fmt.Errorf("%w: context directory is required", ErrInvalidBuildOptions)
	}
	if len(o.Tags) == 0 {
		return fmt.Errorf("%w: at least one tag is required", ErrInvalidBuildOptions)
	}
	return nil
}

func (e *EngineNotAvailableError) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// Unwrap returns ErrNoEngineAvailable so callers can use errors.Is for programmatic detection.
func (e *EngineNotAvailableError) Unwrap() error { return ErrNoEngineAvailable }

// ParseEngineType converts a configuration value into an EngineType.
func ParseEngineType(s string) (EngineType, error) {
	switch t := EngineType(strings.ToLower(strings.TrimSpace(s))); t {
	case EngineTypeDocker, EngineTypePodman:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q (valid: docker, podman)", ErrInvalidEngineType, s)
	}
}

// NewEngine creates a new container engine based on preference
func NewEngine(preferredType EngineType) (Engine, error) {
	switch preferredType {
	case EngineTypeDocker:
		engine := NewDockerEngine()
		if engine.Available() {
			return engine, nil
		}
		// Fall back to Podman
		podmanEngine := NewPodmanEngine()
		if podmanEngine.Available() {
			return podmanEngine, nil
		}
		return nil, &EngineNotAvailableError{
			Engine: "docker",
			Reason: "docker is not installed or not accessible, and podman fallback is also not available",
		}

	case EngineTypePodman:
		engine := NewPodmanEngine()
		if engine.Available() {
			return engine, nil
		}
		// Fall back to Docker
		dockerEngine := NewDockerEngine()
		if dockerEngine.Available() {
			return dockerEngine, nil
		}
		return nil, &EngineNotAvailableError{
			Engine: "podman",
			Reason: "podman is not installed or not accessible, and docker fallback is also not available",
		}

	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidEngineType, preferredType)
	}
}

// AutoDetectEngine tries to find an available container engine
func AutoDetectEngine() (Engine, error) {
	docker := NewDockerEngine()
	if docker.Available() {
		return docker, nil
	}

	podman := NewPodmanEngine()
	if podman.Available() {
		return podman, nil
	}

	return nil, &EngineNotAvailableError{
		Engine: "any",
		Reason: "no container engine (docker or podman) is available on this system",
	}
}
