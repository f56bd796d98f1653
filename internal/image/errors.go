// SPDX-License-Identifier: MPL-2.0

package image

import (
	"errors"
	"fmt"

	"github.com/invowk/imgexport/internal/container"
)

var (
	// ErrBuildFailed is the sentinel error wrapped by BuildFailedError.
	ErrBuildFailed = errors.New("image build failed")
	// ErrImageIDNotFound is the sentinel error wrapped by ImageIDNotFoundError.
	ErrImageIDNotFound = errors.New("image id not found")
	// ErrPushImageFailed is the sentinel error wrapped by PushImageFailedError.
	ErrPushImageFailed = errors.New("image push failed")
	// ErrRemoveImageFailed is the sentinel error wrapped by RemoveImageFailedError.
	ErrRemoveImageFailed = errors.New("image removal failed")
	// ErrImageConsumed is returned by any operation on an Image after Rm.
	ErrImageConsumed = errors.New("image handle already removed")
)

type (
	// BuildFailedError is returned when the engine build exits non-zero.
	BuildFailedError struct {
		ExitCode container.ExitCode
	}

	// ImageIDNotFoundError is returned when the engine lists no image for a
	// reference that was just built.
	ImageIDNotFoundError struct {
		Reference string
	}

	// PushImageFailedError is returned when pushing one identifier exits non-zero.
	PushImageFailedError struct {
		Reference string
		ExitCode  container.ExitCode
	}

	// RemoveImageFailedError is returned when removing one identifier exits non-zero.
	RemoveImageFailedError struct {
		Reference string
		ExitCode  container.ExitCode
	}
)

func (e *BuildFailedError) Error() string {
	return fmt.Sprintf("image build failed with exit code %s", e.ExitCode)
}

// Unwrap returns ErrBuildFailed for errors.Is() compatibility.
func (e *BuildFailedError) Unwrap() error { return ErrBuildFailed }

func (e *ImageIDNotFoundError) Error() string {
	return fmt.Sprintf("image id not found for %q", e.Reference)
}

// Unwrap returns ErrImageIDNotFound for errors.Is() compatibility.
func (e *ImageIDNotFoundError) Unwrap() error { return ErrImageIDNotFound }

func (e *PushImageFailedError) Error() string {
	return fmt.Sprintf("push of %q failed with exit code %s", e.Reference, e.ExitCode)
}

// Unwrap returns ErrPushImageFailed for errors.Is() compatibility.
func (e *PushImageFailedError) Unwrap() error { return ErrPushImageFailed }

func (e *RemoveImageFailedError) Error() string {
	return fmt.Sprintf("removal of %q failed with exit code %s", e.Reference, e.ExitCode)
}

// Unwrap returns ErrRemoveImageFailed for errors.Is() compatibility.
func (e *RemoveImageFailedError) Unwrap() error { return ErrRemoveImageFailed }
