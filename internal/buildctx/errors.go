// SPDX-License-Identifier: MPL-2.0

package buildctx

import (
	"errors"
	"fmt"
)

var (
	// ErrManifestNotFound is returned when the manifest file does not exist.
	ErrManifestNotFound = errors.New("export manifest not found")
	// ErrInvalidManifest is the sentinel error wrapped by InvalidManifestError.
	ErrInvalidManifest = errors.New("invalid export manifest")
	// ErrUnknownDependency is the sentinel error wrapped by UnknownDependencyError.
	ErrUnknownDependency = errors.New("unknown package dependency")
	// ErrServiceNotInstalled is the sentinel error wrapped by ServiceNotInstalledError.
	ErrServiceNotInstalled = errors.New("primary service not installed")
)

type (
	// InvalidManifestError reports a manifest that failed schema validation or
	// a semantic check.
	InvalidManifestError struct {
		Path  string
		Cause error
	}

	// UnknownDependencyError is returned when a package depends on an ident
	// that no listed package satisfies.
	UnknownDependencyError struct {
		Package    string
		Dependency string
	}

	// ServiceNotInstalledError is returned when no listed package satisfies
	// the primary service ident.
	ServiceNotInstalledError struct {
		Ident string
	}
)

func (e *InvalidManifestError) Error() string {
	return fmt.Sprintf("invalid export manifest %s: %v", e.Path, e.Cause)
}

// Unwrap returns both the sentinel and the cause.
func (e *InvalidManifestError) Unwrap() []error { return []error{ErrInvalidManifest, e.Cause} }

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("package %s depends on %s, which is not listed in packages", e.Package, e.Dependency)
}

// Unwrap returns ErrUnknownDependency for errors.Is() compatibility.
func (e *UnknownDependencyError) Unwrap() error { return ErrUnknownDependency }

func (e *ServiceNotInstalledError) Error() string {
	return fmt.Sprintf("primary service %s is not among the installed packages", e.Ident)
}

// Unwrap returns ErrServiceNotInstalled for errors.Is() compatibility.
func (e *ServiceNotInstalledError) Unwrap() error { return ErrServiceNotInstalled }
