// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/invowk/imgexport/internal/buildctx"
	"github.com/invowk/imgexport/internal/buildroot"
	"github.com/invowk/imgexport/internal/config"
	"github.com/invowk/imgexport/internal/container"
	"github.com/invowk/imgexport/internal/dag"
	"github.com/invowk/imgexport/internal/image"
	"github.com/invowk/imgexport/internal/issue"
	"github.com/invowk/imgexport/internal/naming"
)

// ServiceError is an error that carries optional rendering information for
// the CLI layer. Always create via newServiceError.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the optional issue catalog ID for rendering help text.
	IssueID issue.Id
	// StyledMessage is the optional pre-rendered styled error text.
	StyledMessage string
}

// newServiceError creates a ServiceError with a nil-Err panic guard.
func newServiceError(err error, issueID issue.Id, styledMessage string) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{
		Err:           err,
		IssueID:       issueID,
		StyledMessage: styledMessage,
	}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// renderServiceError prints any styled message first, then the optional
// issue help section.
func renderServiceError(stderr io.Writer, svcErr *ServiceError) {
	if svcErr == nil {
		return
	}

	if svcErr.StyledMessage != "" {
		fmt.Fprint(stderr, svcErr.StyledMessage)
	}

	if svcErr.IssueID == 0 {
		return
	}

	if catalogEntry := issue.Get(svcErr.IssueID); catalogEntry != nil {
		rendered, renderErr := catalogEntry.Render("dark")
		if renderErr != nil {
			slog.Warn("failed to render issue catalog entry", "issueID", svcErr.IssueID, "error", renderErr)
		} else {
			fmt.Fprint(stderr, rendered)
		}
	}
}

// classifyError maps export failures to issue catalog IDs and returns a
// styled message for CLI rendering. A zero ID means no catalog entry applies.
func classifyError(err error, verbose bool) (issueID issue.Id, styledMsg string) {
	switch {
	case errors.Is(err, container.ErrNoEngineAvailable):
		issueID = issue.ContainerEngineNotFoundId
	case errors.Is(err, buildctx.ErrManifestNotFound):
		issueID = issue.ManifestNotFoundId
	case errors.Is(err, dag.ErrCycle):
		issueID = issue.DependencyCycleId
	case errors.Is(err, buildctx.ErrInvalidManifest),
		errors.Is(err, buildctx.ErrUnknownDependency),
		errors.Is(err, buildctx.ErrServiceNotInstalled):
		issueID = issue.ManifestParseErrorId
	case errors.Is(err, buildroot.ErrPackageNotInstalled):
		issueID = issue.PackageNotInstalledId
	case errors.Is(err, naming.ErrInvalidReference), errors.Is(err, naming.ErrNotFullyQualified):
		issueID = issue.InvalidImageNameId
	case errors.Is(err, image.ErrBuildFailed):
		issueID = issue.ImageBuildFailedId
	case errors.Is(err, image.ErrImageIDNotFound):
		issueID = issue.ImageIdNotFoundId
	case errors.Is(err, image.ErrPushImageFailed):
		issueID = issue.ImagePushFailedId
	case errors.Is(err, image.ErrRemoveImageFailed):
		issueID = issue.ImageRemoveFailedId
	case errors.Is(err, config.ErrInvalidConfig), errors.Is(err, config.ErrInvalidMemory):
		issueID = issue.ConfigLoadFailedId
	case errors.Is(err, os.ErrPermission):
		issueID = issue.PermissionDeniedId
	default:
		var ae *issue.ActionableError
		if errors.As(err, &ae) && ae.Operation == "load configuration" {
			issueID = issue.ConfigLoadFailedId
		}
	}

	msg := formatErrorForDisplay(err, verbose)
	switch {
	case errors.Is(err, context.Canceled):
		msg = "export cancelled: " + msg
	case errors.Is(err, context.DeadlineExceeded):
		msg = "export timed out: " + msg
	}

	return issueID, fmt.Sprintf("\n%s %s\n", ErrorStyle.Render("Error:"), msg)
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// are rendered with their suggestions, and with the full chain when verbose.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// failCommand renders err for the user and returns the ExitError that makes
// the process exit non-zero without cobra printing err a second time.
func failCommand(stderr io.Writer, err error, verbose bool) error {
	issueID, styled := classifyError(err, verbose)
	renderServiceError(stderr, newServiceError(err, issueID, styled))
	return &ExitError{Code: 1, Err: err}
}
