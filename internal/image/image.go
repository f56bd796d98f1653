// SPDX-License-Identifier: MPL-2.0

package image

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	"github.com/invowk/imgexport/internal/container"
	"github.com/invowk/imgexport/internal/ui"
)

const (
	// ReportFileName is the file CreateReport writes into its destination.
	ReportFileName = "last_docker_export.env"
	// ConfigFileName is the registry auth file written into the workdir.
	ConfigFileName = "config.json"
)

var (
	//go:embed templates/last_docker_export.env.tmpl
	reportTemplateText string

	reportTemplate = template.Must(template.New("report").Parse(reportTemplateText))
)

// Image is a locally built image. It owns its workdir until Rm is called.
// An Image is not safe for concurrent use.
type Image struct {
	id       string
	name     string
	tags     []string
	workdir  string
	engine   container.Engine
	reporter ui.Reporter
	stdout   io.Writer
	stderr   io.Writer
	removed  bool
}

// ID returns the engine-assigned image id.
func (i *Image) ID() string { return i.id }

// Name returns the image name.
func (i *Image) Name() string { return i.name }

// Tags returns a copy of the image tags in order.
func (i *Image) Tags() []string { return slices.Clone(i.tags) }

// Workdir returns the directory the image was built from.
func (i *Image) Workdir() string { return i.workdir }

// ExpandedIdentifiers returns ExpandIdentifiers(i.Name(), i.Tags()).
func (i *Image) ExpandedIdentifiers() []string {
	return ExpandIdentifiers(i.name, i.tags)
}

// Push writes the registry auth file into the workdir and then pushes every
// expanded identifier in order. It stops at the first failed push; earlier
// identifiers stay in the registry.
func (i *Image) Push(ctx context.Context, creds Credentials, registryURL string) error {
	if i.removed {
		return ErrImageConsumed
	}

	i.reporter.Begin(fmt.Sprintf("Pushing image '%s' with all tags to remote registry", i.name))
	if err := i.CreateDockerConfigFile(creds, registryURL); err != nil {
		return err
	}

	for _, ref := range i.ExpandedIdentifiers() {
		i.reporter.Status(ui.StatusUploading, fmt.Sprintf("image '%s' to remote registry", ref))
		code, err := i.engine.Push(ctx, container.PushOptions{
			ConfigDir: i.workdir,
			Reference: ref,
			Stdout:    i.stdout,
			Stderr:    i.stderr,
		})
		if err != nil {
			return err
		}
		if !code.IsSuccess() {
			return &PushImageFailedError{Reference: ref, ExitCode: code}
		}
		i.reporter.Status(ui.StatusUploaded, fmt.Sprintf("image '%s'", ref))
	}

	i.reporter.End(fmt.Sprintf("Image '%s' published with tags: %s", i.name, strings.Join(i.tags, ", ")))
	return nil
}

// Rm removes every expanded identifier from the local engine, in order,
// stopping at the first failure. The Image is consumed whether or not Rm
// succeeds; later calls return ErrImageConsumed.
func (i *Image) Rm(ctx context.Context) error {
	if i.removed {
		return ErrImageConsumed
	}
	i.removed = true

	i.reporter.Begin(fmt.Sprintf("Cleaning up local image '%s' with all tags", i.name))
	for _, ref := range i.ExpandedIdentifiers() {
		i.reporter.Status(ui.StatusDeleting, fmt.Sprintf("local image '%s'", ref))
		code, err := i.engine.RemoveImage(ctx, ref)
		if err != nil {
			return err
		}
		if !code.IsSuccess() {
			return &RemoveImageFailedError{Reference: ref, ExitCode: code}
		}
		i.reporter.Status(ui.StatusDeleted, fmt.Sprintf("local image '%s'", ref))
	}

	i.reporter.End(fmt.Sprintf("Local image '%s' with tags: %s cleaned up", i.name, strings.Join(i.tags, ", ")))
	return nil
}

// CreateReport writes last_docker_export.env into dst, creating dst if needed.
// The report holds the id, the name, the comma-joined tags and the
// comma-joined name:tag pairs.
func (i *Image) CreateReport(dst string) error {
	if i.removed {
		return ErrImageConsumed
	}

	report := filepath.Join(dst, ReportFileName)
	i.reporter.Status(ui.StatusCreating, "build report "+report)

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	nameTags := make([]string, 0, len(i.tags))
	for _, tag := range i.tags {
		nameTags = append(nameTags, i.name+":"+tag)
	}

	var buf bytes.Buffer
	err := reportTemplate.Execute(&buf, struct {
		ID, Name, Tags, NameTags string
	}{
		ID:       i.id,
		Name:     i.name,
		Tags:     strings.Join(i.tags, ","),
		NameTags: strings.Join(nameTags, ","),
	})
	if err != nil {
		return fmt.Errorf("render build report: %w", err)
	}

	if err := os.WriteFile(report, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write build report: %w", err)
	}
	i.reporter.Status(ui.StatusCreated, "build report "+report)
	return nil
}

// CreateDockerConfigFile writes workdir/config.json with the auth token for
// registryURL (DefaultRegistryURL when empty), replacing any previous file.
func (i *Image) CreateDockerConfigFile(creds Credentials, registryURL string) error {
	if i.removed {
		return ErrImageConsumed
	}

	if err := os.MkdirAll(i.workdir, 0o755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}

	data, err := renderDockerConfig(creds, registryURL)
	if err != nil {
		return fmt.Errorf("render registry auth: %w", err)
	}

	slog.Debug("using registry", "url", registryOrDefault(registryURL))
	if err := os.WriteFile(filepath.Join(i.workdir, ConfigFileName), data, 0o600); err != nil {
		return fmt.Errorf("write registry auth: %w", err)
	}
	return nil
}

func registryOrDefault(u string) string {
	if u == "" {
		return DefaultRegistryURL
	}
	return u
}
