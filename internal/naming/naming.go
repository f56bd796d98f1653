// SPDX-License-Identifier: MPL-2.0

// Package naming derives image names and tags from an installed package
// identifier and its release channel.
package naming

import (
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/google/go-containerregistry/pkg/name"

	"github.com/invowk/imgexport/pkg/pkgident"
)

// DefaultImageName is the image name template used when Policy.ImageName is empty.
const DefaultImageName = "{{.Origin}}/{{.Name}}"

var (
	// ErrNotFullyQualified is returned when the package identifier lacks a version or release.
	ErrNotFullyQualified = errors.New("package identifier is not fully qualified")
	// ErrInvalidReference is the sentinel error wrapped by InvalidReferenceError.
	ErrInvalidReference = errors.New("invalid image reference")
)

type (
	// Policy decides the name and tags of an exported image.
	Policy struct {
		// ImageName is a text/template over TemplateData. The result is lower-cased.
		ImageName string
		// LatestTag adds the "latest" tag.
		LatestTag bool
		// VersionTag adds a "<version>" tag.
		VersionTag bool
		// VersionReleaseTag adds a "<version>-<release>" tag.
		VersionReleaseTag bool
		// CustomTag is an optional text/template over TemplateData.
		CustomTag string
		// RegistryURL prefixes the image name when set.
		RegistryURL string
	}

	// TemplateData is the data available to name and tag templates.
	TemplateData struct {
		Origin  string
		Name    string
		Version string
		Release string
		Channel string
	}

	// InvalidReferenceError is returned when a derived identifier is not a valid image reference.
	InvalidReferenceError struct {
		Reference string
		Cause     error
	}
)

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid image reference %q: %v", e.Reference, e.Cause)
}

// Unwrap returns ErrInvalidReference and the parser error.
func (e *InvalidReferenceError) Unwrap() []error { return []error{ErrInvalidReference, e.Cause} }

// DefaultPolicy names the image origin/name and tags it latest, version and version-release.
func DefaultPolicy() Policy {
	return Policy{
		ImageName:         DefaultImageName,
		LatestTag:         true,
		VersionTag:        true,
		VersionReleaseTag: true,
	}
}

// ImageIdentifiers returns the image name and ordered tags for ident.
// Tags come in the order latest, version, version-release, custom. Every
// name:tag combination is checked to be a valid image reference.
func (p Policy) ImageIdentifiers(ident pkgident.PackageIdent, channel string) (string, []string, error) {
	if !ident.IsFullyQualified() {
		return "", nil, fmt.Errorf("%w: %s", ErrNotFullyQualified, ident)
	}

	data := TemplateData{
		Origin:  ident.Origin,
		Name:    ident.Name,
		Version: ident.Version,
		Release: ident.Release,
		Channel: channel,
	}

	nameTmpl := p.ImageName
	if nameTmpl == "" {
		nameTmpl = DefaultImageName
	}
	imageName, err := render("image name", nameTmpl, data)
	if err != nil {
		return "", nil, err
	}
	imageName = strings.ToLower(imageName)
	if registry := registryHost(p.RegistryURL); registry != "" {
		imageName = registry + "/" + imageName
	}

	var tags []string
	if p.LatestTag {
		tags = append(tags, "latest")
	}
	if p.VersionTag {
		tags = append(tags, ident.Version)
	}
	if p.VersionReleaseTag {
		tags = append(tags, ident.Version+"-"+ident.Release)
	}
	if p.CustomTag != "" {
		custom, err := render("custom tag", p.CustomTag, data)
		if err != nil {
			return "", nil, err
		}
		if custom != "" {
			tags = append(tags, custom)
		}
	}

	if err := validate(imageName, tags); err != nil {
		return "", nil, err
	}
	return imageName, tags, nil
}

func render(what, text string, data TemplateData) (string, error) {
	tmpl, err := template.New(what).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse %s template: %w", what, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", what, err)
	}
	return strings.TrimSpace(b.String()), nil
}

// registryHost strips a URL scheme and trailing slashes so the registry can
// prefix a repository name.
func registryHost(u string) string {
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	return strings.TrimRight(u, "/")
}

func validate(imageName string, tags []string) error {
	if _, err := name.NewRepository(imageName); err != nil {
		return &InvalidReferenceError{Reference: imageName, Cause: err}
	}
	for _, tag := range tags {
		ref := imageName + ":" + tag
		if _, err := name.NewTag(ref); err != nil {
			return &InvalidReferenceError{Reference: ref, Cause: err}
		}
	}
	return nil
}
