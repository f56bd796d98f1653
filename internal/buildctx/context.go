// SPDX-License-Identifier: MPL-2.0

package buildctx

import (
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"

	"github.com/invowk/imgexport/internal/dag"
	"github.com/invowk/imgexport/pkg/pkgident"
)

// Context is the read-only view of an export that the root preparer and the
// image builder consume.
type Context struct {
	rootfs      string
	baseImage   string
	envPath     string
	exposes     []string
	multiLayer  bool
	primary     pkgident.PackageIdent
	installed   pkgident.PackageIdent
	channel     string
	packages    []pkgident.PackageIdent
	environment map[string]string
	users       []User
	groups      []Group
	supervisor  pkgident.PackageIdent
	shell       pkgident.PackageIdent
	binPath     string
}

// Load reads the manifest at path and builds its Context. A relative rootfs
// is resolved against the manifest's directory.
func Load(path string) (*Context, error) {
	m, err := ReadManifest(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolve manifest directory: %w", err)
	}
	return New(m, abs)
}

// New builds a Context from a decoded manifest. baseDir anchors a relative
// rootfs. Packages are ordered so that every dependency precedes its
// dependents; a dependency cycle is returned as *dag.CycleError.
func New(m *Manifest, baseDir string) (*Context, error) {
	packages, err := orderPackages(m.Packages)
	if err != nil {
		return nil, err
	}

	primary, err := pkgident.Parse(m.PrimaryService)
	if err != nil {
		return nil, err
	}
	installed, ok := latestSatisfying(packages, primary)
	if !ok {
		return nil, &ServiceNotInstalledError{Ident: primary.String()}
	}

	supervisor, err := pkgident.Parse(orDefault(m.Supervisor, "core/hab"))
	if err != nil {
		return nil, err
	}
	shell, err := pkgident.Parse(orDefault(m.Shell, "core/busybox-static"))
	if err != nil {
		return nil, err
	}

	rootfs := orDefault(m.RootFS, "rootfs")
	if !filepath.IsAbs(rootfs) {
		rootfs = filepath.Join(baseDir, rootfs)
	}

	slog.Debug("loaded build context", "primary", installed.String(), "packages", len(packages), "rootfs", rootfs)

	return &Context{
		rootfs:      filepath.Clean(rootfs),
		baseImage:   m.BaseImage,
		envPath:     m.EnvPath,
		exposes:     slices.Clone(m.Exposes),
		multiLayer:  m.MultiLayer,
		primary:     primary,
		installed:   installed,
		channel:     orDefault(m.Channel, "stable"),
		packages:    packages,
		environment: maps.Clone(m.Environment),
		users:       slices.Clone(m.Users),
		groups:      slices.Clone(m.Groups),
		supervisor:  supervisor,
		shell:       shell,
		binPath:     orDefault(m.BinPath, "/hab/bin"),
	}, nil
}

// orderPackages parses the listed packages and returns them dependency first.
func orderPackages(listed []Package) ([]pkgident.PackageIdent, error) {
	idents := make([]pkgident.PackageIdent, 0, len(listed))
	byName := make(map[string]pkgident.PackageIdent, len(listed))
	g := dag.New()

	for _, p := range listed {
		ident, err := pkgident.Parse(p.Ident)
		if err != nil {
			return nil, err
		}
		if !ident.IsFullyQualified() {
			return nil, fmt.Errorf("%w: installed package %s must be fully qualified", ErrInvalidManifest, ident)
		}
		key := ident.String()
		if g.Has(key) {
			return nil, fmt.Errorf("%w: package %s is listed twice", ErrInvalidManifest, key)
		}
		g.AddNode(key)
		byName[key] = ident
		idents = append(idents, ident)
	}

	for i, p := range listed {
		for _, d := range p.Deps {
			req, err := pkgident.Parse(d)
			if err != nil {
				return nil, err
			}
			dep, ok := latestSatisfying(idents, req)
			if !ok {
				return nil, &UnknownDependencyError{Package: p.Ident, Dependency: d}
			}
			g.AddEdge(dep.String(), idents[i].String())
		}
	}

	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	sorted := make([]pkgident.PackageIdent, 0, len(order))
	for _, key := range order {
		sorted = append(sorted, byName[key])
	}
	return sorted, nil
}

func latestSatisfying(idents []pkgident.PackageIdent, req pkgident.PackageIdent) (pkgident.PackageIdent, bool) {
	var (
		best  pkgident.PackageIdent
		found bool
	)
	for _, id := range idents {
		if !id.Satisfies(req) {
			continue
		}
		if !found || pkgident.Compare(id, best) > 0 {
			best, found = id, true
		}
	}
	return best, found
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// WithRootFS returns a copy of c whose root filesystem lives at path.
func (c *Context) WithRootFS(path string) *Context {
	clone := *c
	clone.rootfs = path
	return &clone
}

// RootFS returns the absolute path of the root filesystem.
func (c *Context) RootFS() string { return c.rootfs }

// BaseImage returns the image the export builds on.
func (c *Context) BaseImage() string { return c.baseImage }

// EnvPath returns the PATH value set inside the image.
func (c *Context) EnvPath() string { return c.envPath }

// Exposes returns the exposed ports.
func (c *Context) Exposes() []string { return slices.Clone(c.exposes) }

// MultiLayer reports whether each package gets its own layer.
func (c *Context) MultiLayer() bool { return c.multiLayer }

// PrimaryServiceIdent returns the service ident as written in the manifest.
func (c *Context) PrimaryServiceIdent() pkgident.PackageIdent { return c.primary }

// InstalledPrimaryServiceIdent returns the fully qualified ident of the
// installed package that provides the primary service.
func (c *Context) InstalledPrimaryServiceIdent() pkgident.PackageIdent { return c.installed }

// Channel returns the release channel.
func (c *Context) Channel() string { return c.channel }

// Packages returns the installed packages, dependencies before dependents.
func (c *Context) Packages() []pkgident.PackageIdent { return slices.Clone(c.packages) }

// Environment returns a copy of the image environment.
func (c *Context) Environment() map[string]string { return maps.Clone(c.environment) }

// Users returns the users to add, in manifest order.
func (c *Context) Users() []User { return slices.Clone(c.users) }

// Groups returns the groups to add, in manifest order.
func (c *Context) Groups() []Group { return slices.Clone(c.groups) }

// Supervisor returns the ident of the package shipping the supervisor binary.
func (c *Context) Supervisor() pkgident.PackageIdent { return c.supervisor }

// Shell returns the ident of the package shipping the entrypoint shell.
func (c *Context) Shell() pkgident.PackageIdent { return c.shell }

// BinPath returns the in-image directory holding the supervisor launcher.
func (c *Context) BinPath() string { return c.binPath }
