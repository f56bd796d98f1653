// SPDX-License-Identifier: MPL-2.0

package buildroot

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	"mvdan.cc/sh/v3/syntax"

	"github.com/invowk/imgexport/internal/image"
	"github.com/invowk/imgexport/internal/ui"
	"github.com/invowk/imgexport/pkg/pkgident"
)

const (
	// DescriptorFileName is the image descriptor written into the workdir.
	DescriptorFileName = "Dockerfile"
	// EntrypointFileName is the startup script written into the root filesystem.
	EntrypointFileName = "init.sh"

	passwdFile = "etc/passwd"
	groupFile  = "etc/group"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("buildroot").
	Funcs(template.FuncMap{"dockerQuote": dockerQuote}).
	Option("missingkey=error").
	ParseFS(templateFS, "templates/*.tmpl"))

var dockerQuoteReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// dockerQuote wraps s in double quotes for an ENV instruction. Only the
// backslash and the quote are escaped; the Dockerfile parser decodes nothing else.
func dockerQuote(s string) string {
	return `"` + dockerQuoteReplacer.Replace(s) + `"`
}

type (
	// Namer derives the image name and tags for an installed package.
	Namer interface {
		ImageIdentifiers(ident pkgident.PackageIdent, channel string) (string, []string, error)
	}

	// Preparer is a build root made ready for an image build. It exclusively
	// owns the root until Destroy.
	Preparer struct {
		root      *Root
		strategy  Strategy
		reporter  ui.Reporter
		destroyed bool
	}

	envVar struct {
		Key   string
		Value string
	}

	descriptorData struct {
		BaseImage                    string
		RootFS                       string
		Path                         string
		HabPath                      string
		Exposes                      string
		MultiLayer                   bool
		PrimaryServiceIdent          string
		InstalledPrimaryServiceIdent string
		Environment                  []envVar
		Packages                     []string
	}

	entrypointData struct {
		BusyboxShell        string
		Path                string
		SupBin              string
		PrimaryServiceIdent string
	}
)

// Prepare runs the pipeline selected by strategy against root.
//
// ContainerInit appends the context's users and groups to the root's passwd
// and group files, writes an executable /init.sh and renders the Dockerfile.
// NativeInit only renders the Dockerfile. On error the root is left as is and
// still belongs to the caller.
func Prepare(ctx context.Context, root *Root, strategy Strategy, reporter ui.Reporter) (*Preparer, error) {
	if root.destroyed {
		return nil, ErrRootDestroyed
	}
	if reporter == nil {
		reporter = ui.Nop()
	}

	p := &Preparer{root: root, strategy: strategy, reporter: reporter}

	var steps []func() error
	switch strategy {
	case ContainerInit:
		steps = []func() error{p.addUsersAndGroups, p.createEntrypoint, p.createDescriptor}
	case NativeInit:
		steps = []func() error{p.createDescriptor}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStrategy, string(strategy))
	}

	slog.Debug("preparing build root", "strategy", strategy, "workdir", root.Workdir())
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := step(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Root returns the underlying build root.
func (p *Preparer) Root() *Root { return p.root }

// Strategy returns the pipeline the root was prepared with.
func (p *Preparer) Strategy() Strategy { return p.strategy }

// DescriptorPath returns the path of the rendered Dockerfile.
func (p *Preparer) DescriptorPath() string {
	return filepath.Join(p.root.Workdir(), DescriptorFileName)
}

// Export names the image after the installed primary service and builds the
// workdir with builder. memory is passed to the engine when non-empty.
func (p *Preparer) Export(ctx context.Context, namer Namer, memory string, builder *image.Builder) (*image.Image, error) {
	if p.destroyed {
		return nil, ErrRootDestroyed
	}

	p.reporter.Status(ui.StatusCreating, "Docker image")
	bctx := p.root.Context()

	name, tags, err := namer.ImageIdentifiers(bctx.InstalledPrimaryServiceIdent(), bctx.Channel())
	if err != nil {
		return nil, err
	}

	req := image.NewRequest(p.root.Workdir(), name)
	for _, tag := range tags {
		req = req.WithTag(tag)
	}
	if memory != "" {
		req = req.WithMemory(memory)
	}
	return builder.Build(ctx, req)
}

// Destroy removes the build root. The preparer is unusable afterwards, even
// when removal fails.
func (p *Preparer) Destroy() error {
	if p.destroyed {
		return ErrRootDestroyed
	}
	p.destroyed = true
	return p.root.Destroy()
}

func (p *Preparer) addUsersAndGroups() error {
	bctx := p.root.Context()

	users := bctx.Users()
	lines := make([]string, 0, len(users))
	for _, u := range users {
		p.reporter.Status(ui.StatusCreating, fmt.Sprintf("user '%s' in /%s", u.Name, passwdFile))
		lines = append(lines, u.String())
	}
	if err := appendLines(filepath.Join(bctx.RootFS(), passwdFile), lines); err != nil {
		return err
	}

	groups := bctx.Groups()
	lines = make([]string, 0, len(groups))
	for _, g := range groups {
		p.reporter.Status(ui.StatusCreating, fmt.Sprintf("group '%s' in /%s", g.Name, groupFile))
		lines = append(lines, g.String())
	}
	return appendLines(filepath.Join(bctx.RootFS(), groupFile), lines)
}

func (p *Preparer) createEntrypoint() error {
	p.reporter.Status(ui.StatusCreating, "entrypoint script")
	bctx := p.root.Context()

	shellPkg, err := PkgPathFor(bctx.Shell(), bctx.RootFS())
	if err != nil {
		return err
	}

	script, err := render("init.sh.tmpl", entrypointData{
		BusyboxShell:        path.Join(shellPkg, "bin", "sh"),
		Path:                bctx.EnvPath(),
		SupBin:              path.Join(bctx.BinPath(), "hab") + " sup",
		PrimaryServiceIdent: bctx.PrimaryServiceIdent().String(),
	})
	if err != nil {
		return err
	}
	if _, err := syntax.NewParser().Parse(strings.NewReader(script), EntrypointFileName); err != nil {
		return fmt.Errorf("rendered entrypoint is not a valid shell script: %w", err)
	}

	target := filepath.Join(bctx.RootFS(), EntrypointFileName)
	if err := writeFile(target, script, 0o755); err != nil {
		return err
	}
	// The umask may have stripped execute bits.
	if err := os.Chmod(target, 0o755); err != nil {
		return fmt.Errorf("failed to make %s executable: %w", target, err)
	}
	p.reporter.Status(ui.StatusCreated, "entrypoint script")
	return nil
}

func (p *Preparer) createDescriptor() error {
	p.reporter.Status(ui.StatusCreating, "image Dockerfile")
	bctx := p.root.Context()

	habPkg, err := PkgPathFor(bctx.Supervisor(), bctx.RootFS())
	if err != nil {
		return err
	}

	env := bctx.Environment()
	vars := make([]envVar, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		vars = append(vars, envVar{Key: k, Value: env[k]})
	}

	idents := bctx.Packages()
	packages := make([]string, 0, len(idents))
	for _, ident := range idents {
		packages = append(packages, ident.String())
	}

	name := "Dockerfile.tmpl"
	if p.strategy == NativeInit {
		name = "Dockerfile_native.tmpl"
	}
	descriptor, err := render(name, descriptorData{
		BaseImage:                    bctx.BaseImage(),
		RootFS:                       filepath.Base(bctx.RootFS()),
		Path:                         bctx.EnvPath(),
		HabPath:                      path.Join(habPkg, "bin", "hab"),
		Exposes:                      strings.Join(bctx.Exposes(), " "),
		MultiLayer:                   bctx.MultiLayer(),
		PrimaryServiceIdent:          bctx.PrimaryServiceIdent().String(),
		InstalledPrimaryServiceIdent: bctx.InstalledPrimaryServiceIdent().String(),
		Environment:                  vars,
		Packages:                     packages,
	})
	if err != nil {
		return err
	}

	if err := writeFile(p.DescriptorPath(), descriptor, 0o644); err != nil {
		return err
	}
	p.reporter.Status(ui.StatusCreated, "image Dockerfile")
	return nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

// writeFile truncates and writes content to target, creating parents first.
func writeFile(target, content string, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", target, err)
	}
	if err := os.WriteFile(target, []byte(content), perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return nil
}

// appendLines appends one line per entry to target without deduplicating
// against existing content.
func appendLines(target string, lines []string) (err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", target, err)
	}
	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", target, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", target, closeErr)
		}
	}()

	for _, line := range lines {
		if _, err := fmt.Fprintln(f, line); err != nil {
			return fmt.Errorf("failed to append to %s: %w", target, err)
		}
	}
	return nil
}
