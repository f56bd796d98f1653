// SPDX-License-Identifier: MPL-2.0

package buildroot

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/invowk/imgexport/internal/buildctx"
)

// rootfsDirName is the directory inside the workdir holding the staged root.
const rootfsDirName = "rootfs"

// ErrRootDestroyed is returned by every operation on a destroyed root or preparer.
var ErrRootDestroyed = errors.New("build root already destroyed")

type (
	// StageOption configures Stage.
	StageOption func(*stageOptions)

	stageOptions struct {
		parent string
	}

	// Root is a staged build root: a private workdir holding a copy of the
	// root filesystem. It is owned by one preparer and removed by Destroy.
	Root struct {
		workdir   string
		ctx       *buildctx.Context
		destroyed bool
	}
)

// WithParentDir stages under dir instead of the default staging parent.
func WithParentDir(dir string) StageOption {
	return func(o *stageOptions) {
		o.parent = dir
	}
}

// DefaultParentDir returns the directory staging workdirs are created in.
//
// Docker installed via Snap cannot see /tmp or hidden directories in $HOME,
// so a visible directory in the home directory is preferred, then one in the
// working directory, then the system temp dir.
func DefaultParentDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		if _, statErr := os.Stat(home); statErr == nil {
			return filepath.Join(home, "imgexport-build")
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, ".imgexport-build")
	}
	return filepath.Join(os.TempDir(), "imgexport-build")
}

// Stage copies the root filesystem of bctx into a new temporary workdir. The
// returned Root's context points at the staged copy.
func Stage(bctx *buildctx.Context, opts ...StageOption) (*Root, error) {
	o := stageOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.parent == "" {
		o.parent = DefaultParentDir()
	}

	if err := os.MkdirAll(o.parent, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging parent directory: %w", err)
	}
	workdir, err := os.MkdirTemp(o.parent, "imgexport-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	rootfs := filepath.Join(workdir, rootfsDirName)
	slog.Debug("staging root filesystem", "src", bctx.RootFS(), "workdir", workdir)
	if err := copyTree(bctx.RootFS(), rootfs); err != nil {
		_ = removeTree(workdir) // Staging failed; the partial copy is useless
		return nil, fmt.Errorf("failed to stage root filesystem %s: %w", bctx.RootFS(), err)
	}

	return &Root{workdir: workdir, ctx: bctx.WithRootFS(rootfs)}, nil
}

// Workdir returns the directory used as the image build context.
func (r *Root) Workdir() string { return r.workdir }

// RootFS returns the staged root filesystem inside the workdir.
func (r *Root) RootFS() string { return r.ctx.RootFS() }

// Context returns the build context rebased onto the staged root.
func (r *Root) Context() *buildctx.Context { return r.ctx }

// Destroy removes the workdir. Calling it again is a no-op.
func (r *Root) Destroy() error {
	if r.destroyed {
		return nil
	}
	r.destroyed = true
	slog.Debug("removing build root", "workdir", r.workdir)
	if err := removeTree(r.workdir); err != nil {
		return fmt.Errorf("failed to remove build root %s: %w", r.workdir, err)
	}
	return nil
}
