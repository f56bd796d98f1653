// SPDX-License-Identifier: MPL-2.0

package buildroot

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/invowk/imgexport/pkg/pkgident"
)

// ErrPackageNotInstalled is the sentinel error wrapped by PackageNotInstalledError.
var ErrPackageNotInstalled = errors.New("package not installed")

// PackageNotInstalledError is returned when no installed release under the
// root satisfies an ident.
type PackageNotInstalledError struct {
	Ident  pkgident.PackageIdent
	RootFS string
}

func (e *PackageNotInstalledError) Error() string {
	return fmt.Sprintf("package %s is not installed in %s", e.Ident, e.RootFS)
}

// Unwrap returns ErrPackageNotInstalled for errors.Is() compatibility.
func (e *PackageNotInstalledError) Unwrap() error { return ErrPackageNotInstalled }

// PkgPathFor returns the in-image absolute path of the installed package that
// satisfies ident, e.g. /hab/pkgs/core/redis/4.0.14/20190319155852. A
// partially qualified ident resolves to its latest installed release. The
// result always uses forward slashes.
func PkgPathFor(ident pkgident.PackageIdent, rootfs string) (string, error) {
	base := filepath.Join(rootfs, "hab", "pkgs", ident.Origin, ident.Name)

	versions, err := os.ReadDir(base)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &PackageNotInstalledError{Ident: ident, RootFS: rootfs}
		}
		return "", fmt.Errorf("failed to read %s: %w", base, err)
	}

	var (
		best  pkgident.PackageIdent
		found bool
	)
	for _, v := range versions {
		if !v.IsDir() {
			continue
		}
		releases, err := os.ReadDir(filepath.Join(base, v.Name()))
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", filepath.Join(base, v.Name()), err)
		}
		for _, r := range releases {
			if !r.IsDir() {
				continue
			}
			candidate := pkgident.PackageIdent{Origin: ident.Origin, Name: ident.Name, Version: v.Name(), Release: r.Name()}
			if !candidate.Satisfies(ident) {
				continue
			}
			if !found || pkgident.Compare(candidate, best) > 0 {
				best, found = candidate, true
			}
		}
	}
	if !found {
		return "", &PackageNotInstalledError{Ident: ident, RootFS: rootfs}
	}

	return path.Join("/hab/pkgs", best.Origin, best.Name, best.Version, best.Release), nil
}
