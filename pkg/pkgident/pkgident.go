// SPDX-License-Identifier: MPL-2.0

package pkgident

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidIdent is the sentinel error wrapped by InvalidIdentError.
var ErrInvalidIdent = errors.New("invalid package identifier")

type (
	// PackageIdent identifies a package as origin/name[/version[/release]].
	PackageIdent struct {
		Origin  string
		Name    string
		Version string
		Release string
	}

	// InvalidIdentError is returned when a string cannot be parsed as a PackageIdent.
	InvalidIdentError struct {
		Value  string
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidIdentError) Error() string {
	return fmt.Sprintf("invalid package identifier %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidIdent so callers can use errors.Is for programmatic detection.
func (e *InvalidIdentError) Unwrap() error { return ErrInvalidIdent }

// Parse parses an identifier string. Two to four non-empty slash-separated
// parts are accepted.
func Parse(s string) (PackageIdent, error) {
	parts := strings.Split(s, "/")
	if len(parts) < 2 || len(parts) > 4 {
		return PackageIdent{}, &InvalidIdentError{Value: s, Reason: "expected origin/name[/version[/release]]"}
	}
	for _, p := range parts {
		if p == "" {
			return PackageIdent{}, &InvalidIdentError{Value: s, Reason: "empty component"}
		}
		if strings.IndexFunc(p, unicode.IsSpace) >= 0 {
			return PackageIdent{}, &InvalidIdentError{Value: s, Reason: "whitespace in component"}
		}
	}

	id := PackageIdent{Origin: parts[0], Name: parts[1]}
	if len(parts) > 2 {
		id.Version = parts[2]
	}
	if len(parts) > 3 {
		id.Release = parts[3]
	}
	return id, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) PackageIdent {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the slash-separated form, omitting unset trailing parts.
func (p PackageIdent) String() string {
	var b strings.Builder
	b.WriteString(p.Origin)
	b.WriteByte('/')
	b.WriteString(p.Name)
	if p.Version != "" {
		b.WriteByte('/')
		b.WriteString(p.Version)
		if p.Release != "" {
			b.WriteByte('/')
			b.WriteString(p.Release)
		}
	}
	return b.String()
}

// Validate returns an error if origin or name is missing, or a release is set without a version.
func (p PackageIdent) Validate() error {
	if p.Origin == "" || p.Name == "" {
		return &InvalidIdentError{Value: p.String(), Reason: "origin and name are required"}
	}
	if p.Release != "" && p.Version == "" {
		return &InvalidIdentError{Value: p.String(), Reason: "release requires a version"}
	}
	return nil
}

// IsFullyQualified reports whether all four parts are set.
func (p PackageIdent) IsFullyQualified() bool {
	return p.Origin != "" && p.Name != "" && p.Version != "" && p.Release != ""
}

// Satisfies reports whether p matches every part set on req.
func (p PackageIdent) Satisfies(req PackageIdent) bool {
	if p.Origin != req.Origin || p.Name != req.Name {
		return false
	}
	if req.Version != "" && p.Version != req.Version {
		return false
	}
	if req.Release != "" && p.Release != req.Release {
		return false
	}
	return true
}

// Compare orders identifiers of the same package by version, then release.
// Versions compare dot-separated segment by segment, numerically when both
// segments are numbers. Releases are timestamps and compare numerically.
func Compare(a, b PackageIdent) int {
	if c := compareVersion(a.Version, b.Version); c != 0 {
		return c
	}
	return compareSegment(a.Release, b.Release)
}

func compareVersion(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}
	return len(as) - len(bs)
}

func compareSegment(a, b string) int {
	an, aerr := strconv.ParseUint(a, 10, 64)
	bn, berr := strconv.ParseUint(b, 10, 64)
	if aerr == nil && berr == nil {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}
