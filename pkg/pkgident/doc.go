// SPDX-License-Identifier: MPL-2.0

// Package pkgident parses and compares package identifiers of the form
// origin/name[/version[/release]].
//
// An identifier is fully qualified when all four parts are present. Partially
// qualified identifiers act as requirements: an installed (fully qualified)
// identifier satisfies a requirement when every part the requirement sets matches.
package pkgident
