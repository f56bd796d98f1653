// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and remediation
// hints. The Issue catalog holds Markdown guidance for the failure classes of an image
// export (manifest problems, engine availability, build, push and cleanup failures),
// rendered for the terminal with glamour.
package issue
