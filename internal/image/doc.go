// SPDX-License-Identifier: MPL-2.0

// Package image builds a container image from a prepared build directory and
// manages the resulting local image: pushing it to a registry, removing it, and
// writing a build report for downstream automation.
//
// An image is addressed by a name and an ordered, possibly empty, list of tags.
// Every engine operation targets the expanded identifiers of that pair (see
// ExpandIdentifiers), in tag order. Multi-tag push and remove are sequential and
// stop at the first non-zero exit status; tags already pushed or removed are
// not rolled back.
package image
