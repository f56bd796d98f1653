// SPDX-License-Identifier: MPL-2.0

package image

import "slices"

// Request describes an image to build. It is an immutable value: WithTag and
// WithMemory return modified copies.
type Request struct {
	workdir string
	name    string
	tags    []string
	memory  string
}

// NewRequest starts a request for an image named name built from workdir.
func NewRequest(workdir, name string) Request {
	return Request{workdir: workdir, name: name}
}

// WithTag returns a copy of r with tag appended. Duplicates are kept.
func (r Request) WithTag(tag string) Request {
	r.tags = append(slices.Clip(r.tags), tag)
	return r
}

// WithMemory returns a copy of r with the build memory limit set. The last
// call wins.
func (r Request) WithMemory(memory string) Request {
	r.memory = memory
	return r
}

// Workdir returns the build directory.
func (r Request) Workdir() string { return r.workdir }

// Name returns the image name.
func (r Request) Name() string { return r.name }

// Tags returns a copy of the tags in insertion order.
func (r Request) Tags() []string { return slices.Clone(r.tags) }

// Memory returns the memory limit, or "" when unset.
func (r Request) Memory() string { return r.memory }

// ExpandedIdentifiers returns ExpandIdentifiers(r.Name(), r.Tags()).
func (r Request) ExpandedIdentifiers() []string {
	return ExpandIdentifiers(r.name, r.tags)
}

// idReference is the identifier used to look up the built image id: the
// first tag when tags exist, otherwise the bare name.
func (r Request) idReference() string {
	if len(r.tags) == 0 {
		return r.name
	}
	return r.name + ":" + r.tags[0]
}
