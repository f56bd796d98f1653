// SPDX-License-Identifier: MPL-2.0

// Package buildctx loads the export manifest and exposes it as a read-only
// build context.
//
// A manifest is a CUE file validated against the embedded #Manifest schema.
// It names the base image, the populated root filesystem, the installed
// packages with their dependencies, and the users and groups the image needs.
// Load resolves the package dependency graph into dependency-first order,
// which is the order image layers are generated in.
package buildctx
