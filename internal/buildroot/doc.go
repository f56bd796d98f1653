// SPDX-License-Identifier: MPL-2.0

// Package buildroot stages a populated root filesystem into a private work
// directory and turns it into a buildable image context.
//
// Stage copies the root filesystem named by a build context into a fresh
// temporary directory. Prepare then runs one of two pipelines chosen up front:
// the container-init pipeline adds users, groups and an /init.sh entrypoint
// before rendering the Dockerfile; the native-init pipeline only renders the
// Dockerfile. Export builds the prepared directory with an image.Builder.
package buildroot
