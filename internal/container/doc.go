// SPDX-License-Identifier: MPL-2.0

// Package container provides a unified abstraction layer for the container engines (Docker/Podman)
// used to turn a prepared build root into an image.
//
// The Engine interface covers the image lifecycle the exporter drives: Build, ImageID, Push and
// RemoveImage. Two implementations are provided, DockerEngine and PodmanEngine, both embedding
// BaseCLIEngine for shared CLI argument construction and command execution.
//
// A non-zero exit status of the engine CLI is reported as an ExitCode, never as an error. Errors
// are reserved for infrastructure failures such as a missing binary or an unreadable build context.
//
// Engine selection uses NewEngine(EngineType) with automatic fallback if the preferred engine
// is unavailable, or AutoDetectEngine() for preference-less detection (Docker is tried first).
package container
