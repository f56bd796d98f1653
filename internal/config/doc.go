// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/imgexport/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/imgexport/config.cue on macOS, %APPDATA%\imgexport\config.cue
// on Windows), falling back to ./config.cue. Every key can be overridden from the environment
// with the IMGEXPORT_ prefix, nested keys joined by underscores (IMGEXPORT_NAMING_LATEST_TAG).
//
// Configuration validation is performed against a CUE schema (config_schema.cue) to ensure
// type safety and provide clear error messages for invalid configurations.
package config
