// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/kiln/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/kiln/config.cue on macOS, %APPDATA%\kiln\config.cue
// on Windows). It declares the artifact cache directory, the repositories to query, the
// resolution engine settings and UI preferences. Every setting can be overridden through
// KILN_* environment variables, e.g. KILN_RESOLUTION_CONFLICT_STRATEGY.
//
// Configuration validation is performed against a CUE schema (config_schema.cue) to ensure
// type safety and provide clear error messages for invalid configurations.
package config
