// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from config.cue in the platform config directory
// ($XDG_CONFIG_HOME/enginedesk on Linux, ~/Library/Application Support/enginedesk on
// macOS, %APPDATA%\enginedesk on Windows) or from an explicit path. Files are
// validated against the embedded config_schema.cue before being merged into Viper,
// and ENGINEDESK_* environment variables override scalar settings.
package config
