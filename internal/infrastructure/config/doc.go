// Package config loads server configuration.
//
// Values come from three layers, later layers winning:
//
//  1. Default()
//  2. an optional YAML (.yaml/.yml) or TOML (.toml) file, named by --config or CONFIG_FILE
//  3. environment variables (PORT, WORKSPACE_ROOT, TERMINAL_MAX_SESSIONS, ...)
//
// Durations are written as Go duration strings ("2s", "250ms") in every layer.
package config
