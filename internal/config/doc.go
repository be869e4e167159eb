// Package config provides configuration management for pagelens.
//
// This package implements a simple configuration system that loads
// configuration from a single directory. The default configuration directory
// is ~/.config/pagelens, but users can specify a custom directory using the
// --config-path flag in commands.
//
// # Configuration Directory
//
// Configuration is loaded from a single directory containing:
//   - config.yaml (main configuration file)
//   - credentials/ (session files when file storage is selected)
//
// Default location: ~/.config/pagelens
// Custom location: Specified via --config-path flag
//
// # Precedence
//
// Values are resolved in three layers, later layers winning:
//
//  1. Built-in defaults (GetDefaultConfig)
//  2. config.yaml in the configuration directory
//  3. PAGELENS_* environment variables
//
// A missing config.yaml is not an error; the defaults describe the hosted
// pagelens service and work out of the box.
//
// # Environment Variables
//
//   - PAGELENS_AUTH_BASE_URL: identity provider base URL
//   - PAGELENS_AUTH_CLIENT_ID: OAuth client identifier
//   - PAGELENS_AUTH_SCOPES: space-separated OAuth scopes
//   - PAGELENS_AUTH_CALLBACK_PORT: local port for the login redirect
//   - PAGELENS_AUTH_STORAGE: credential storage backend (keyring or file)
package config
