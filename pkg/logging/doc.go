// Package logging provides a structured logging system for pagelens with
// unified log handling and level filtering.
//
// This package implements a logging system built on Go's standard slog
// package, providing consistent logging behavior with structured output.
//
// # Log Levels
//   - **Debug**: Detailed information for debugging and development
//   - **Info**: General informational messages about application operation
//   - **Warn**: Warning messages that indicate potential issues
//   - **Error**: Error messages for failures and exceptional conditions
//
// # Usage Examples
//
//	import "pagelens/pkg/logging"
//
//	// Initialize with Info level logging to stderr
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	// Log messages
//	logging.Info("ConfigLoader", "Loaded configuration from %s", configPath)
//	logging.Debug("Auth", "Using callback port %d", port)
//	logging.Warn("Store", "Falling back to file storage")
//	logging.Error("Auth", err, "Login failed")
//
// # Subsystem Organization
//
// Logs are organized by subsystem to enable filtering and categorization:
//
//   - **ConfigLoader**: Configuration loading and validation
//   - **Auth**: Login, logout, and session lifecycle
//   - **Store**: Credential storage operations
//
// Components that take a *slog.Logger directly (the auth and oauth packages)
// receive the configured logger via Logger(), so their structured output ends
// up on the same writer with the same level filtering.
//
// # Integration with slog
//
// InitForCLI also installs the configured logger as the process-wide slog
// default, so direct slog calls from dependencies are formatted consistently.
package logging
