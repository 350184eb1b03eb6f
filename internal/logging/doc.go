// Package logging builds the slog loggers used across holoexport.
//
// It supports console and JSON output, multiple destinations, and shared
// attribute helpers so every component logs with the same field names.
package logging
