// Package logging configures the process-wide slog logger for edm.
// Logs are JSON lines written to ~/.edm/logs/edm.log with size-based
// rotation; --debug additionally mirrors them to stderr.
package logging
