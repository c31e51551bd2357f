// Package logging assembles structured slog loggers used across srtfix.
//
// It owns the console and JSON handlers, maps the [logging] config section
// onto levels and outputs, and offers context helpers that tag lines with
// batch run and HTTP request identifiers. A no-op logger is provided for
// tests and library callers that do not want output.
package logging
