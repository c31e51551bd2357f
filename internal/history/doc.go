// Package history journals repair runs in SQLite.
//
// Each CLI, watcher, or HTTP batch opens a run, records one row per input
// with the detected charset, replacement count, and any failure stage, and
// then closes the run with optional archive details. The journal is purely
// informational: callers log recording errors and carry on.
//
// The schema lives in schema.sql. Bump schemaVersion when it changes.
package history
