// Package repair fixes mojibake in subtitle files.
//
// An Engine reads a file, detects its encoding (byte-order mark, then
// well-formed UTF-8, then a statistical guess that must clear a confidence
// floor), decodes it strictly, and applies the mapping table as ordered
// literal substitutions. Each call is independent: failures are returned as
// *Error values tagged with the failing stage and never affect later calls.
//
// The engine never writes files. Callers own output naming, persistence, and
// packaging.
package repair
