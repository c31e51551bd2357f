// Package mapping loads the substitution tables that drive subtitle repair.
//
// A table is read from a CSV source whose header names a "corrupted" and a
// "replacement" column. Rows become ordered entries; when a corrupted sequence
// appears more than once the later replacement wins while the entry keeps the
// position of its first row. Tables are immutable once built and safe to share
// between goroutines.
//
// The package also embeds a default table covering the common Turkish and
// typographic mojibake produced when UTF-8 or Windows-1254 text is read as
// Windows-1252.
package mapping
