// Package textutil provides small string helpers for output naming.
//
// SanitizeFileName strips characters that are unsafe in file and archive
// entry names; UniqueName disambiguates repeated names with numeric suffixes.
package textutil
