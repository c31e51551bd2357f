// Package config loads, normalizes, and validates srtfix configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the SRTFIX_MAPPING environment
// override for the mapping table. The Config type centralizes every knob the
// CLI, watcher, and HTTP server need so they resolve paths and limits in one
// pass.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical log formats, and clear validation errors.
package config
