// Package config loads, normalizes, and validates holoexport configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and centralizes every knob the export daemon
// and CLI need: staging and export directories, FFmpeg discovery overrides,
// worker limits, and logging output.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
