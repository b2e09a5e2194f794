// Package config loads, normalizes, and validates wavedeck configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// WAVEDECK_API_TOKEN. The Config type centralizes every knob the daemon and CLI
// need: the output root where rips, recordings, stems, and pitch renders land,
// the external tool binaries, and the pitch engine's framing parameters.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enum values, and clear validation errors.
package config
