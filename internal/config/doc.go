// Package config loads, normalizes, and validates cartkeep configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob
// the CLI needs: library layout, record store location, filename derivation
// rules, provider settings, and sync behavior.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical naming modes, and clear validation errors.
package config
