// Package config loads, normalizes, and validates templateflow configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TEMPLATEFLOW_DATA_DIR. The Config type centralizes every knob the daemon
// and CLI need: where the store lives, which role reviews work, how the
// realtime gateway buffers and throttles connections, and which bearer tokens
// map to which identities.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
