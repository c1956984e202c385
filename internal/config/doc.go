// Package config loads, normalizes, and validates the TOML configuration.
// Validation failures are fatal before any processing starts; path fields are
// expanded to absolute paths during load.
package config
