// Package config loads, normalizes, and validates the TOML configuration
// that drives the import pipeline.
package config
