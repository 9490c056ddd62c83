// Package config loads, normalizes, and validates the subtide TOML
// configuration file and owns the default values for every subsystem.
package config
