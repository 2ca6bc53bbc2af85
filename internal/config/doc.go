// Package config loads, normalizes, and validates the gradescan TOML
// configuration. All path fields are expanded to absolute paths during Load
// and a sample config can be written for first-time setup.
package config
