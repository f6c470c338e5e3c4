// Package config loads the confsync daemon configuration from YAML, .env and
// CONFSYNC_* environment variables.
package config
