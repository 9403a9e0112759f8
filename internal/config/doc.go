// Package config defines the application's configuration structures and
// loading logic. Configuration is sourced from environment variables with a
// RELAY_ prefix, with an optional YAML file for local development, and is
// validated before use.
package config
