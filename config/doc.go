// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including the link source, cache store, rotation strategy, fallback
// destination, referer tagging and crawler placeholder settings.
package config
