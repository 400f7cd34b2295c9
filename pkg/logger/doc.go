// Package logger builds the service's slog logger: JSON records in prod, text
// records elsewhere, each tagged with the service name and environment.
package logger
