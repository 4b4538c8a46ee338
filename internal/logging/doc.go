// Package logging constructs the slog loggers used across specimport and
// provides the shared attribute helpers components log with.
package logging
