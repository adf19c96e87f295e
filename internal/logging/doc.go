// Package logging builds the slog loggers used across cartkeep and holds
// the shared attribute helpers so call sites stay terse and field names
// stay consistent.
package logging
