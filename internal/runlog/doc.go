// Package runlog persists an append-only audit trail of sync runs in a
// SQLite database alongside the logs.
//
// The record store stays the single source of truth for collection state;
// the runlog only answers "what did past runs do and what failed", so it
// can be deleted at any time without losing collection data. If the schema
// changes, update schema.sql and bump schemaVersion.
package runlog
