// Package syncexec applies a sync plan to the filesystem. Actions touching
// the same asset run in plan order; independent assets run concurrently on a
// bounded worker pool. Every action is failure-isolated: a failed download
// leaves whatever was on disk untouched, a failed backup withholds the
// replacement download, and partial downloads live in a temp file until they
// are complete and verified, then move into place atomically.
package syncexec
