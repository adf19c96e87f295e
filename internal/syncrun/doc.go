// Package syncrun drives a full collection pass: fetch provider snapshots,
// reconcile them into the record store, derive the desired file layout,
// plan the filesystem actions, and execute them.
//
// The record store is read once at the start of a run and written once at
// the end. A flock-based run lock keeps concurrent passes from interleaving
// store writes.
package syncrun
