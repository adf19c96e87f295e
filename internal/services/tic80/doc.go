// Package tic80 implements the provider adapter for the tic80.com cartridge
// catalog: the category directory API for snapshots and the play page for
// per-cartridge timestamps and author metadata.
package tic80
