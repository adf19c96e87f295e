// Package collection defines the canonical record model for the cartridge
// collection: record identity, provider-owned and user-owned fields, lifecycle
// status, asset roles, and the persistence contract for the record store.
package collection
