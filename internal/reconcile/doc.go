// Package reconcile merges provider snapshots into the canonical record set
// under strict field-ownership rules: provider-owned fields always follow the
// latest snapshot, user-owned curation is never touched, and lifecycle
// status transitions are computed from fingerprint comparison. Merging the
// same snapshot twice is a no-op on the second pass.
package reconcile
