// Package naming derives deterministic collection-relative paths for every
// asset role of a record. Derivation is a pure function of the record fields
// and an immutable naming configuration: no counters, no arrival-order
// disambiguation. Two records deriving the same path is a conflict the sync
// planner reports, never something this package resolves silently.
package naming
