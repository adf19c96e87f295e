package collection

// Status is the engine-computed lifecycle of a record relative to its
// upstream. It is orthogonal to the inclusion flag: exclusion filters a
// record out of sync and export, it never changes the lifecycle value.
type Status string

const (
	// StatusNew marks a record seen upstream but never downloaded.
	StatusNew Status = "NEW"
	// StatusSynced marks a record whose local assets match upstream.
	StatusSynced Status = "SYNCED"
	// StatusUpdateAvailable marks a record whose upstream fingerprint moved
	// past what is installed locally.
	StatusUpdateAvailable Status = "UPDATE_AVAILABLE"
	// StatusRemovedUpstream marks a record that disappeared from its
	// upstream. Records are never deleted automatically; provider fields
	// freeze at their last known values.
	StatusRemovedUpstream Status = "REMOVED_UPSTREAM"
)

// Known reports whether s is one of the defined lifecycle values.
func (s Status) Known() bool {
	switch s {
	case StatusNew, StatusSynced, StatusUpdateAvailable, StatusRemovedUpstream:
		return true
	}
	return false
}
