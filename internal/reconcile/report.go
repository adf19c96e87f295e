package reconcile

import (
	"fmt"

	"cartkeep/internal/collection"
)

// SkippedEntry records one malformed snapshot entry that was skipped.
type SkippedEntry struct {
	Title  string
	Reason string
}

// Report summarizes what one merge changed. Skipped entries are reported
// individually; they never abort the merge.
type Report struct {
	Provider  collection.Provider
	Added     int
	Updated   int
	Unchanged int
	Removed   int
	Skipped   []SkippedEntry
}

// Changed reports whether the merge altered any record.
func (r Report) Changed() bool {
	return r.Added > 0 || r.Updated > 0 || r.Removed > 0
}

func (r Report) String() string {
	return fmt.Sprintf("%s: %d added, %d updated, %d unchanged, %d removed upstream, %d skipped",
		r.Provider, r.Added, r.Updated, r.Unchanged, r.Removed, len(r.Skipped))
}
