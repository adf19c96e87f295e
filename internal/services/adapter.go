package services

import (
	"context"

	"cartkeep/internal/collection"
)

// Adapter is the capability every provider exposes to the sync run: produce
// a point-in-time snapshot of everything it currently publishes. Adapters
// hide transport details entirely; a failed fetch aborts reconciliation for
// that provider only.
type Adapter interface {
	Provider() collection.Provider
	FetchSnapshot(ctx context.Context) (*collection.Snapshot, error)
}
