package reconcile

import (
	"strings"

	"cartkeep/internal/collection"
)

// Merge reconciles one provider snapshot into the record set and returns the
// updated set plus a change report. The input slice is never mutated: the
// next store version is built fully in memory so a failure can never persist
// a partial merge. Records belonging to other providers pass through
// untouched.
func Merge(records []collection.Record, snap *collection.Snapshot) ([]collection.Record, Report) {
	report := Report{Provider: snap.Provider}

	merged := make([]collection.Record, len(records))
	copy(merged, records)

	index := make(map[string]int, len(merged))
	for i := range merged {
		if merged[i].Provider == snap.Provider {
			index[merged[i].ProviderID] = i
		}
	}

	seen := make(map[string]struct{}, len(snap.Records))
	for _, src := range snap.Records {
		id := strings.TrimSpace(src.ProviderID)
		if id == "" {
			report.Skipped = append(report.Skipped, SkippedEntry{
				Title:  src.Title,
				Reason: "missing provider id",
			})
			continue
		}
		if _, dup := seen[id]; dup {
			report.Skipped = append(report.Skipped, SkippedEntry{
				Title:  src.Title,
				Reason: "duplicate provider id " + id + " in snapshot",
			})
			continue
		}
		seen[id] = struct{}{}

		if i, ok := index[id]; ok {
			if applyUpdate(&merged[i], &src) {
				report.Updated++
			} else {
				report.Unchanged++
			}
			continue
		}

		merged = append(merged, newRecord(snap.Provider, &src))
		report.Added++
	}

	// Identities absent from the snapshot soften to REMOVED_UPSTREAM.
	// Provider fields freeze at their last known values; nothing is purged,
	// since user overrides and downloaded files must survive.
	for i := range merged {
		if merged[i].Provider != snap.Provider {
			continue
		}
		if _, ok := seen[merged[i].ProviderID]; ok {
			continue
		}
		if merged[i].Status != collection.StatusRemovedUpstream {
			merged[i].Status = collection.StatusRemovedUpstream
			report.Removed++
		}
	}

	return merged, report
}

func newRecord(provider collection.Provider, src *collection.SourceRecord) collection.Record {
	rec := collection.Record{
		Provider:   provider,
		ProviderID: strings.TrimSpace(src.ProviderID),
		Status:     collection.StatusNew,
	}
	setProviderFields(&rec, src)
	return rec
}

// applyUpdate overwrites provider-owned fields from the snapshot entry and
// recomputes the lifecycle status. User-owned fields are not touched under
// any branch; that contract is what distinguishes this merge from a naive
// upsert. Returns true when any field or the status changed.
func applyUpdate(rec *collection.Record, src *collection.SourceRecord) bool {
	before := *rec
	setProviderFields(rec, src)

	switch {
	case rec.Status == collection.StatusNew && rec.LastSynced == "":
		// Never downloaded: stays NEW until a sync installs it, no matter
		// how often upstream moves in the meantime.
	case rec.Fingerprint == rec.LastSynced:
		rec.Status = collection.StatusSynced
	default:
		// Local assets are stale but stay on disk until a replacement
		// download succeeds.
		rec.Status = collection.StatusUpdateAvailable
	}

	return *rec != before
}

func setProviderFields(rec *collection.Record, src *collection.SourceRecord) {
	rec.Title = strings.TrimSpace(src.Title)
	rec.Author = strings.TrimSpace(src.Author)
	rec.Description = strings.TrimSpace(src.Description)
	rec.Category = strings.TrimSpace(src.Category)
	// Some providers publish no direct cart URL in their listings; the URL
	// is resolved later from the record's page. An empty snapshot value
	// means "not listed", not "gone", so a resolved URL survives the merge.
	if url := strings.TrimSpace(src.DownloadURL); url != "" || strings.TrimSpace(src.PageURL) == "" {
		rec.DownloadURL = url
	}
	rec.CoverURL = strings.TrimSpace(src.CoverURL)
	rec.PageURL = strings.TrimSpace(src.PageURL)
	rec.Fingerprint = strings.TrimSpace(src.Fingerprint)
	rec.License = src.License
	rec.PublishedAt = src.PublishedAt
	rec.UpdatedAt = src.UpdatedAt
}
