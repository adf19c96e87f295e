package export

import (
	"fmt"

	"cartkeep/internal/collection"
)

// Profile names an inclusion policy over the record store.
type Profile string

const (
	// ProfileCurated keeps records the operator explicitly included, as
	// long as they are still present upstream.
	ProfileCurated Profile = "curated"
	// ProfileAlmostAll keeps every record not explicitly excluded.
	ProfileAlmostAll Profile = "almost-all"
	// ProfileAll keeps every record still present upstream, ignoring the
	// inclusion flag entirely.
	ProfileAll Profile = "all"
	// ProfileDistributionSafe is ProfileCurated minus records whose license
	// forbids redistribution.
	ProfileDistributionSafe Profile = "distribution-safe"
)

// Profiles lists the selectable profiles in display order.
var Profiles = []Profile{ProfileCurated, ProfileAlmostAll, ProfileAll, ProfileDistributionSafe}

// ParseProfile validates a user-supplied profile name.
func ParseProfile(name string) (Profile, error) {
	for _, p := range Profiles {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown export profile %q", name)
}

// Select returns the records matching the profile, preserving input order.
// Selection is pure: records are never modified.
func Select(records []collection.Record, profile Profile) []collection.Record {
	var out []collection.Record
	for i := range records {
		if matches(&records[i], profile) {
			out = append(out, records[i])
		}
	}
	return out
}

func matches(rec *collection.Record, profile Profile) bool {
	switch profile {
	case ProfileCurated:
		return curated(rec)
	case ProfileAlmostAll:
		return !rec.IsRemoved() && !rec.IsExcluded()
	case ProfileAll:
		return !rec.IsRemoved()
	case ProfileDistributionSafe:
		return curated(rec) && rec.License != collection.LicenseRestricted
	default:
		return false
	}
}

func curated(rec *collection.Record) bool {
	if rec.Include != collection.Included {
		return false
	}
	switch rec.Status {
	case collection.StatusNew, collection.StatusSynced, collection.StatusUpdateAvailable:
		return true
	}
	return false
}
