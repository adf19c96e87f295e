package collection

import (
	"strings"
	"time"
)

// Provider names an upstream source of cartridge records.
type Provider string

const (
	ProviderTIC80 Provider = "tic80"
	ProviderItch  Provider = "itch"
)

// Identity is the immutable (provider, provider-local id) key for a record.
type Identity struct {
	Provider   Provider
	ProviderID string
}

// IsZero reports whether the identity is missing its provider-local id.
func (id Identity) IsZero() bool {
	return strings.TrimSpace(id.ProviderID) == ""
}

func (id Identity) String() string {
	return string(id.Provider) + "/" + id.ProviderID
}

// AssetTag returns the identity token embedded in derived filenames. The
// provider qualifies the provider-local id so records from different
// providers can never be attributed to each other's files.
func (id Identity) AssetTag() string {
	return string(id.Provider) + "-" + id.ProviderID
}

// Include is the human-set inclusion flag. It is a tri-state so that "never
// curated" stays distinguishable from an explicit include or exclude.
type Include string

const (
	IncludeDefault Include = ""
	Included       Include = "T"
	Excluded       Include = "F"
)

// License tags how a cartridge may be redistributed.
type License string

// LicenseRestricted marks records that must be left out of
// distribution-safe exports.
const LicenseRestricted License = "restricted"

// Record is the canonical entity for one cartridge: exactly one per identity.
//
// Field ownership is the central contract of the reconciliation engine:
// provider-owned fields are always overwritten by the latest snapshot for the
// record's identity, user-owned fields are only ever changed by a human
// editing the store, and engine-owned fields are computed by reconciliation
// and sync.
type Record struct {
	Provider   Provider
	ProviderID string

	// Provider-owned.
	Title       string
	Author      string
	Description string
	Category    string
	DownloadURL string
	CoverURL    string
	PageURL     string // provider page for the record, "" when the listing is the page
	Fingerprint string // upstream content fingerprint (hash or revision token)
	License     License
	PublishedAt int64 // unix seconds, 0 when unknown
	UpdatedAt   int64 // unix seconds, 0 when unknown

	// User-owned.
	NameOverride        string
	SortName            string
	DescriptionOverride string
	CategoryOverride    string
	Include             Include
	IPFSCID             string // pinned content id; when set, the ROM is fetched over IPFS

	// Engine-owned.
	Status     Status
	LastSynced string // fingerprint of the content last installed on disk
	FileMD5    string
	FileSHA1   string
	FileCRC    string
}

// Identity returns the record's immutable key.
func (r *Record) Identity() Identity {
	return Identity{Provider: r.Provider, ProviderID: r.ProviderID}
}

// DisplayName returns the user override when set, otherwise the provider
// title.
func (r *Record) DisplayName() string {
	if name := strings.TrimSpace(r.NameOverride); name != "" {
		return name
	}
	return strings.TrimSpace(r.Title)
}

// EffectiveCategory returns the user category override when set, otherwise
// the provider category, defaulting to "Games".
func (r *Record) EffectiveCategory() string {
	if cat := strings.TrimSpace(r.CategoryOverride); cat != "" {
		return cat
	}
	if cat := strings.TrimSpace(r.Category); cat != "" {
		return cat
	}
	return "Games"
}

// BestTimestamp returns the most relevant content timestamp for the record:
// the update time when known, otherwise the publish time.
func (r *Record) BestTimestamp() int64 {
	if r.UpdatedAt > 0 {
		return r.UpdatedAt
	}
	return r.PublishedAt
}

// BestDate formats BestTimestamp as a UTC calendar date, or "" when unknown.
func (r *Record) BestDate() string {
	ts := r.BestTimestamp()
	if ts <= 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}

// IsExcluded reports whether the operator explicitly excluded the record.
func (r *Record) IsExcluded() bool {
	return r.Include == Excluded
}

// IsRemoved reports whether the record has disappeared from its upstream.
func (r *Record) IsRemoved() bool {
	return r.Status == StatusRemovedUpstream
}

// SortKey orders records for stable store output and listings: display name
// first, then the zero-padded provider id so identically named entries keep
// a fixed order.
func (r *Record) SortKey() string {
	name := strings.ToLower(strings.TrimSpace(r.SortName))
	if name == "" {
		name = strings.ToLower(r.DisplayName())
	}
	id := r.ProviderID
	for len(id) < 10 {
		id = "0" + id
	}
	return name + " " + string(r.Provider) + "/" + id
}
