package collection

// SourceRecord is one raw entry from a provider snapshot, already normalized
// to the shared shape every adapter returns.
type SourceRecord struct {
	ProviderID  string
	Title       string
	Author      string
	Description string
	Category    string
	DownloadURL string
	CoverURL    string
	PageURL     string
	Fingerprint string
	License     License
	PublishedAt int64
	UpdatedAt   int64
}

// Snapshot is a point-in-time view of everything one provider currently
// publishes. Reconciliation treats absence from a snapshot as upstream
// removal for that provider's records.
type Snapshot struct {
	Provider Provider
	Records  []SourceRecord
}
