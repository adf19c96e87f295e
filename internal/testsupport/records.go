package testsupport

import (
	"cartkeep/internal/collection"
)

// NewRecord builds a plausible tic80 record for tests. Callers mutate the
// returned value to set up the case under test.
func NewRecord(id, title string) collection.Record {
	return collection.Record{
		Provider:    collection.ProviderTIC80,
		ProviderID:  id,
		Title:       title,
		Author:      "someone",
		Category:    "Games",
		DownloadURL: "https://tic80.test/cart/" + id + "/cart.tic",
		CoverURL:    "https://tic80.test/cart/" + id + "/cover.gif",
		Fingerprint: "fp-" + id,
		PublishedAt: 1700000000,
		Status:      collection.StatusNew,
	}
}
