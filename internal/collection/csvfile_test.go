package collection_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cartkeep/internal/collection"
)

func storeAt(t *testing.T) *collection.CSVStore {
	t.Helper()
	return collection.NewCSVStore(filepath.Join(t.TempDir(), "collection.csv"))
}

func TestLoadMissingFileYieldsEmptyCollection(t *testing.T) {
	store := storeAt(t)
	records, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty collection, got %d records", len(records))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := storeAt(t)
	in := []collection.Record{
		{
			Provider: collection.ProviderTIC80, ProviderID: "2",
			Title: "Bravo", Author: "b", Category: "Tools",
			DownloadURL: "https://x.test/2.tic", Fingerprint: "bb",
			PageURL:     "https://x.test/games/2",
			PublishedAt: 1700000000,
			Include:     collection.Included,
			IPFSCID:     "bafybeibravo",
			Status:      collection.StatusSynced, LastSynced: "bb", FileMD5: "bb",
		},
		{
			Provider: collection.ProviderTIC80, ProviderID: "1",
			Title: "Alpha", Fingerprint: "aa",
			NameOverride: "A, with \"commas\"",
			Status:       collection.StatusNew,
		},
	}

	ctx := context.Background()
	if err := store.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}

	// Save sorts by display name; the override sorts "A, with..." first.
	if out[0].ProviderID != "1" || out[1].ProviderID != "2" {
		t.Fatalf("unexpected order: %s, %s", out[0].ProviderID, out[1].ProviderID)
	}
	if out[0].NameOverride != "A, with \"commas\"" {
		t.Fatalf("quoting lost: %q", out[0].NameOverride)
	}
	if out[1] != in[0] {
		t.Fatalf("round trip drifted:\n%+v\n%+v", out[1], in[0])
	}
}

func TestLoadLaterDuplicateRowWins(t *testing.T) {
	store := storeAt(t)
	csv := strings.Join([]string{
		"provider,provider_id,title,status",
		"tic80,1,First,NEW",
		"tic80,1,Second,NEW",
	}, "\n") + "\n"
	if err := os.WriteFile(store.Path(), []byte(csv), 0o644); err != nil {
		t.Fatalf("write store: %v", err)
	}

	records, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Title != "Second" {
		t.Fatalf("later row must win, got %q", records[0].Title)
	}
}

func TestLoadRejectsMissingProviderID(t *testing.T) {
	store := storeAt(t)
	csv := "provider,provider_id,title\ntic80,,No ID\n"
	if err := os.WriteFile(store.Path(), []byte(csv), 0o644); err != nil {
		t.Fatalf("write store: %v", err)
	}
	if _, err := store.Load(context.Background()); err == nil {
		t.Fatal("expected error for row without provider id")
	}
}

func TestLoadRejectsUnknownStatus(t *testing.T) {
	store := storeAt(t)
	csv := "provider,provider_id,status\ntic80,1,WEIRD\n"
	if err := os.WriteFile(store.Path(), []byte(csv), 0o644); err != nil {
		t.Fatalf("write store: %v", err)
	}
	if _, err := store.Load(context.Background()); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestLoadToleratesColumnReordering(t *testing.T) {
	store := storeAt(t)
	csv := strings.Join([]string{
		"title,provider_id,provider,include",
		"Shuffled,7,tic80,T",
	}, "\n") + "\n"
	if err := os.WriteFile(store.Path(), []byte(csv), 0o644); err != nil {
		t.Fatalf("write store: %v", err)
	}

	records, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 1 || records[0].Title != "Shuffled" || records[0].Include != collection.Included {
		t.Fatalf("header-driven parse failed: %+v", records)
	}
}

func TestSaveDoesNotReorderInput(t *testing.T) {
	store := storeAt(t)
	in := []collection.Record{
		{Provider: collection.ProviderTIC80, ProviderID: "2", Title: "Zed", Status: collection.StatusNew},
		{Provider: collection.ProviderTIC80, ProviderID: "1", Title: "Alpha", Status: collection.StatusNew},
	}
	if err := store.Save(context.Background(), in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if in[0].Title != "Zed" {
		t.Fatalf("input slice reordered: %+v", in)
	}
}
