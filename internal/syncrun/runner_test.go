package syncrun_test

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"cartkeep/internal/collection"
	"cartkeep/internal/config"
	"cartkeep/internal/runlog"
	"cartkeep/internal/services"
	"cartkeep/internal/syncrun"
	"cartkeep/internal/testsupport"
)

// fakeAdapter serves a canned snapshot or failure.
type fakeAdapter struct {
	provider collection.Provider
	snapshot *collection.Snapshot
	err      error
}

func (f *fakeAdapter) Provider() collection.Provider { return f.provider }

func (f *fakeAdapter) FetchSnapshot(ctx context.Context) (*collection.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

func newRunnerConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return cfg
}

func romServer(t *testing.T, romBytes []byte) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, ".tic"):
			_, _ = w.Write(romBytes)
		case strings.HasSuffix(r.URL.Path, ".gif"):
			_, _ = w.Write([]byte("not really a gif"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRunSyncEndToEnd(t *testing.T) {
	romBytes := []byte("cartridge payload")
	sum := md5.Sum(romBytes)
	fingerprint := hex.EncodeToString(sum[:])
	server := romServer(t, romBytes)

	cfg := newRunnerConfig(t)
	store := collection.NewCSVStore(cfg.Paths.StorePath)
	adapter := &fakeAdapter{
		provider: collection.ProviderTIC80,
		snapshot: &collection.Snapshot{
			Provider: collection.ProviderTIC80,
			Records: []collection.SourceRecord{{
				ProviderID:  "1",
				Title:       "Night Drive",
				Author:      "nightcoder",
				Category:    "Games",
				DownloadURL: server.URL + "/cart/1/cart.tic",
				CoverURL:    server.URL + "/cart/1/cover.gif",
				Fingerprint: fingerprint,
				PublishedAt: 1700000000,
			}},
		},
	}

	history, err := runlog.Open(cfg.Paths.LogDir)
	if err != nil {
		t.Fatalf("open runlog: %v", err)
	}
	defer history.Close()

	runner, err := syncrun.New(cfg, store, []services.Adapter{adapter}, history, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	ctx := context.Background()
	summary, err := runner.Run(ctx, syncrun.Options{Mode: syncrun.ModeSync})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 0 {
		t.Fatalf("failures: %+v", summary.Results)
	}
	if summary.Applied != 2 {
		t.Fatalf("applied = %d, want rom and cover", summary.Applied)
	}

	romPath := filepath.Join(cfg.Paths.LibraryDir, "roms", "Night Drive - tic80-1 (2023-11-14).tic")
	if got := testsupport.ReadFile(t, romPath); string(got) != string(romBytes) {
		t.Fatalf("installed rom content differs: %q", got)
	}

	records, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load store: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.Status != collection.StatusSynced {
		t.Fatalf("status = %q, want SYNCED", rec.Status)
	}
	if rec.LastSynced != fingerprint || !strings.EqualFold(rec.FileMD5, fingerprint) {
		t.Fatalf("sync state not folded back: %+v", rec)
	}

	runs, err := history.RecentRuns(ctx, 5)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Mode != "sync" || runs[0].ActionsApplied != 2 {
		t.Fatalf("run not audited: %+v", runs)
	}

	// A second pass over the same snapshot has nothing left to do.
	summary, err = runner.Run(ctx, syncrun.Options{Mode: syncrun.ModeSync})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.Plan == nil || !summary.Plan.Empty() {
		t.Fatalf("second run planned actions: %+v", summary.Plan)
	}
}

// enrichingAdapter resolves cart URLs on demand, the way the itch adapter
// scrapes them from each record's page.
type enrichingAdapter struct {
	fakeAdapter
	cartURL  string
	enriched []string
}

func (f *enrichingAdapter) Enrich(ctx context.Context, rec *collection.Record) error {
	f.enriched = append(f.enriched, rec.PageURL)
	rec.DownloadURL = f.cartURL
	return nil
}

func TestRunResolvesPageOnlyRecordsBeforePlanning(t *testing.T) {
	romBytes := []byte("paged cartridge")
	sum := md5.Sum(romBytes)
	fingerprint := hex.EncodeToString(sum[:])
	server := romServer(t, romBytes)

	cfg := newRunnerConfig(t)
	store := collection.NewCSVStore(cfg.Paths.StorePath)
	adapter := &enrichingAdapter{
		fakeAdapter: fakeAdapter{
			provider: collection.ProviderItch,
			snapshot: &collection.Snapshot{
				Provider: collection.ProviderItch,
				Records: []collection.SourceRecord{{
					ProviderID:  "77",
					Title:       "Paged Game",
					Author:      "someone",
					Category:    "Itch",
					PageURL:     "https://someone.itch.io/paged-game",
					Fingerprint: fingerprint,
					PublishedAt: 1700000000,
				}},
			},
		},
		cartURL: server.URL + "/frame/77/cart.tic",
	}

	runner, err := syncrun.New(cfg, store, []services.Adapter{adapter}, nil, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	summary, err := runner.Run(context.Background(), syncrun.Options{Mode: syncrun.ModeSync})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 0 {
		t.Fatalf("failures: %+v", summary.Results)
	}
	if len(adapter.enriched) != 1 || adapter.enriched[0] != "https://someone.itch.io/paged-game" {
		t.Fatalf("page-only record was not resolved: %v", adapter.enriched)
	}

	romPath := filepath.Join(cfg.Paths.LibraryDir, "roms", "Paged Game - itch-77 (2023-11-14).tic")
	if got := testsupport.ReadFile(t, romPath); string(got) != string(romBytes) {
		t.Fatalf("installed rom content differs: %q", got)
	}

	records, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load store: %v", err)
	}
	if len(records) != 1 || records[0].DownloadURL != adapter.cartURL {
		t.Fatalf("resolved cart url not persisted: %+v", records)
	}
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	server := romServer(t, []byte("rom"))
	cfg := newRunnerConfig(t)
	store := collection.NewCSVStore(cfg.Paths.StorePath)
	adapter := &fakeAdapter{
		provider: collection.ProviderTIC80,
		snapshot: &collection.Snapshot{
			Provider: collection.ProviderTIC80,
			Records: []collection.SourceRecord{{
				ProviderID:  "1",
				Title:       "Night Drive",
				Author:      "nightcoder",
				DownloadURL: server.URL + "/cart/1/cart.tic",
				Fingerprint: "fp-1",
				PublishedAt: 1700000000,
			}},
		},
	}

	runner, err := syncrun.New(cfg, store, []services.Adapter{adapter}, nil, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	summary, err := runner.Run(context.Background(), syncrun.Options{Mode: syncrun.ModeSync, DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Plan == nil || summary.Plan.Empty() {
		t.Fatal("dry run should still produce a plan")
	}
	if len(summary.Results) != 0 {
		t.Fatalf("dry run executed actions: %+v", summary.Results)
	}
	if testsupport.FileExists(cfg.Paths.StorePath) {
		t.Fatal("dry run must not save the store")
	}
	if testsupport.FileExists(filepath.Join(cfg.Paths.LibraryDir, "roms")) {
		t.Fatal("dry run must not download anything")
	}
}

func TestRunRefreshSavesStoreOnly(t *testing.T) {
	cfg := newRunnerConfig(t)
	store := collection.NewCSVStore(cfg.Paths.StorePath)
	adapter := &fakeAdapter{
		provider: collection.ProviderTIC80,
		snapshot: &collection.Snapshot{
			Provider: collection.ProviderTIC80,
			Records: []collection.SourceRecord{{
				ProviderID:  "1",
				Title:       "Night Drive",
				DownloadURL: "https://tic80.test/cart/1/cart.tic",
				Fingerprint: "fp-1",
			}},
		},
	}

	runner, err := syncrun.New(cfg, store, []services.Adapter{adapter}, nil, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	summary, err := runner.Run(context.Background(), syncrun.Options{Mode: syncrun.ModeRefresh})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Plan != nil {
		t.Fatal("refresh must not plan file actions")
	}

	records, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load store: %v", err)
	}
	if len(records) != 1 || records[0].Status != collection.StatusNew {
		t.Fatalf("refresh did not persist the new record: %+v", records)
	}
}

func TestRunReportsUnfetchableProvider(t *testing.T) {
	cfg := newRunnerConfig(t)
	store := collection.NewCSVStore(cfg.Paths.StorePath)
	adapter := &fakeAdapter{
		provider: collection.ProviderItch,
		err:      services.Wrap(services.ErrNeedsManualInput, "itch", "load request headers", "capture headers first", nil),
	}

	runner, err := syncrun.New(cfg, store, []services.Adapter{adapter}, nil, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	summary, err := runner.Run(context.Background(), syncrun.Options{Mode: syncrun.ModeRefresh})
	if err != nil {
		t.Fatalf("an unfetchable provider must not fail the run: %v", err)
	}
	if len(summary.Unfetched) != 1 {
		t.Fatalf("unfetched = %+v", summary.Unfetched)
	}
	if summary.Unfetched[0].Provider != collection.ProviderItch || !summary.Unfetched[0].NeedsManual {
		t.Fatalf("unexpected unfetched entry: %+v", summary.Unfetched[0])
	}
}

func TestRunRefusesConcurrentRuns(t *testing.T) {
	cfg := newRunnerConfig(t)
	store := collection.NewCSVStore(cfg.Paths.StorePath)

	held := flock.New(filepath.Join(cfg.Paths.LogDir, "cartkeep.lock"))
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("pre-acquire lock: ok=%v err=%v", ok, err)
	}
	defer held.Unlock()

	runner, err := syncrun.New(cfg, store, nil, nil, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	if _, err := runner.Run(context.Background(), syncrun.Options{Mode: syncrun.ModePlan}); err == nil {
		t.Fatal("expected the run lock to refuse a second run")
	}
}
