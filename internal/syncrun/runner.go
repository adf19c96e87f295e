package syncrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"cartkeep/internal/collection"
	"cartkeep/internal/config"
	"cartkeep/internal/fsprobe"
	"cartkeep/internal/logging"
	"cartkeep/internal/naming"
	"cartkeep/internal/reconcile"
	"cartkeep/internal/runlog"
	"cartkeep/internal/services"
	"cartkeep/internal/syncexec"
	"cartkeep/internal/syncplan"
)

// Mode selects how much of a pass a run performs.
type Mode string

const (
	// ModeSync fetches, reconciles, plans, and executes.
	ModeSync Mode = "sync"
	// ModeRefresh fetches and reconciles the store, touching no files.
	ModeRefresh Mode = "refresh"
	// ModePlan plans against the current store without fetching or
	// executing anything.
	ModePlan Mode = "plan"
	// ModeRename executes only the rename actions of a plan, for applying
	// a naming config change without network access.
	ModeRename Mode = "rename"
)

// Options configures a single run.
type Options struct {
	Mode      Mode
	DryRun    bool                  // plan but do not execute or save
	Prune     bool                  // plan REMOVE actions for excluded/removed records
	Providers []collection.Provider // empty means all configured adapters
}

// Enricher fills in detail fields that a provider only publishes on
// per-record pages, not in its snapshot listing.
type Enricher interface {
	Provider() collection.Provider
	Enrich(ctx context.Context, rec *collection.Record) error
}

// Runner owns the collaborators of a pass.
type Runner struct {
	cfg       *config.Config
	store     collection.Store
	adapters  []services.Adapter
	enrichers map[collection.Provider]Enricher
	history   *runlog.Store
	logger    *slog.Logger
}

// Summary reports what one run did.
type Summary struct {
	RunID     string
	Reports   []reconcile.Report
	Plan      *syncplan.Plan
	Results   []syncexec.Result
	Records   int
	Applied   int
	Failed    int
	Unfetched []UnfetchedProvider
}

// UnfetchedProvider names a provider whose snapshot could not be fetched
// this run, leaving its records untouched.
type UnfetchedProvider struct {
	Provider    collection.Provider
	Err         error
	NeedsManual bool
}

// New constructs a Runner. history may be nil to skip run auditing.
func New(cfg *config.Config, store collection.Store, adapters []services.Adapter, history *runlog.Store, logger *slog.Logger) (*Runner, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("runner requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runner{
		cfg:       cfg,
		store:     store,
		adapters:  adapters,
		enrichers: make(map[collection.Provider]Enricher),
		history:   history,
		logger:    logging.NewComponentLogger(logger, "syncrun"),
	}
	for _, adapter := range adapters {
		if enricher, ok := adapter.(Enricher); ok {
			r.enrichers[adapter.Provider()] = enricher
		}
	}
	return r, nil
}

// NamingConfig maps the configured naming settings onto the deriver.
func NamingConfig(cfg *config.Config) naming.Config {
	return naming.Config{
		Organization:   naming.Organization(cfg.Naming.Organization),
		CategorySuffix: cfg.Naming.CategorySuffix,
		UseOverrides:   cfg.Naming.UseOverrides,
		Case:           naming.CaseMode(cfg.Naming.Case),
	}
}

// Run performs one pass under the run lock.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	lock := flock.New(filepath.Join(r.cfg.Paths.LogDir, "cartkeep.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, errors.New("another cartkeep run is already in progress")
	}
	defer func() {
		_ = lock.Unlock()
	}()

	summary := &Summary{}
	runErr := r.run(ctx, opts, summary)

	if r.history != nil && !opts.DryRun && opts.Mode != ModePlan {
		r.record(ctx, opts, summary, runErr)
	}
	if runErr != nil {
		return summary, runErr
	}
	return summary, nil
}

func (r *Runner) run(ctx context.Context, opts Options, summary *Summary) error {
	records, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load record store: %w", err)
	}
	summary.Records = len(records)

	storeDirty := false
	if opts.Mode == ModeSync || opts.Mode == ModeRefresh {
		records, storeDirty = r.reconcileAll(ctx, opts, records, summary)
	}
	summary.Records = len(records)

	if opts.Mode == ModeRefresh {
		if storeDirty && !opts.DryRun {
			if err := r.store.Save(ctx, records); err != nil {
				return fmt.Errorf("save record store: %w", err)
			}
		}
		return nil
	}

	state, err := fsprobe.Scan(r.cfg.Paths.LibraryDir)
	if err != nil {
		return fmt.Errorf("probe library: %w", err)
	}

	plan := syncplan.Build(records, NamingConfig(r.cfg), state, syncplan.Options{Prune: opts.Prune})
	if opts.Mode == ModeRename {
		plan = renameOnly(plan)
	}
	summary.Plan = plan
	for _, conflict := range plan.Conflicts {
		r.logger.Warn("destination conflict, records withheld",
			logging.String("path", conflict.Path),
			logging.String("detail", conflict.Detail))
	}

	if opts.Mode == ModePlan || opts.DryRun {
		return nil
	}

	if !plan.Empty() {
		executor := syncexec.New(r.cfg.Paths.LibraryDir, r.cfg.Network.UserAgent, r.logger,
			syncexec.WithWorkers(r.cfg.Sync.Workers),
			syncexec.WithIPFSGateways(r.cfg.Network.IPFSGateways))
		summary.Results = executor.Apply(ctx, plan)
		if r.foldResults(records, summary) {
			storeDirty = true
		}
	}

	if storeDirty {
		if err := r.store.Save(ctx, records); err != nil {
			return fmt.Errorf("save record store: %w", err)
		}
	}
	return ctx.Err()
}

// reconcileAll merges every fetchable provider snapshot into records.
// A provider that cannot be fetched is reported and skipped; its existing
// records stay untouched.
func (r *Runner) reconcileAll(ctx context.Context, opts Options, records []collection.Record, summary *Summary) ([]collection.Record, bool) {
	dirty := false
	for _, adapter := range r.adapters {
		provider := adapter.Provider()
		if !providerSelected(provider, opts.Providers) {
			continue
		}
		snap, err := adapter.FetchSnapshot(ctx)
		if err != nil {
			needsManual := errors.Is(err, services.ErrNeedsManualInput)
			summary.Unfetched = append(summary.Unfetched, UnfetchedProvider{
				Provider:    provider,
				Err:         err,
				NeedsManual: needsManual,
			})
			if needsManual {
				r.logger.Warn("provider needs manual input, skipping",
					logging.String("provider", string(provider)),
					logging.Error(err))
			} else {
				r.logger.Warn("provider fetch failed, records left untouched",
					logging.String("provider", string(provider)),
					logging.Error(err))
			}
			continue
		}

		merged, report := reconcile.Merge(records, snap)
		records = merged
		summary.Reports = append(summary.Reports, report)
		if report.Changed() {
			dirty = true
		}
		r.logger.Info("reconciled provider snapshot",
			logging.String("provider", string(provider)),
			logging.Int("added", report.Added),
			logging.Int("updated", report.Updated),
			logging.Int("removed", report.Removed),
			logging.Int("unchanged", report.Unchanged))

		if r.enrichRecords(ctx, provider, records) {
			dirty = true
		}
	}
	return records, dirty
}

// enrichRecords fills detail fields for records the snapshot listing left
// sparse. Enrichment failures are logged and skipped; the listing data is
// already good enough to sync with.
func (r *Runner) enrichRecords(ctx context.Context, provider collection.Provider, records []collection.Record) bool {
	enricher, ok := r.enrichers[provider]
	if !ok {
		return false
	}
	dirty := false
	for i := range records {
		rec := &records[i]
		if rec.Provider != provider || rec.IsRemoved() {
			continue
		}
		if !needsEnrichment(rec) {
			continue
		}
		if err := enricher.Enrich(ctx, rec); err != nil {
			r.logger.Warn("enrich failed",
				logging.String("identity", rec.Identity().String()),
				logging.Error(err))
			if ctx.Err() != nil {
				return dirty
			}
			continue
		}
		dirty = true
	}
	return dirty
}

func needsEnrichment(rec *collection.Record) bool {
	if rec.Status != collection.StatusNew && rec.Status != collection.StatusUpdateAvailable {
		return false
	}
	if strings.TrimSpace(rec.DownloadURL) == "" && strings.TrimSpace(rec.PageURL) != "" {
		// The cart URL lives on the record's page, not in the listing.
		return true
	}
	return strings.TrimSpace(rec.Author) == "" || rec.BestTimestamp() == 0
}

// foldResults writes successful download state back into the records and
// reports whether anything changed. A record reaches SYNCED only once its
// ROM is actually installed; failures leave the record ready for the next
// run to retry.
func (r *Runner) foldResults(records []collection.Record, summary *Summary) bool {
	index := make(map[collection.Identity]int, len(records))
	for i := range records {
		index[records[i].Identity()] = i
	}

	dirty := false
	for _, res := range summary.Results {
		if res.Err != nil {
			summary.Failed++
			r.logger.Error("action failed",
				logging.String("action", res.Action.String()),
				logging.Error(res.Err))
			continue
		}
		summary.Applied++

		if res.Action.Kind != syncplan.KindDownload || res.Action.Role != collection.RoleROM {
			continue
		}
		i, ok := index[res.Action.Identity]
		if !ok || res.Hashes == nil {
			continue
		}
		rec := &records[i]
		rec.FileMD5 = res.Hashes.MD5
		rec.FileSHA1 = res.Hashes.SHA1
		rec.FileCRC = res.Hashes.CRC
		rec.LastSynced = rec.Fingerprint
		rec.Status = collection.StatusSynced
		dirty = true
	}
	return dirty
}

func (r *Runner) record(ctx context.Context, opts Options, summary *Summary, runErr error) {
	runID, err := r.history.Begin(ctx, string(opts.Mode), opts.DryRun)
	if err != nil {
		r.logger.Warn("runlog unavailable", logging.Error(err))
		return
	}
	summary.RunID = runID

	run := runlog.Run{ID: runID}
	run.RecordsTotal = summary.Records
	for _, report := range summary.Reports {
		run.RecordsChanged += report.Added + report.Updated + report.Removed
	}
	if summary.Plan != nil {
		run.ActionsPlanned = len(summary.Plan.Actions)
	}
	run.ActionsApplied = summary.Applied
	run.ActionsFailed = summary.Failed

	for _, res := range summary.Results {
		if res.Err == nil {
			continue
		}
		failure := runlog.Failure{
			Identity: res.Action.Identity.String(),
			Role:     string(res.Action.Role),
			Action:   string(res.Action.Kind),
			Detail:   res.Err.Error(),
		}
		if err := r.history.AddFailure(ctx, runID, failure); err != nil {
			r.logger.Warn("record failure entry", logging.Error(err))
		}
	}

	if err := r.history.Finish(ctx, run, runErr); err != nil {
		r.logger.Warn("finish runlog entry", logging.Error(err))
	}
}

func renameOnly(plan *syncplan.Plan) *syncplan.Plan {
	filtered := &syncplan.Plan{Conflicts: plan.Conflicts, Skipped: plan.Skipped}
	for _, action := range plan.Actions {
		if action.Kind == syncplan.KindRename {
			filtered.Actions = append(filtered.Actions, action)
		}
	}
	return filtered
}

func providerSelected(provider collection.Provider, selected []collection.Provider) bool {
	if len(selected) == 0 {
		return true
	}
	for _, p := range selected {
		if p == provider {
			return true
		}
	}
	return false
}
