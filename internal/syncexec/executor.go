package syncexec

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cartkeep/internal/collection"
	"cartkeep/internal/fileutil"
	"cartkeep/internal/logging"
	"cartkeep/internal/syncplan"
)

// Result reports the outcome of one executed action. Hashes is set for
// successful ROM downloads so the caller can fold the new fingerprints back
// into the record store.
type Result struct {
	Action syncplan.Action
	Err    error
	Hashes *fileutil.Hashes
}

// Executor applies plans under a collection root.
type Executor struct {
	root       string
	workers    int
	logger     *slog.Logger
	downloader *downloader
}

// Option configures an Executor.
type Option func(*Executor)

// WithWorkers bounds the concurrent asset chains. Values below 1 fall back
// to the default.
func WithWorkers(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithIPFSGateways sets the gateway hosts tried, in order, for
// content-addressed ROM sources.
func WithIPFSGateways(gateways []string) Option {
	return func(e *Executor) {
		e.downloader.gateways = gateways
	}
}

// WithDownloader overrides the HTTP downloader (used in tests).
func WithDownloader(d Downloader) Option {
	return func(e *Executor) {
		if d != nil {
			e.downloader.fetch = d
		}
	}
}

// New creates an executor rooted at the collection directory.
func New(root, userAgent string, logger *slog.Logger, opts ...Option) *Executor {
	executor := &Executor{
		root:       root,
		workers:    4,
		logger:     logging.NewComponentLogger(logger, "syncexec"),
		downloader: newDownloader(userAgent),
	}
	for _, opt := range opts {
		opt(executor)
	}
	return executor
}

// Apply executes every action in the plan and returns one result per
// action, in plan order. Actions of the same asset, and actions coupled by
// a shared path, form a chain that runs sequentially in plan order, keeping
// the planner's vacate-before-write sequencing intact. Chains that share
// nothing run in parallel.
func (e *Executor) Apply(ctx context.Context, plan *syncplan.Plan) []Result {
	results := make([]Result, len(plan.Actions))

	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup
	for _, indices := range chainGroups(plan.Actions) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			e.runChain(ctx, plan.Actions, indices, results)
		}()
	}
	wg.Wait()

	return results
}

// chainGroups partitions the plan into sets of action indices that must run
// sequentially: two actions are coupled when they touch the same asset or
// the same path. Indices stay in plan order within each group.
func chainGroups(actions []syncplan.Action) [][]int {
	parent := make([]int, len(actions))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	type assetKey struct {
		identity collection.Identity
		role     collection.Role
	}
	byAsset := make(map[assetKey]int)
	byPath := make(map[string]int)
	for i, action := range actions {
		key := assetKey{identity: action.Identity, role: action.Role}
		if j, ok := byAsset[key]; ok {
			union(j, i)
		} else {
			byAsset[key] = i
		}
		for _, p := range []string{action.SourcePath, action.DestPath} {
			if p == "" {
				continue
			}
			if j, ok := byPath[p]; ok {
				union(j, i)
			} else {
				byPath[p] = i
			}
		}
	}

	grouped := make(map[int][]int)
	var roots []int
	for i := range actions {
		root := find(i)
		if _, ok := grouped[root]; !ok {
			roots = append(roots, root)
		}
		grouped[root] = append(grouped[root], i)
	}
	groups := make([][]int, 0, len(roots))
	for _, root := range roots {
		groups = append(groups, grouped[root])
	}
	return groups
}

func (e *Executor) runChain(ctx context.Context, actions []syncplan.Action, indices []int, results []Result) {
	for chainPos, i := range indices {
		action := actions[i]
		if err := ctx.Err(); err != nil {
			results[i] = Result{Action: action, Err: err}
			continue
		}
		if err := withheldBy(actions, indices[:chainPos], results, action); err != nil {
			results[i] = Result{Action: action, Err: err}
			continue
		}
		results[i] = e.perform(ctx, action)
		if results[i].Err != nil {
			e.logger.Warn("sync action failed",
				logging.String("action", action.String()),
				logging.Error(results[i].Err))
		} else {
			e.logger.Info("sync action applied", logging.String("action", action.String()))
		}
	}
}

// withheldBy reports why an action may not run, given the failures among
// the earlier actions of its chain.
func withheldBy(actions []syncplan.Action, earlier []int, results []Result, action syncplan.Action) error {
	for _, j := range earlier {
		if results[j].Err == nil {
			continue
		}
		prev := actions[j]
		if prev.Identity == action.Identity && prev.Role == action.Role {
			// A failed backup must withhold the paired download, or the
			// pre-update version would be lost.
			return fmt.Errorf("withheld: earlier action for this asset failed")
		}
		if prev.SourcePath != "" && prev.SourcePath == action.DestPath {
			// The move that was to vacate our destination failed; writing
			// over the stranded file would destroy another record's asset.
			return fmt.Errorf("withheld: destination %s was not vacated", action.DestPath)
		}
	}
	return nil
}

func (e *Executor) perform(ctx context.Context, action syncplan.Action) Result {
	switch action.Kind {
	case syncplan.KindRename:
		return Result{Action: action, Err: e.rename(action)}
	case syncplan.KindBackupReplace:
		return Result{Action: action, Err: e.backup(action)}
	case syncplan.KindDownload:
		hashes, err := e.download(ctx, action)
		return Result{Action: action, Err: err, Hashes: hashes}
	case syncplan.KindRemove:
		return Result{Action: action, Err: e.remove(action)}
	}
	return Result{Action: action, Err: fmt.Errorf("unknown action kind %q", action.Kind)}
}

func (e *Executor) abs(rel string) string {
	return filepath.Join(e.root, filepath.FromSlash(rel))
}

func (e *Executor) rename(action syncplan.Action) error {
	if err := fileutil.MoveFile(e.abs(action.SourcePath), e.abs(action.DestPath)); err != nil {
		return fmt.Errorf("rename %s: %w", action.SourcePath, err)
	}
	if err := fileutil.SetModTime(e.abs(action.DestPath), action.ModTime); err != nil {
		e.logger.Warn("set mtime failed", logging.String("path", action.DestPath), logging.Error(err))
	}
	return nil
}

// backup moves a superseded file into the backup tree. Backup entries are
// never overwritten: when the planned name is taken, a numbered variant is
// chosen so every superseded version survives.
func (e *Executor) backup(action syncplan.Action) error {
	dest := e.abs(action.DestPath)
	dest = uniquePath(dest)
	if err := fileutil.MoveFile(e.abs(action.SourcePath), dest); err != nil {
		return fmt.Errorf("backup %s: %w", action.SourcePath, err)
	}
	return nil
}

func (e *Executor) download(ctx context.Context, action syncplan.Action) (*fileutil.Hashes, error) {
	dest := e.abs(action.DestPath)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("create destination directory: %w", err)
	}

	tmp, err := e.downloader.fetchToTemp(ctx, action.SourceURL, filepath.Dir(dest))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = os.Remove(tmp)
	}()

	// Cover art is published as GIF but stored as PNG.
	if action.Role == collection.RoleCover {
		converted, err := convertGIFToPNG(tmp)
		if err != nil {
			return nil, fmt.Errorf("convert cover: %w", err)
		}
		if converted != tmp {
			_ = os.Remove(tmp)
			tmp = converted
			defer func() {
				_ = os.Remove(converted)
			}()
		}
	}

	hashes, err := fileutil.HashFile(tmp)
	if err != nil {
		return nil, fmt.Errorf("hash download: %w", err)
	}
	if action.ExpectedMD5 != "" && !strings.EqualFold(hashes.MD5, action.ExpectedMD5) {
		return nil, fmt.Errorf("fingerprint mismatch: want %s, got %s", action.ExpectedMD5, hashes.MD5)
	}

	// Atomic install: the destination either keeps its old content or gets
	// the complete verified download, never a partial write.
	if err := os.Rename(tmp, dest); err != nil {
		return nil, fmt.Errorf("install download: %w", err)
	}
	if err := fileutil.SetModTime(dest, action.ModTime); err != nil {
		e.logger.Warn("set mtime failed", logging.String("path", action.DestPath), logging.Error(err))
	}
	return &hashes, nil
}

func (e *Executor) remove(action syncplan.Action) error {
	if err := os.Remove(e.abs(action.SourcePath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", action.SourcePath, err)
	}
	return nil
}

// uniquePath returns path itself when free, otherwise the first numbered
// variant "name (2).ext", "name (3).ext", ... that is.
func uniquePath(path string) string {
	if _, err := os.Stat(path); err != nil {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if _, err := os.Stat(candidate); err != nil {
			return candidate
		}
	}
}
