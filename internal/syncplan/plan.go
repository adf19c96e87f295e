package syncplan

import (
	"path"
	"sort"
	"strings"

	"cartkeep/internal/collection"
	"cartkeep/internal/fsprobe"
	"cartkeep/internal/naming"
)

// BackupDir is the collection-relative tree holding superseded versions.
const BackupDir = "backups"

// Options tunes planning behavior.
type Options struct {
	// Prune plans REMOVE actions for assets of excluded or
	// removed-upstream records. Destructive, therefore opt-in.
	Prune bool
}

// Build diffs desired state against the probed filesystem state and returns
// an ordered, idempotent plan.
func Build(records []collection.Record, cfg naming.Config, state *fsprobe.State, opts Options) *Plan {
	plan := &Plan{}

	type target struct {
		record *collection.Record
		paths  map[collection.Role]string
	}

	targets := make([]target, 0, len(records))
	pathOwners := make(map[string][]collection.Identity)

	for i := range records {
		rec := &records[i]
		if rec.IsExcluded() || rec.IsRemoved() {
			continue
		}

		paths := make(map[collection.Role]string, len(collection.Roles))
		derived := true
		for _, role := range collection.Roles {
			dest, err := naming.DerivePath(rec, role, cfg)
			if err != nil {
				plan.Skipped = append(plan.Skipped, SkippedRecord{
					Identity: rec.Identity(),
					Reason:   err.Error(),
				})
				derived = false
				break
			}
			paths[role] = dest
			pathOwners[dest] = append(pathOwners[dest], rec.Identity())
		}
		if derived {
			targets = append(targets, target{record: rec, paths: paths})
		}
	}

	// Two records deriving the same destination is a conflict: both are
	// withheld from planning rather than resolved by arrival order. The
	// identity tag keeps distinct identities apart, so this catches
	// duplicate rows a caller failed to dedupe.
	conflicted := make(map[collection.Identity]bool)
	for dest, owners := range pathOwners {
		if len(owners) < 2 {
			continue
		}
		plan.Conflicts = append(plan.Conflicts, Conflict{
			Path:       dest,
			Identities: owners,
			Detail:     "distinct records derive the same destination",
		})
		for _, id := range owners {
			conflicted[id] = true
		}
	}
	sort.Slice(plan.Conflicts, func(i, j int) bool { return plan.Conflicts[i].Path < plan.Conflicts[j].Path })

	var pending []Action
	for _, tgt := range targets {
		if conflicted[tgt.record.Identity()] {
			continue
		}
		pending = append(pending, planRecord(tgt.record, tgt.paths, state)...)
	}

	if opts.Prune {
		for i := range records {
			rec := &records[i]
			if !rec.IsExcluded() && !rec.IsRemoved() {
				continue
			}
			for _, role := range collection.Roles {
				if existing, ok := state.Asset(rec.Identity(), role); ok {
					pending = append(pending, Action{
						Kind:       KindRemove,
						Identity:   rec.Identity(),
						Role:       role,
						SourcePath: existing.Path,
						Reason:     ReasonPrune,
					})
				}
			}
		}
	}

	ordered, cycles := orderActions(pending)
	plan.Actions = ordered
	plan.Conflicts = append(plan.Conflicts, cycles...)
	return plan
}

// planRecord emits the actions for one included, non-removed record.
func planRecord(rec *collection.Record, paths map[collection.Role]string, state *fsprobe.State) []Action {
	var actions []Action
	mtime := rec.BestTimestamp()

	for _, role := range collection.Roles {
		dest := paths[role]
		existing, found := state.Asset(rec.Identity(), role)
		url := remoteSource(rec, role)

		if !found {
			// The ROM is always expected; a cover is expected once the
			// provider publishes one. Screenshots and title screens come
			// from external curation, so an absent file is not a gap the
			// planner can fill.
			if url != "" {
				actions = append(actions, Action{
					Kind:        KindDownload,
					Identity:    rec.Identity(),
					Role:        role,
					SourceURL:   url,
					DestPath:    dest,
					ExpectedMD5: expectedMD5(rec, role),
					ModTime:     mtime,
					Reason:      ReasonMissing,
				})
			}
			continue
		}

		if role == collection.RoleROM && !romCurrent(rec, existing) {
			if url == "" {
				// No replacement source: leave the stale file untouched
				// rather than backing it up with nothing to install.
				continue
			}
			reason := ReasonUpdate
			if rec.Status != collection.StatusUpdateAvailable {
				reason = ReasonStale
			}
			actions = append(actions,
				Action{
					Kind:       KindBackupReplace,
					Identity:   rec.Identity(),
					Role:       role,
					SourcePath: existing.Path,
					DestPath:   backupPath(existing.Path, existing.MD5),
					Reason:     reason,
				},
				Action{
					Kind:        KindDownload,
					Identity:    rec.Identity(),
					Role:        role,
					SourceURL:   url,
					DestPath:    dest,
					ExpectedMD5: expectedMD5(rec, role),
					ModTime:     mtime,
					Reason:      reason,
				},
			)
			continue
		}

		if existing.Path != dest {
			actions = append(actions, Action{
				Kind:       KindRename,
				Identity:   rec.Identity(),
				Role:       role,
				SourcePath: existing.Path,
				DestPath:   dest,
				ModTime:    mtime,
				Reason:     ReasonNamingChanged,
			})
			continue
		}

		// Cover art follows the cartridge: an update republishes the cover
		// under the new fingerprint, so refresh it alongside the ROM.
		if role == collection.RoleCover && rec.Status == collection.StatusUpdateAvailable && url != "" {
			actions = append(actions, Action{
				Kind:      KindDownload,
				Identity:  rec.Identity(),
				Role:      role,
				SourceURL: url,
				DestPath:  dest,
				ModTime:   mtime,
				Reason:    ReasonUpdate,
			})
		}
	}

	return actions
}

// romCurrent reports whether the on-disk ROM already carries the content the
// record wants. Upstream fingerprints from tic80 are cart MD5s, so a direct
// match settles it; otherwise the file must match the last download and the
// record must not be awaiting an update.
func romCurrent(rec *collection.Record, existing fsprobe.FileState) bool {
	if existing.MD5 != "" && strings.EqualFold(existing.MD5, rec.Fingerprint) {
		return true
	}
	return rec.LastSynced != "" &&
		rec.LastSynced == rec.Fingerprint &&
		strings.EqualFold(existing.MD5, rec.FileMD5)
}

func remoteSource(rec *collection.Record, role collection.Role) string {
	switch role {
	case collection.RoleROM:
		// A pinned CID wins over the provider URL: content addressing
		// guarantees the exact cartridge, a hosted URL only promises the
		// current one. The executor resolves the scheme via its gateways.
		if cid := strings.TrimSpace(rec.IPFSCID); cid != "" {
			return "ipfs://" + cid
		}
		return rec.DownloadURL
	case collection.RoleCover:
		return rec.CoverURL
	}
	return ""
}

// expectedMD5 returns the fingerprint a download must verify against, when
// the provider's fingerprint is a content hash rather than a revision token.
func expectedMD5(rec *collection.Record, role collection.Role) string {
	if role != collection.RoleROM {
		return ""
	}
	fp := strings.ToLower(strings.TrimSpace(rec.Fingerprint))
	if len(fp) != 32 {
		return ""
	}
	for _, r := range fp {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return ""
		}
	}
	return fp
}

// backupPath names the backup entry for a superseded file, tagged with the
// superseded content's fingerprint so successive versions never collide.
func backupPath(sourcePath, md5sum string) string {
	base := path.Base(sourcePath)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	tag := md5sum
	if tag == "" {
		tag = "unknown"
	}
	return path.Join(BackupDir, stem+" ["+tag+"]"+ext)
}

// orderActions sequences actions so no action targets a path that a later
// action would still move away from: whatever vacates a path runs before
// whatever writes it. Unorderable move cycles are withheld as conflicts.
func orderActions(actions []Action) ([]Action, []Conflict) {
	if len(actions) < 2 {
		return actions, nil
	}

	vacates := make(map[string]int, len(actions)) // path -> index of action moving it away
	for i, action := range actions {
		if action.SourcePath != "" && action.Kind != KindRemove {
			vacates[action.SourcePath] = i
		}
	}

	// edges[a] lists actions that must wait for a.
	edges := make(map[int][]int)
	indegree := make([]int, len(actions))
	for i, action := range actions {
		if action.DestPath == "" {
			continue
		}
		if j, ok := vacates[action.DestPath]; ok && j != i {
			edges[j] = append(edges[j], i)
			indegree[i]++
		}
	}

	queue := make([]int, 0, len(actions))
	for i := range actions {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	ordered := make([]Action, 0, len(actions))
	emitted := make([]bool, len(actions))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		ordered = append(ordered, actions[i])
		emitted[i] = true
		for _, next := range edges[i] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	var conflicts []Conflict
	for i, done := range emitted {
		if !done {
			conflicts = append(conflicts, Conflict{
				Path:       actions[i].DestPath,
				Identities: []collection.Identity{actions[i].Identity},
				Detail:     "move cycle cannot be ordered",
			})
		}
	}
	return ordered, conflicts
}
