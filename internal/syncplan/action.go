package syncplan

import (
	"fmt"

	"cartkeep/internal/collection"
)

// Kind names a planned unit of filesystem work.
type Kind string

const (
	// KindDownload fetches a remote asset into its destination path.
	KindDownload Kind = "DOWNLOAD"
	// KindRename moves an up-to-date file to its newly derived path.
	KindRename Kind = "RENAME"
	// KindBackupReplace moves a superseded file into the backup tree before
	// its replacement is downloaded.
	KindBackupReplace Kind = "BACKUP_AND_REPLACE"
	// KindRemove deletes an asset of a pruned record. Only planned in
	// explicit prune mode.
	KindRemove Kind = "REMOVE"
)

// Reason codes explain why an action was planned.
type Reason string

const (
	ReasonMissing       Reason = "missing"
	ReasonNamingChanged Reason = "naming-changed"
	ReasonUpdate        Reason = "update"
	ReasonStale         Reason = "stale-content"
	ReasonPrune         Reason = "prune"
)

// Action is one planned unit of work. All paths are collection-relative.
type Action struct {
	Kind        Kind
	Identity    collection.Identity
	Role        collection.Role
	SourcePath  string // current on-disk location for RENAME/BACKUP_AND_REPLACE/REMOVE
	SourceURL   string // remote source for DOWNLOAD
	DestPath    string
	ExpectedMD5 string // verify fingerprint after download, "" to skip
	ModTime     int64  // stamp the destination's mtime, 0 to skip
	Reason      Reason
}

func (a Action) String() string {
	switch a.Kind {
	case KindDownload:
		return fmt.Sprintf("%s %s %s -> %s (%s)", a.Kind, a.Identity, a.Role, a.DestPath, a.Reason)
	case KindRemove:
		return fmt.Sprintf("%s %s %s %s (%s)", a.Kind, a.Identity, a.Role, a.SourcePath, a.Reason)
	default:
		return fmt.Sprintf("%s %s %s %s -> %s (%s)", a.Kind, a.Identity, a.Role, a.SourcePath, a.DestPath, a.Reason)
	}
}

// Conflict reports distinct identities whose derived destination collides,
// or moves that cannot be ordered. Planning for the involved records is
// withheld; everything else proceeds.
type Conflict struct {
	Path       string
	Identities []collection.Identity
	Detail     string
}

// SkippedRecord reports a record the planner could not derive paths for.
type SkippedRecord struct {
	Identity collection.Identity
	Reason   string
}

// Plan is the ordered action list plus everything withheld from it.
type Plan struct {
	Actions   []Action
	Conflicts []Conflict
	Skipped   []SkippedRecord
}

// Empty reports whether the plan contains no actions.
func (p *Plan) Empty() bool { return len(p.Actions) == 0 }

// Counts returns the number of planned actions per kind.
func (p *Plan) Counts() map[Kind]int {
	counts := make(map[Kind]int, 4)
	for _, action := range p.Actions {
		counts[action.Kind]++
	}
	return counts
}
