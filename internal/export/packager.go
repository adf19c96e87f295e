package export

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"cartkeep/internal/collection"
	"cartkeep/internal/fileutil"
	"cartkeep/internal/fsprobe"
	"cartkeep/internal/logging"
	"cartkeep/internal/naming"
)

// Packager copies a selected sub-collection out of the library into a
// standalone directory, laid out for handoff to a frontend or another
// machine.
type Packager struct {
	libraryRoot string
	nameCfg     naming.Config
	logger      *slog.Logger
}

// Summary reports what a packaging run produced.
type Summary struct {
	Records int
	Files   int
	Missing []collection.AssetRef
}

func NewPackager(libraryRoot string, nameCfg naming.Config, logger *slog.Logger) *Packager {
	if logger == nil {
		logger = logging.NewNop()
	}
	// Exports are always flat: category folders in a handoff directory
	// only confuse frontends that expect one roms tree.
	nameCfg.Organization = naming.OrganizeSingle
	nameCfg.CategorySuffix = true
	return &Packager{libraryRoot: libraryRoot, nameCfg: nameCfg, logger: logger}
}

// Package copies every present asset of records into destDir and writes a
// gamelist.xml describing them. Assets the library does not hold yet are
// reported in the summary, not treated as errors: an export reflects what
// is actually on disk.
func (p *Packager) Package(records []collection.Record, destDir string) (*Summary, error) {
	state, err := fsprobe.Scan(p.libraryRoot)
	if err != nil {
		return nil, fmt.Errorf("probe library: %w", err)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}

	summary := &Summary{Records: len(records)}
	var listed []collection.Record
	for i := range records {
		rec := &records[i]
		copied, err := p.packageRecord(rec, state, destDir, summary)
		if err != nil {
			return nil, err
		}
		if copied {
			listed = append(listed, *rec)
		}
	}

	if err := WriteGameList(destDir, listed, p.nameCfg); err != nil {
		return nil, err
	}
	return summary, nil
}

// packageRecord copies the record's assets and reports whether the ROM made
// it into the export. Records without a ROM on disk are left out of the
// listing entirely.
func (p *Packager) packageRecord(rec *collection.Record, state *fsprobe.State, destDir string, summary *Summary) (bool, error) {
	romCopied := false
	for _, role := range collection.Roles {
		if role == collection.RoleCover && rec.CoverURL == "" {
			continue
		}
		src, ok := state.Asset(rec.Identity(), role)
		if !ok {
			if role == collection.RoleROM {
				summary.Missing = append(summary.Missing, collection.AssetRef{Identity: rec.Identity(), Role: role})
				p.logger.Warn("export skipping record without rom",
					logging.String("identity", rec.Identity().String()),
					logging.String("title", rec.DisplayName()))
			}
			continue
		}

		relDest, err := naming.DerivePath(rec, role, p.nameCfg)
		if err != nil {
			if errors.Is(err, naming.ErrEmptyName) {
				summary.Missing = append(summary.Missing, collection.AssetRef{Identity: rec.Identity(), Role: role})
				continue
			}
			return false, fmt.Errorf("derive export path for %s: %w", rec.Identity(), err)
		}

		dest := filepath.Join(destDir, filepath.FromSlash(relDest))
		if err := fileutil.CopyFile(filepath.Join(p.libraryRoot, filepath.FromSlash(src.Path)), dest); err != nil {
			return false, fmt.Errorf("copy %s: %w", src.Path, err)
		}
		if ts := rec.BestTimestamp(); ts > 0 {
			_ = fileutil.SetModTime(dest, ts)
		}
		summary.Files++
		if role == collection.RoleROM {
			romCopied = true
		}
	}
	return romCopied, nil
}
