package naming

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"cartkeep/internal/collection"
)

// Organization selects the folder layout for the collection tree.
type Organization string

const (
	// OrganizeSingle keeps every asset of a role in one folder.
	OrganizeSingle Organization = "single"
	// OrganizePerCategory nests assets under a per-category folder. The
	// placement applies to every role so the tree keeps one shape.
	OrganizePerCategory Organization = "percategory"
)

// CaseMode normalizes the name component of derived filenames. It never
// touches extensions, ids, dates, or path separators.
type CaseMode string

const (
	CaseUnchanged CaseMode = "unchanged"
	CaseUpper     CaseMode = "uppercase"
	CaseLower     CaseMode = "lowercase"
)

// Config is the immutable naming configuration passed into derivation at
// call time. There is no process-wide settable naming state.
type Config struct {
	Organization   Organization
	CategorySuffix bool // append " (Category)" for non-game categories
	UseOverrides   bool // prefer the user's name override for filenames
	Case           CaseMode
}

var (
	upperCaser = cases.Upper(language.Und)
	lowerCaser = cases.Lower(language.Und)
)

// ErrEmptyName reports a record whose fields produce no usable filename.
var ErrEmptyName = errors.New("naming: record derives an empty name")

// DerivePath maps (record, role, config) to the collection-relative path the
// asset should live at. For fixed inputs the result is identical on every
// call.
func DerivePath(rec *collection.Record, role collection.Role, cfg Config) (string, error) {
	name := baseName(rec, cfg)
	if name == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyName, rec.Identity())
	}

	if cfg.Organization == OrganizeSingle && cfg.CategorySuffix {
		if suffix := categorySuffix(rec.EffectiveCategory()); suffix != "" {
			name += " (" + suffix + ")"
		}
	}

	switch cfg.Case {
	case CaseUpper:
		name = upperCaser.String(name)
	case CaseLower:
		name = lowerCaser.String(name)
	}

	name = SanitizeFileName(name)
	if name == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyName, rec.Identity())
	}

	// The identity tag ties the file back to its record even after the
	// name part changes; the provider qualifier keeps same-numbered
	// records from different providers apart.
	tag := rec.Identity().AssetTag()
	var file string
	if role == collection.RoleROM {
		if date := rec.BestDate(); date != "" {
			file = fmt.Sprintf("%s - %s (%s)%s", name, tag, date, role.Ext())
		} else {
			file = fmt.Sprintf("%s - %s%s", name, tag, role.Ext())
		}
	} else {
		file = fmt.Sprintf("%s - %s%s", name, tag, role.Ext())
	}

	if cfg.Organization == OrganizePerCategory {
		category := SanitizeFileName(rec.EffectiveCategory())
		return path.Join(role.Subdir(), category, file), nil
	}
	return path.Join(role.Subdir(), file), nil
}

func baseName(rec *collection.Record, cfg Config) string {
	if cfg.UseOverrides {
		if name := strings.TrimSpace(rec.NameOverride); name != "" {
			return name
		}
	}
	return strings.TrimSpace(rec.Title)
}

// categorySuffix returns the singular marker appended to filenames in
// single-folder layouts, e.g. "WIP" or "Tool". Plain games carry no marker.
func categorySuffix(category string) string {
	switch category {
	case "", "Games":
		return ""
	case "Tools":
		return "Tool"
	case "Demoscene":
		return "Demoscene"
	}
	if strings.HasSuffix(category, "s") {
		return strings.TrimSuffix(category, "s")
	}
	return category
}
