package collection

// Role names one asset slot belonging to a record.
type Role string

const (
	RoleROM         Role = "rom"
	RoleScreenshot  Role = "screenshot"
	RoleTitleScreen Role = "titlescreen"
	RoleCover       Role = "cover"
)

// Roles lists every asset role in planning order: the ROM first, media after.
var Roles = []Role{RoleROM, RoleScreenshot, RoleTitleScreen, RoleCover}

// Subdir returns the collection-relative directory holding assets of this
// role.
func (r Role) Subdir() string {
	switch r {
	case RoleROM:
		return "roms"
	case RoleScreenshot:
		return "media/screenshots"
	case RoleTitleScreen:
		return "media/titlescreens"
	case RoleCover:
		return "media/cart-covers"
	}
	return ""
}

// Ext returns the file extension, dot included, used for this role.
func (r Role) Ext() string {
	if r == RoleROM {
		return ".tic"
	}
	return ".png"
}

// AssetRef ties one asset role of a record to its sync state for a single
// run. On-disk fingerprints are probed fresh every run and never persisted as
// ground truth.
type AssetRef struct {
	Identity  Identity
	Role      Role
	SourceURL string // remote source, "" when the role has none
	WantPath  string // derived collection-relative destination
	DiskPath  string // where a file for this asset currently exists, "" if absent
	DiskMD5   string // fingerprint of the on-disk file, "" if absent
}
