package fsprobe

import (
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"cartkeep/internal/collection"
	"cartkeep/internal/fileutil"
)

// FileState describes one probed file.
type FileState struct {
	Path string // collection-relative, slash-separated
	MD5  string
	Size int64
}

type assetKey struct {
	tag  string // provider-qualified identity tag from the filename
	role collection.Role
}

// State is an immutable point-in-time view of the collection tree. The sync
// planner diffs desired state against it without touching the disk again.
type State struct {
	files   map[string]FileState
	byAsset map[assetKey][]FileState
}

// assetNamePattern matches derived asset filenames: a name part, the
// identity tag after the final " - " separator, and an optional
// parenthesized date before the extension.
var assetNamePattern = regexp.MustCompile(`^.* - (\S+?)( \(\d{4}-\d{2}-\d{2}\))?\.(tic|png)$`)

// Scan walks the asset subtrees under root and fingerprints every file that
// looks like a managed asset. Unmanaged files are left alone and unreported.
func Scan(root string) (*State, error) {
	state := newState()

	for _, role := range collection.Roles {
		subdir := filepath.Join(root, filepath.FromSlash(role.Subdir()))
		err := filepath.WalkDir(subdir, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				if path == subdir {
					return nil // role directory absent: nothing synced yet
				}
				return err
			}
			if entry.IsDir() {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(path), role.Ext()) {
				return nil
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			info, err := entry.Info()
			if err != nil {
				return err
			}
			md5sum, err := fileutil.MD5File(path)
			if err != nil {
				return err
			}
			state.add(role, FileState{
				Path: filepath.ToSlash(rel),
				MD5:  md5sum,
				Size: info.Size(),
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	state.sortAssets()
	return state, nil
}

func newState() *State {
	return &State{
		files:   make(map[string]FileState),
		byAsset: make(map[assetKey][]FileState),
	}
}

// NewState builds a probe state from explicit files; used by tests and by
// callers replaying an executed plan.
func NewState(files []FileState) *State {
	state := newState()
	for _, file := range files {
		role, ok := roleForPath(file.Path)
		if !ok {
			continue
		}
		state.add(role, file)
	}
	state.sortAssets()
	return state
}

func (s *State) add(role collection.Role, file FileState) {
	s.files[file.Path] = file
	if tag, ok := assetTag(file.Path); ok {
		key := assetKey{tag: tag, role: role}
		s.byAsset[key] = append(s.byAsset[key], file)
	}
}

func (s *State) sortAssets() {
	for _, states := range s.byAsset {
		sort.Slice(states, func(i, j int) bool { return states[i].Path < states[j].Path })
	}
}

// At reports the file present at a collection-relative path, if any.
func (s *State) At(path string) (FileState, bool) {
	file, ok := s.files[path]
	return file, ok
}

// Asset reports a file previously derived for the given identity and role,
// wherever in the tree it currently sits. When several candidates exist the
// lexically first path wins, keeping planning deterministic.
func (s *State) Asset(identity collection.Identity, role collection.Role) (FileState, bool) {
	states := s.byAsset[assetKey{tag: identity.AssetTag(), role: role}]
	if len(states) == 0 {
		return FileState{}, false
	}
	return states[0], true
}

// Len returns the number of probed files.
func (s *State) Len() int { return len(s.files) }

// TotalSize returns the combined size of every probed file in bytes.
func (s *State) TotalSize() int64 {
	var total int64
	for _, file := range s.files {
		total += file.Size
	}
	return total
}

func roleForPath(path string) (collection.Role, bool) {
	for _, role := range collection.Roles {
		if strings.HasPrefix(path, role.Subdir()+"/") && strings.EqualFold(filepath.Ext(path), role.Ext()) {
			return role, true
		}
	}
	return "", false
}

// assetTag extracts the identity tag embedded in a derived asset filename.
func assetTag(path string) (string, bool) {
	base := filepath.Base(path)
	match := assetNamePattern.FindStringSubmatch(base)
	if match == nil {
		return "", false
	}
	return match[1], true
}
