package export

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cartkeep/internal/collection"
	"cartkeep/internal/naming"
)

// gamelist.xml is the listing format read by EmulationStation-style
// frontends. Paths are relative to the list's own directory.

type gameList struct {
	XMLName xml.Name    `xml:"gameList"`
	Games   []gameEntry `xml:"game"`
}

type gameEntry struct {
	Path        string `xml:"path"`
	Name        string `xml:"name"`
	SortName    string `xml:"sortname,omitempty"`
	Description string `xml:"desc,omitempty"`
	Image       string `xml:"image,omitempty"`
	Developer   string `xml:"developer,omitempty"`
	Genre       string `xml:"genre,omitempty"`
	ReleaseDate string `xml:"releasedate,omitempty"`
	MD5         string `xml:"md5,omitempty"`
}

// WriteGameList renders the frontend listing for records into
// dir/gamelist.xml. Paths in the list point at the layouts produced by
// the naming config, so the same config must be used for packaging.
func WriteGameList(dir string, records []collection.Record, nameCfg naming.Config) error {
	list := gameList{}
	for i := range records {
		rec := &records[i]
		entry, err := gameEntryFor(rec, nameCfg)
		if err != nil {
			return fmt.Errorf("list entry for %s: %w", rec.Identity(), err)
		}
		list.Games = append(list.Games, entry)
	}
	sort.Slice(list.Games, func(i, j int) bool {
		return list.Games[i].Path < list.Games[j].Path
	})

	data, err := xml.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal gamelist: %w", err)
	}
	data = append([]byte(xml.Header), data...)
	data = append(data, '\n')

	path := filepath.Join(dir, "gamelist.xml")
	tmp, err := os.CreateTemp(dir, ".gamelist-*")
	if err != nil {
		return fmt.Errorf("create gamelist temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write gamelist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write gamelist: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("install gamelist: %w", err)
	}
	return nil
}

func gameEntryFor(rec *collection.Record, nameCfg naming.Config) (gameEntry, error) {
	romPath, err := naming.DerivePath(rec, collection.RoleROM, nameCfg)
	if err != nil {
		return gameEntry{}, err
	}
	entry := gameEntry{
		Path:      "./" + filepath.ToSlash(romPath),
		Name:      rec.DisplayName(),
		SortName:  strings.TrimSpace(rec.SortName),
		Developer: strings.TrimSpace(rec.Author),
		Genre:     rec.EffectiveCategory(),
		MD5:       strings.TrimSpace(rec.FileMD5),
	}
	if desc := strings.TrimSpace(rec.DescriptionOverride); desc != "" {
		entry.Description = desc
	} else {
		entry.Description = strings.TrimSpace(rec.Description)
	}
	if ts := rec.BestTimestamp(); ts > 0 {
		entry.ReleaseDate = time.Unix(ts, 0).UTC().Format("20060102T000000")
	}
	if rec.CoverURL != "" {
		if coverPath, err := naming.DerivePath(rec, collection.RoleCover, nameCfg); err == nil {
			entry.Image = "./" + filepath.ToSlash(coverPath)
		}
	}
	return entry, nil
}
