package collection

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// csvColumns fixes the on-disk column order. The file doubles as the
// operator's curation surface, so the layout stays stable across saves.
var csvColumns = []string{
	"provider", "provider_id",
	"title", "author", "description", "category",
	"download_url", "cover_url", "page_url", "fingerprint", "license",
	"published_at", "updated_at",
	"name_override", "sortname", "description_override", "category_override",
	"include", "ipfs_cid",
	"status", "last_synced", "file_md5", "file_sha1", "file_crc",
}

// CSVStore persists records as a single human-editable CSV document.
type CSVStore struct {
	path string
}

// NewCSVStore returns a store backed by the CSV file at path.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the backing file location.
func (s *CSVStore) Path() string { return s.path }

// Load reads the full record set. A missing file yields an empty collection;
// an unreadable or malformed file is an error, since syncing against a
// half-read store could clobber manual curation.
func (s *CSVStore) Load(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open record store: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read record store header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"provider", "provider_id"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("record store missing %q column", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	byIdentity := make(map[Identity]int)
	var records []Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("record store line %d: %w", line, err)
		}

		rec := Record{
			Provider:            Provider(field(row, "provider")),
			ProviderID:          field(row, "provider_id"),
			Title:               field(row, "title"),
			Author:              field(row, "author"),
			Description:         field(row, "description"),
			Category:            field(row, "category"),
			DownloadURL:         field(row, "download_url"),
			CoverURL:            field(row, "cover_url"),
			PageURL:             field(row, "page_url"),
			Fingerprint:         field(row, "fingerprint"),
			License:             License(field(row, "license")),
			PublishedAt:         parseUnix(field(row, "published_at")),
			UpdatedAt:           parseUnix(field(row, "updated_at")),
			NameOverride:        field(row, "name_override"),
			SortName:            field(row, "sortname"),
			DescriptionOverride: field(row, "description_override"),
			CategoryOverride:    field(row, "category_override"),
			Include:             Include(field(row, "include")),
			IPFSCID:             field(row, "ipfs_cid"),
			Status:              Status(field(row, "status")),
			LastSynced:          field(row, "last_synced"),
			FileMD5:             field(row, "file_md5"),
			FileSHA1:            field(row, "file_sha1"),
			FileCRC:             field(row, "file_crc"),
		}
		if rec.Identity().IsZero() {
			return nil, fmt.Errorf("record store line %d: missing provider id", line)
		}
		if !rec.Status.Known() && rec.Status != "" {
			return nil, fmt.Errorf("record store line %d: unknown status %q", line, rec.Status)
		}

		// Exactly one record per identity: a duplicate row is a hand-edit
		// mistake and the later row wins, matching spreadsheet intuition.
		if prev, ok := byIdentity[rec.Identity()]; ok {
			records[prev] = rec
			continue
		}
		byIdentity[rec.Identity()] = len(records)
		records = append(records, rec)
	}

	return records, nil
}

// Save writes the full record set atomically: the new document is built in a
// temp file beside the target and renamed into place, so a crash mid-write
// never corrupts the operator's store.
func (s *CSVStore) Save(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SortKey() < sorted[j].SortKey()
	})

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".cartkeep-store-*")
	if err != nil {
		return fmt.Errorf("create temp store: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	writer := csv.NewWriter(tmp)
	if err := writer.Write(csvColumns); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write store header: %w", err)
	}
	for i := range sorted {
		if err := writer.Write(csvRow(&sorted[i])); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("write store row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp store: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace record store: %w", err)
	}
	return nil
}

func csvRow(r *Record) []string {
	return []string{
		string(r.Provider), r.ProviderID,
		r.Title, r.Author, r.Description, r.Category,
		r.DownloadURL, r.CoverURL, r.PageURL, r.Fingerprint, string(r.License),
		formatUnix(r.PublishedAt), formatUnix(r.UpdatedAt),
		r.NameOverride, r.SortName, r.DescriptionOverride, r.CategoryOverride,
		string(r.Include), r.IPFSCID,
		string(r.Status), r.LastSynced, r.FileMD5, r.FileSHA1, r.FileCRC,
	}
}

func parseUnix(value string) int64 {
	if value == "" {
		return 0
	}
	ts, err := strconv.ParseInt(value, 10, 64)
	if err != nil || ts < 0 {
		return 0
	}
	return ts
}

func formatUnix(ts int64) string {
	if ts <= 0 {
		return ""
	}
	return strconv.FormatInt(ts, 10)
}
