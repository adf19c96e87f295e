package export_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cartkeep/internal/collection"
	"cartkeep/internal/export"
	"cartkeep/internal/naming"
	"cartkeep/internal/testsupport"
)

func exportNaming() naming.Config {
	return naming.Config{
		Organization:   naming.OrganizeSingle,
		CategorySuffix: true,
		UseOverrides:   true,
		Case:           naming.CaseUnchanged,
	}
}

func TestPackageCopiesAssetsAndWritesGamelist(t *testing.T) {
	library := t.TempDir()
	dest := filepath.Join(t.TempDir(), "handoff")

	rec := testsupport.NewRecord("7", "Night Drive")
	rec.Status = collection.StatusSynced
	testsupport.WriteFile(t, filepath.Join(library, "roms", "Night Drive - tic80-7 (2023-11-14).tic"), []byte("rom bytes"))
	testsupport.WriteFile(t, filepath.Join(library, "media", "cart-covers", "Night Drive - tic80-7.png"), []byte("png bytes"))

	p := export.NewPackager(library, exportNaming(), nil)
	summary, err := p.Package([]collection.Record{rec}, dest)
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	if summary.Records != 1 || summary.Files != 2 {
		t.Fatalf("summary = %+v, want 1 record, 2 files", summary)
	}
	if len(summary.Missing) != 0 {
		t.Fatalf("unexpected missing assets: %v", summary.Missing)
	}

	romCopy := filepath.Join(dest, "roms", "Night Drive - tic80-7 (2023-11-14).tic")
	data, err := os.ReadFile(romCopy)
	if err != nil {
		t.Fatalf("exported rom missing: %v", err)
	}
	if string(data) != "rom bytes" {
		t.Fatalf("exported rom content differs: %q", data)
	}

	list := string(testsupport.ReadFile(t, filepath.Join(dest, "gamelist.xml")))
	for _, want := range []string{
		"<path>./roms/Night Drive - tic80-7 (2023-11-14).tic</path>",
		"<name>Night Drive</name>",
		"<image>./media/cart-covers/Night Drive - tic80-7.png</image>",
		"<releasedate>20231114T000000</releasedate>",
	} {
		if !strings.Contains(list, want) {
			t.Errorf("gamelist.xml missing %q\n%s", want, list)
		}
	}
}

// Category folders only confuse frontends given a handoff directory, so the
// packager flattens regardless of the library's own layout.
func TestPackageForcesFlatLayout(t *testing.T) {
	library := t.TempDir()
	dest := filepath.Join(t.TempDir(), "handoff")

	rec := testsupport.NewRecord("9", "Tracker")
	rec.Category = "Tools"
	rec.CoverURL = ""
	// The library itself is organized per category.
	testsupport.WriteFile(t, filepath.Join(library, "roms", "Tools", "Tracker - tic80-9 (2023-11-14).tic"), []byte("rom"))

	cfg := exportNaming()
	cfg.Organization = naming.OrganizePerCategory
	p := export.NewPackager(library, cfg, nil)
	if _, err := p.Package([]collection.Record{rec}, dest); err != nil {
		t.Fatalf("Package: %v", err)
	}

	flat := filepath.Join(dest, "roms", "Tracker (Tool) - tic80-9 (2023-11-14).tic")
	if !testsupport.FileExists(flat) {
		t.Fatalf("expected flat export path %s", flat)
	}
}

func TestPackageKeepsProvidersSharingAnIDApart(t *testing.T) {
	library := t.TempDir()
	dest := filepath.Join(t.TempDir(), "handoff")

	tic := testsupport.NewRecord("123", "Night Drive")
	tic.CoverURL = ""
	itch := collection.Record{
		Provider:   collection.ProviderItch,
		ProviderID: "123",
		Title:      "Totally Different Itch Game",
		Status:     collection.StatusNew,
	}
	testsupport.WriteFile(t, filepath.Join(library, "roms", "Night Drive - tic80-123 (2023-11-14).tic"), []byte("tic80 cartridge"))

	p := export.NewPackager(library, exportNaming(), nil)
	summary, err := p.Package([]collection.Record{tic, itch}, dest)
	if err != nil {
		t.Fatalf("Package: %v", err)
	}

	// Only the tic80 record owns a ROM; the itch record must be reported
	// missing, not handed the tic80 file under its own name.
	if summary.Files != 1 {
		t.Fatalf("files = %d, want 1", summary.Files)
	}
	if len(summary.Missing) != 1 || summary.Missing[0].Identity.Provider != collection.ProviderItch {
		t.Fatalf("missing = %+v, want the itch record's rom", summary.Missing)
	}
	stray := filepath.Join(dest, "roms", "Totally Different Itch Game - itch-123.tic")
	if testsupport.FileExists(stray) {
		t.Fatalf("itch record exported the tic80 record's rom as %s", stray)
	}

	list := string(testsupport.ReadFile(t, filepath.Join(dest, "gamelist.xml")))
	if strings.Contains(list, "Totally Different Itch Game") {
		t.Fatal("romless itch record must not be listed")
	}
}

func TestPackageReportsMissingROMs(t *testing.T) {
	library := t.TempDir()
	dest := filepath.Join(t.TempDir(), "handoff")

	present := testsupport.NewRecord("1", "Here")
	present.CoverURL = ""
	absent := testsupport.NewRecord("2", "Gone")
	absent.CoverURL = ""
	testsupport.WriteFile(t, filepath.Join(library, "roms", "Here - tic80-1 (2023-11-14).tic"), []byte("rom"))

	p := export.NewPackager(library, exportNaming(), nil)
	summary, err := p.Package([]collection.Record{present, absent}, dest)
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	if len(summary.Missing) != 1 {
		t.Fatalf("missing = %v, want exactly the absent rom", summary.Missing)
	}
	if summary.Missing[0].Identity.ProviderID != "2" || summary.Missing[0].Role != collection.RoleROM {
		t.Fatalf("unexpected missing ref: %+v", summary.Missing[0])
	}

	list := string(testsupport.ReadFile(t, filepath.Join(dest, "gamelist.xml")))
	if strings.Contains(list, "Gone") {
		t.Fatal("records without a rom on disk must not be listed")
	}
}
