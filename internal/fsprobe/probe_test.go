package fsprobe_test

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
	"testing"

	"cartkeep/internal/collection"
	"cartkeep/internal/fsprobe"
	"cartkeep/internal/testsupport"
)

func identity(provider collection.Provider, id string) collection.Identity {
	return collection.Identity{Provider: provider, ProviderID: id}
}

func TestScanEmptyOrAbsentTree(t *testing.T) {
	state, err := fsprobe.Scan(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("Scan on absent root must not fail: %v", err)
	}
	if state.Len() != 0 {
		t.Fatalf("expected empty state, got %d files", state.Len())
	}
}

func TestScanFingerprintsManagedFiles(t *testing.T) {
	root := t.TempDir()
	content := []byte("cartridge bytes")
	testsupport.WriteFile(t, filepath.Join(root, "roms", "Game - tic80-12.tic"), content)
	testsupport.WriteFile(t, filepath.Join(root, "media", "cart-covers", "Game - tic80-12.png"), []byte("png"))
	// Files that do not look like managed assets are ignored.
	testsupport.WriteFile(t, filepath.Join(root, "roms", "notes.txt"), []byte("x"))

	state, err := fsprobe.Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if state.Len() != 2 {
		t.Fatalf("expected 2 probed files, got %d", state.Len())
	}

	sum := md5.Sum(content)
	file, ok := state.At("roms/Game - tic80-12.tic")
	if !ok {
		t.Fatal("rom not probed")
	}
	if file.MD5 != hex.EncodeToString(sum[:]) {
		t.Fatalf("wrong fingerprint: %q", file.MD5)
	}
	if file.Size != int64(len(content)) {
		t.Fatalf("wrong size: %d", file.Size)
	}
}

func TestAssetLookupFindsPreviousLocations(t *testing.T) {
	root := t.TempDir()
	// The file sits at a path derived under an older naming config.
	testsupport.WriteFile(t, filepath.Join(root, "roms", "Old Name (Tool) - tic80-42 (2023-01-01).tic"), []byte("rom"))

	state, err := fsprobe.Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	file, ok := state.Asset(identity(collection.ProviderTIC80, "42"), collection.RoleROM)
	if !ok {
		t.Fatal("asset lookup by identity failed")
	}
	if file.Path != "roms/Old Name (Tool) - tic80-42 (2023-01-01).tic" {
		t.Fatalf("unexpected path: %q", file.Path)
	}

	if _, ok := state.Asset(identity(collection.ProviderTIC80, "42"), collection.RoleCover); ok {
		t.Fatal("no cover exists for this identity")
	}
	if _, ok := state.Asset(identity(collection.ProviderTIC80, "99"), collection.RoleROM); ok {
		t.Fatal("unknown identity must not resolve")
	}
}

func TestAssetLookupKeepsProvidersApart(t *testing.T) {
	state := fsprobe.NewState([]fsprobe.FileState{
		{Path: "roms/Night Drive - tic80-123.tic", MD5: "aa"},
	})

	if _, ok := state.Asset(identity(collection.ProviderItch, "123"), collection.RoleROM); ok {
		t.Fatal("itch record must not claim a tic80 file sharing its numeric id")
	}
	file, ok := state.Asset(identity(collection.ProviderTIC80, "123"), collection.RoleROM)
	if !ok || file.Path != "roms/Night Drive - tic80-123.tic" {
		t.Fatalf("tic80 lookup failed: %+v ok=%v", file, ok)
	}
}

func TestAssetLookupIsDeterministicAcrossDuplicates(t *testing.T) {
	state := fsprobe.NewState([]fsprobe.FileState{
		{Path: "roms/Zebra - tic80-5.tic", MD5: "bb"},
		{Path: "roms/Aardvark - tic80-5.tic", MD5: "aa"},
	})

	file, ok := state.Asset(identity(collection.ProviderTIC80, "5"), collection.RoleROM)
	if !ok {
		t.Fatal("asset lookup failed")
	}
	if file.Path != "roms/Aardvark - tic80-5.tic" {
		t.Fatalf("expected lexically first path, got %q", file.Path)
	}
}

func TestTotalSize(t *testing.T) {
	state := fsprobe.NewState([]fsprobe.FileState{
		{Path: "roms/A - tic80-1.tic", Size: 10},
		{Path: "roms/B - tic80-2.tic", Size: 32},
	})
	if got := state.TotalSize(); got != 42 {
		t.Fatalf("TotalSize = %d, want 42", got)
	}
}
