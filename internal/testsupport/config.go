package testsupport

import (
	"path/filepath"
	"testing"

	"cartkeep/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.StorePath = filepath.Join(base, "collection.csv")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ExportDir = filepath.Join(base, "exports")
	cfg.Providers.Itch.HeaderFile = filepath.Join(base, "itch_headers.txt")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}
