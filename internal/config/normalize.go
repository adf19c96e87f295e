package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeNaming()
	c.normalizeSync()
	c.normalizeNetwork()
	if err := c.normalizeProviders(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if c.Paths.StorePath, err = expandPath(c.Paths.StorePath); err != nil {
		return fmt.Errorf("paths.store_path: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ExportDir) == "" {
		c.Paths.ExportDir = defaultExportDir
	}
	if c.Paths.ExportDir, err = expandPath(c.Paths.ExportDir); err != nil {
		return fmt.Errorf("paths.export_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeNaming() {
	c.Naming.Organization = strings.ToLower(strings.TrimSpace(c.Naming.Organization))
	if c.Naming.Organization == "" {
		c.Naming.Organization = defaultOrganization
	}
	c.Naming.Case = strings.ToLower(strings.TrimSpace(c.Naming.Case))
	if c.Naming.Case == "" {
		c.Naming.Case = defaultCase
	}
}

func (c *Config) normalizeSync() {
	if c.Sync.Workers <= 0 {
		c.Sync.Workers = defaultSyncWorkers
	}
}

func (c *Config) normalizeNetwork() {
	c.Network.UserAgent = strings.TrimSpace(c.Network.UserAgent)
	if c.Network.UserAgent == "" {
		c.Network.UserAgent = defaultUserAgent
	}
	if c.Network.TimeoutSeconds <= 0 {
		c.Network.TimeoutSeconds = defaultNetworkTimeout
	}
	gateways := make([]string, 0, len(c.Network.IPFSGateways))
	seen := make(map[string]struct{}, len(c.Network.IPFSGateways))
	for _, gateway := range c.Network.IPFSGateways {
		gateway = strings.TrimRight(strings.TrimSpace(gateway), "/")
		if gateway == "" {
			continue
		}
		key := strings.ToLower(gateway)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		gateways = append(gateways, gateway)
	}
	if len(gateways) == 0 {
		gateways = defaultIPFSGateways
	}
	c.Network.IPFSGateways = gateways
}

func (c *Config) normalizeProviders() error {
	c.Providers.TIC80.BaseURL = strings.TrimRight(strings.TrimSpace(c.Providers.TIC80.BaseURL), "/")
	if c.Providers.TIC80.BaseURL == "" {
		c.Providers.TIC80.BaseURL = defaultTIC80BaseURL
	}
	if len(c.Providers.TIC80.Categories) > 0 {
		// Category names keep their configured spelling: they become both
		// the catalog path segment and the record category, and the site's
		// directories are capitalized.
		cats := make([]string, 0, len(c.Providers.TIC80.Categories))
		seen := make(map[string]struct{}, len(c.Providers.TIC80.Categories))
		for _, cat := range c.Providers.TIC80.Categories {
			cat = strings.TrimSpace(cat)
			if cat == "" {
				continue
			}
			key := strings.ToLower(cat)
			if _, exists := seen[key]; exists {
				continue
			}
			seen[key] = struct{}{}
			cats = append(cats, cat)
		}
		c.Providers.TIC80.Categories = cats
	}

	c.Providers.Itch.BaseURL = strings.TrimRight(strings.TrimSpace(c.Providers.Itch.BaseURL), "/")
	if c.Providers.Itch.BaseURL == "" {
		c.Providers.Itch.BaseURL = defaultItchBaseURL
	}
	if strings.TrimSpace(c.Providers.Itch.HeaderFile) == "" {
		c.Providers.Itch.HeaderFile = defaultItchHeaderFile
	}
	var err error
	if c.Providers.Itch.HeaderFile, err = expandPath(c.Providers.Itch.HeaderFile); err != nil {
		return fmt.Errorf("providers.itch.header_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
