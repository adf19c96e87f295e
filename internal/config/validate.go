package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateNaming(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.LibraryDir == "" {
		return errors.New("paths.library_dir must be set")
	}
	if c.Paths.StorePath == "" {
		return errors.New("paths.store_path must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateNaming() error {
	switch c.Naming.Organization {
	case "single", "percategory":
	default:
		return fmt.Errorf("naming.organization must be \"single\" or \"percategory\", got %q", c.Naming.Organization)
	}
	switch c.Naming.Case {
	case "unchanged", "uppercase", "lowercase":
	default:
		return fmt.Errorf("naming.case must be \"unchanged\", \"uppercase\", or \"lowercase\", got %q", c.Naming.Case)
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.Workers <= 0 {
		return errors.New("sync.workers must be positive")
	}
	if c.Network.TimeoutSeconds <= 0 {
		return errors.New("network.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateProviders() error {
	if !c.Providers.TIC80.Enabled && !c.Providers.Itch.Enabled {
		return errors.New("at least one provider must be enabled")
	}
	if c.Providers.TIC80.Enabled && c.Providers.TIC80.BaseURL == "" {
		return errors.New("providers.tic80.base_url must be set when providers.tic80.enabled is true")
	}
	if c.Providers.Itch.Enabled {
		if c.Providers.Itch.BaseURL == "" {
			return errors.New("providers.itch.base_url must be set when providers.itch.enabled is true")
		}
		if c.Providers.Itch.HeaderFile == "" {
			return errors.New("providers.itch.header_file must be set when providers.itch.enabled is true")
		}
	}
	return nil
}
