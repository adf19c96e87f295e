package main

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"cartkeep/internal/collection"
	"cartkeep/internal/config"
	"cartkeep/internal/logging"
	"cartkeep/internal/runlog"
	"cartkeep/internal/services"
	"cartkeep/internal/services/itch"
	"cartkeep/internal/services/tic80"
	"cartkeep/internal/syncrun"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) store() (*collection.CSVStore, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return collection.NewCSVStore(cfg.Paths.StorePath), nil
}

// adapters builds the enabled provider clients, sharing one HTTP client so
// the configured timeout applies uniformly.
func (c *commandContext) adapters() ([]services.Adapter, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: time.Duration(cfg.Network.TimeoutSeconds) * time.Second}

	var out []services.Adapter
	if cfg.Providers.TIC80.Enabled {
		out = append(out, tic80.New(cfg.Providers.TIC80.BaseURL, cfg.Network.UserAgent,
			tic80.WithHTTPClient(httpClient),
			tic80.WithCategories(cfg.Providers.TIC80.Categories)))
	}
	if cfg.Providers.Itch.Enabled {
		out = append(out, itch.New(cfg.Providers.Itch.BaseURL, cfg.Providers.Itch.HeaderFile,
			itch.WithHTTPClient(httpClient)))
	}
	return out, nil
}

// runner wires a Runner with every collaborator a full pass needs. The
// runlog is best-effort: a broken audit database never blocks a sync.
func (c *commandContext) runner() (*syncrun.Runner, *runlog.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, nil, err
	}
	store, err := c.store()
	if err != nil {
		return nil, nil, err
	}
	adapters, err := c.adapters()
	if err != nil {
		return nil, nil, err
	}

	history, err := runlog.Open(cfg.Paths.LogDir)
	if err != nil {
		logger.Warn("runlog unavailable", logging.Error(err))
		history = nil
	}

	runner, err := syncrun.New(cfg, store, adapters, history, logger)
	if err != nil {
		if history != nil {
			_ = history.Close()
		}
		return nil, nil, err
	}
	return runner, history, nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
