package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"shokobridge/internal/bridge"
	"shokobridge/internal/config"
	"shokobridge/internal/logging"
	"shokobridge/internal/metacache"
	"shokobridge/internal/resolver"
	"shokobridge/internal/shoko"
	"shokobridge/internal/state"
	"shokobridge/internal/tmdb"
)

// commandContext carries lazily built collaborators shared by subcommands.
type commandContext struct {
	configFlag *string
	dryRunFlag *bool
	debugFlag  *bool

	cfg        *config.Config
	configPath string
	logger     *slog.Logger
}

func newCommandContext(configFlag *string, dryRunFlag, debugFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		dryRunFlag: dryRunFlag,
		debugFlag:  debugFlag,
	}
}

func (c *commandContext) dryRun() bool { return c.dryRunFlag != nil && *c.dryRunFlag }

// ensureConfig loads and validates configuration once per invocation.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, path, _, err := config.Load(*c.configFlag)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.configPath = path
	return cfg, nil
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	opts := logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if c.debugFlag != nil && *c.debugFlag {
		opts.Level = "debug"
	}
	opts.OutputPaths = []string{"stderr"}
	if cfg.Paths.LogDir != "" {
		opts.OutputPaths = append(opts.OutputPaths, filepath.Join(cfg.Paths.LogDir, "shokobridge.log"))
	}
	logger, err := logging.New(opts)
	if err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}
	c.logger = logger
	return logger, nil
}

// buildBridge assembles the full pipeline. The caller closes the store.
func (c *commandContext) buildBridge() (*bridge.Bridge, *state.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, nil, err
	}

	store, err := state.Open(cfg.Paths.StateDB)
	if err != nil {
		return nil, nil, err
	}

	httpClient := &http.Client{Timeout: time.Duration(cfg.Options.RequestTimeout) * time.Second}

	catalogClient, err := shoko.New(cfg.Shoko.URL, cfg.Shoko.APIKey,
		shoko.WithHTTPClient(httpClient),
		shoko.WithRetries(cfg.Options.RetryAttempts))
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	cache := metacache.New(store, time.Duration(cfg.Options.CacheTTLHours)*time.Hour, logger)
	metadataClient, err := tmdb.New(cfg.TMDB.APIKey,
		tmdb.WithBaseURL(cfg.TMDB.BaseURL),
		tmdb.WithLanguage(cfg.TMDB.Language),
		tmdb.WithHTTPClient(httpClient),
		tmdb.WithCache(cache),
		tmdb.WithRetries(cfg.Options.RetryAttempts))
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	res := resolver.New(catalogClient, metadataClient,
		cfg.Options.SimilarityThreshold, cfg.Options.ResolverWorkers, logger)

	b, err := bridge.New(cfg, store, catalogClient, res, logger, c.dryRun())
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return b, store, nil
}
