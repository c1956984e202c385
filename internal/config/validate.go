package config

import (
	"errors"
	"fmt"
)

var validLinkTypes = map[string]struct{}{
	"move":     {},
	"copy":     {},
	"hardlink": {},
	"symlink":  {},
}

// Validate ensures the configuration is usable. It performs no filesystem or
// network access; existence checks happen at run start.
func (c *Config) Validate() error {
	if err := c.validateShoko(); err != nil {
		return err
	}
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validateDirectories(); err != nil {
		return err
	}
	if err := c.validateOptions(); err != nil {
		return err
	}
	if err := c.validateMappings(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateShoko() error {
	if c.Shoko.URL == "" {
		return errors.New("shoko.url must be set")
	}
	if c.Shoko.APIKey == "" {
		return errors.New("shoko.api_key must be set")
	}
	return nil
}

func (c *Config) validateTMDB() error {
	if c.TMDB.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/shokobridge/config.toml"
		}
		return fmt.Errorf("tmdb.api_key is required; edit %s (create with 'shokobridge config init')", defaultPath)
	}
	if c.TMDB.BaseURL == "" {
		return errors.New("tmdb.base_url must be set")
	}
	return nil
}

func (c *Config) validateDirectories() error {
	if c.Directories.SourceRoot == "" {
		return errors.New("directories.source_root must be set")
	}
	if c.Directories.ShowsDir == "" {
		return errors.New("directories.shows_dir must be set")
	}
	return nil
}

func (c *Config) validateOptions() error {
	if _, ok := validLinkTypes[c.Options.LinkType]; !ok {
		return fmt.Errorf("options.link_type must be one of move, copy, hardlink, symlink (got %q)", c.Options.LinkType)
	}
	if c.Options.SimilarityThreshold < 0 || c.Options.SimilarityThreshold > 1 {
		return errors.New("options.similarity_threshold must be between 0 and 1")
	}
	if c.Options.ResolverWorkers <= 0 {
		return errors.New("options.resolver_workers must be positive")
	}
	if c.Options.CacheTTLHours < 0 {
		return errors.New("options.cache_ttl_hours must be >= 0")
	}
	if c.Options.RequestTimeout <= 0 {
		return errors.New("options.request_timeout must be positive (seconds)")
	}
	if c.Options.RetryAttempts < 0 {
		return errors.New("options.retry_attempts must be >= 0")
	}
	if c.Options.WatchDebounceSeconds <= 0 {
		return errors.New("options.watch_debounce_seconds must be positive")
	}
	return nil
}

func (c *Config) validateMappings() error {
	for i, mapping := range c.PathMappings {
		if mapping.ScriptPath == "" || mapping.ExternalPath == "" {
			return fmt.Errorf("path_mappings[%d]: both script_path and external_path must be set", i)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json (got %q)", c.Logging.Format)
	}
	return nil
}
