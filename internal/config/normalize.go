package config

import "strings"

// normalize expands and cleans path fields and trims free-form strings.
// Movies fall back to the shows destination when not configured, matching the
// catalog's single-destination deployments.
func (c *Config) normalize() error {
	c.Shoko.URL = strings.TrimRight(strings.TrimSpace(c.Shoko.URL), "/")
	c.Shoko.APIKey = strings.TrimSpace(c.Shoko.APIKey)
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	c.TMDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.TMDB.BaseURL), "/")
	c.TMDB.Language = strings.TrimSpace(c.TMDB.Language)
	c.Options.LinkType = strings.ToLower(strings.TrimSpace(c.Options.LinkType))
	c.Logging.Level = strings.TrimSpace(c.Logging.Level)
	c.Logging.Format = strings.TrimSpace(c.Logging.Format)

	for _, field := range []*string{
		&c.Directories.SourceRoot,
		&c.Directories.ShowsDir,
		&c.Directories.MoviesDir,
		&c.Paths.StateDB,
		&c.Paths.UnmatchedReport,
		&c.Paths.LogDir,
		&c.Paths.LockFile,
	} {
		if strings.TrimSpace(*field) == "" {
			*field = ""
			continue
		}
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}

	if c.Directories.MoviesDir == "" {
		c.Directories.MoviesDir = c.Directories.ShowsDir
	}

	for i := range c.PathMappings {
		c.PathMappings[i].ScriptPath = strings.TrimSpace(c.PathMappings[i].ScriptPath)
		c.PathMappings[i].ExternalPath = strings.TrimSpace(c.PathMappings[i].ExternalPath)
	}

	return nil
}
