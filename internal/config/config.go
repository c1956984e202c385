package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Shoko contains connection settings for the source-of-truth catalog service.
type Shoko struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
	Language string `toml:"language"`
}

// Directories contains the source tree root and destination library roots.
type Directories struct {
	SourceRoot string `toml:"source_root"`
	ShowsDir   string `toml:"shows_dir"`
	MoviesDir  string `toml:"movies_dir"`
}

// Options contains materialization and resolution tuning.
type Options struct {
	// LinkType selects the file operation: move, copy, hardlink, or symlink.
	LinkType string `toml:"link_type"`
	// SimilarityThreshold is the minimum title-similarity score accepted by the
	// fallback matcher. Scores exactly at the threshold are accepted.
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	UseRelativeSymlinks bool    `toml:"use_relative_symlinks"`
	// ResolverWorkers bounds the parallelism of metadata lookups.
	ResolverWorkers int `toml:"resolver_workers"`
	// CacheTTLHours bounds metadata cache staleness. Zero disables expiry.
	CacheTTLHours int `toml:"cache_ttl_hours"`
	// RequestTimeout is the per-request timeout for upstream calls, in seconds.
	RequestTimeout int `toml:"request_timeout"`
	// RetryAttempts is how many times transient upstream failures are retried.
	RetryAttempts int `toml:"retry_attempts"`
	// WatchDebounceSeconds is the quiet period before a watch-triggered run.
	WatchDebounceSeconds int `toml:"watch_debounce_seconds"`
}

// PathMapping rewrites a source path prefix into the prefix another host sees.
// Mappings are applied in order; the first match wins.
type PathMapping struct {
	ScriptPath   string `toml:"script_path"`
	ExternalPath string `toml:"external_path"`
}

// Paths contains filesystem locations owned by the bridge itself.
type Paths struct {
	StateDB         string `toml:"state_db"`
	UnmatchedReport string `toml:"unmatched_report"`
	LogDir          string `toml:"log_dir"`
	LockFile        string `toml:"lock_file"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values for the bridge.
type Config struct {
	Shoko        Shoko         `toml:"shoko"`
	TMDB         TMDB          `toml:"tmdb"`
	Directories  Directories   `toml:"directories"`
	Options      Options       `toml:"options"`
	PathMappings []PathMapping `toml:"path_mappings"`
	Paths        Paths         `toml:"paths"`
	Logging      Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/shokobridge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("shokobridge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the bridge writes into. Destination
// roots are created best-effort so a temporarily offline library mount does not
// block config loading.
func (c *Config) EnsureDirectories() error {
	owned := []string{
		filepath.Dir(c.Paths.StateDB),
		filepath.Dir(c.Paths.UnmatchedReport),
		filepath.Dir(c.Paths.LockFile),
		c.Paths.LogDir,
	}
	for _, dir := range owned {
		if strings.TrimSpace(dir) == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, dir := range []string{c.Directories.ShowsDir, c.Directories.MoviesDir} {
		if strings.TrimSpace(dir) != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
