package config

// Default returns the baseline configuration before any file overrides.
func Default() Config {
	return Config{
		TMDB: TMDB{
			BaseURL: "https://api.themoviedb.org/3",
		},
		Options: Options{
			LinkType:             "symlink",
			SimilarityThreshold:  0.8,
			ResolverWorkers:      4,
			CacheTTLHours:        0,
			RequestTimeout:       20,
			RetryAttempts:        3,
			WatchDebounceSeconds: 30,
		},
		Paths: Paths{
			StateDB:         "~/.local/share/shokobridge/state.db",
			UnmatchedReport: "~/.local/share/shokobridge/unmatched_report.txt",
			LogDir:          "~/.local/share/shokobridge/logs",
			LockFile:        "~/.local/share/shokobridge/run.lock",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}
