// Package logging provides the slog construction and attribute helpers shared
// by every component. Loggers carry run, group, and catalog identifiers pulled
// from the context so a single grep of run_id reconstructs one run's story.
package logging
