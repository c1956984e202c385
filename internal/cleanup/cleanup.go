package cleanup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"shokobridge/internal/logging"
	"shokobridge/internal/services"
	"shokobridge/internal/state"
)

// Cleaner removes library artifacts whose source files left the catalog.
// Every pass is idempotent: artifacts already gone are not errors.
type Cleaner struct {
	store  *state.Store
	roots  []string
	logger *slog.Logger
	dryRun bool
}

// New creates a cleaner. roots are the library directories that must never be
// removed themselves, however empty they become.
func New(store *state.Store, roots []string, logger *slog.Logger, dryRun bool) *Cleaner {
	cleaned := make([]string, 0, len(roots))
	for _, root := range roots {
		if root = strings.TrimSpace(root); root != "" {
			cleaned = append(cleaned, filepath.Clean(root))
		}
	}
	return &Cleaner{
		store:  store,
		roots:  cleaned,
		logger: logging.NewComponentLogger(logger, "cleanup"),
		dryRun: dryRun,
	}
}

// Sweep removes every record whose catalog id is absent from the active set,
// along with its destination artifacts. It returns how many records were
// cleaned. Membership in the catalog is the only staleness signal; a file
// that merely failed to resolve this pass keeps its placement.
func (c *Cleaner) Sweep(ctx context.Context, active map[int64]struct{}) (int, error) {
	records, err := c.store.ListAll(ctx)
	if err != nil {
		return 0, services.Wrap(services.ErrStateStore, "cleanup", "list", "list link records", err)
	}

	removed := 0
	for _, record := range records {
		if _, ok := active[record.CatalogID]; ok {
			continue
		}
		if err := c.RemoveRecord(ctx, record); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// RemoveRecord deletes the record's destination artifacts, prunes emptied
// directories, and drops the record from the store.
func (c *Cleaner) RemoveRecord(ctx context.Context, record state.LinkRecord) error {
	c.logger.Info("cleaning stale entry",
		logging.String("destination", record.DestinationPath),
		logging.Bool("dry_run", c.dryRun))

	if c.dryRun {
		return nil
	}

	if err := c.RetirePlacement(record.DestinationPath); err != nil {
		return err
	}

	if err := c.store.Remove(ctx, record.Fingerprint); err != nil {
		return services.Wrap(services.ErrStateStore, "cleanup", "remove",
			"remove link record "+record.Fingerprint, err)
	}
	return nil
}

// RetirePlacement deletes the artifacts at a destination and prunes emptied
// directories without touching the store. Used when a record has already been
// superseded and only the old placement remains.
func (c *Cleaner) RetirePlacement(destination string) error {
	if c.dryRun {
		return nil
	}
	if err := c.removeArtifacts(destination); err != nil {
		return err
	}
	c.pruneEmptyDirs(filepath.Dir(destination))
	return nil
}

// removeArtifacts deletes the destination file and every sibling sharing its
// stem, which covers the supplemental files linked with it.
func (c *Cleaner) removeArtifacts(destination string) error {
	dir := filepath.Dir(destination)
	destName := filepath.Base(destination)
	stem := strings.TrimSuffix(destName, filepath.Ext(destName))

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return services.Wrap(services.ErrGroupFailed, "cleanup", "scan",
			"read destination directory "+dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if name != destName && !strings.HasPrefix(name, stem+".") {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return services.Wrap(services.ErrGroupFailed, "cleanup", "remove",
				"remove artifact "+path, err)
		}
		c.logger.Debug("artifact removed", logging.String("path", path))
	}
	return nil
}

// pruneEmptyDirs removes empty directories upward from dir, stopping at (and
// never removing) the configured roots.
func (c *Cleaner) pruneEmptyDirs(dir string) {
	dir = filepath.Clean(dir)
	for {
		if c.isRoot(dir) || !c.underAnyRoot(dir) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		c.logger.Debug("empty directory pruned", logging.String("dir", dir))
		dir = filepath.Dir(dir)
	}
}

func (c *Cleaner) isRoot(dir string) bool {
	for _, root := range c.roots {
		if dir == root {
			return true
		}
	}
	return false
}

func (c *Cleaner) underAnyRoot(dir string) bool {
	for _, root := range c.roots {
		if strings.HasPrefix(dir, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
