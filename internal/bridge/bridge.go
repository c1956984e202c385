package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"shokobridge/internal/catalog"
	"shokobridge/internal/cleanup"
	"shokobridge/internal/config"
	"shokobridge/internal/identity"
	"shokobridge/internal/logging"
	"shokobridge/internal/pathing"
	"shokobridge/internal/resolver"
	"shokobridge/internal/services"
	"shokobridge/internal/shoko"
	"shokobridge/internal/state"
	"shokobridge/internal/txn"
)

// Bridge drives one reconciliation pass: resolve every catalog file, link the
// resolved groups into the library, and sweep out entries the catalog
// dropped. Resolution runs in parallel; filesystem mutation is serialized.
type Bridge struct {
	cfg      *config.Config
	store    *state.Store
	catalogs shoko.Catalog
	resolver *resolver.Resolver
	builder  *pathing.Builder
	cleaner  *cleanup.Cleaner
	logger   *slog.Logger
	op       txn.Operation
	dryRun   bool
}

// New wires a bridge from its collaborators. The caller owns the store's
// lifetime.
func New(cfg *config.Config, store *state.Store, catalogs shoko.Catalog, res *resolver.Resolver, logger *slog.Logger, dryRun bool) (*Bridge, error) {
	op, err := txn.ParseOperation(cfg.Options.LinkType)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "startup", "link-type", "", err)
	}
	roots := []string{cfg.Directories.ShowsDir, cfg.Directories.MoviesDir}
	return &Bridge{
		cfg:      cfg,
		store:    store,
		catalogs: catalogs,
		resolver: res,
		builder:  pathing.NewBuilder(cfg),
		cleaner:  cleanup.New(store, roots, logger, dryRun),
		logger:   logging.NewComponentLogger(logger, "bridge"),
		op:       op,
		dryRun:   dryRun,
	}, nil
}

// Run performs one full pass and returns its summary. The returned error is
// non-nil only for fatal conditions; per-group failures land in the summary.
func (b *Bridge) Run(ctx context.Context) (*Summary, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := b.logger.With(logging.String(logging.FieldRunID, runID))

	lock := flock.New(b.cfg.Paths.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "startup", "lock",
			"acquire run lock "+b.cfg.Paths.LockFile, err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrConfiguration, "startup", "lock",
			"another instance holds the run lock", nil)
	}
	defer func() { _ = lock.Unlock() }()

	if err := b.preflight(ctx); err != nil {
		return nil, err
	}

	started := time.Now()
	summary := &Summary{RunID: runID, DryRun: b.dryRun}

	fileIDs, err := b.catalogs.ListFileIDs(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrConnectivity, "scan", "list-files",
			"list catalog files", err)
	}
	logger.Info("catalog scan complete", logging.Int("files", len(fileIDs)))

	resolutions := b.resolver.ResolveAll(ctx, fileIDs)

	scanner := catalog.NewScanner(b.cfg.Directories.SourceRoot, b.logger)
	claimed := make(map[string]string)

	for _, resolution := range resolutions {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if err := b.processOne(ctx, logger, scanner, resolution, claimed, summary); err != nil {
			return summary, err
		}
	}

	// Staleness is catalog membership, nothing else: a file the catalog
	// still lists keeps its placement even when this pass failed to
	// resolve or stat it.
	cleaned, err := b.cleaner.Sweep(ctx, activeSet(fileIDs))
	summary.Cleaned = cleaned
	if err != nil {
		return summary, err
	}

	summary.Elapsed = time.Since(started)
	logger.Info("run complete",
		logging.Int("linked", summary.Linked),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", len(summary.Failures)),
		logging.Int("unmatched", len(summary.Unmatched)),
		logging.Int("cleaned", summary.Cleaned),
		logging.Duration("elapsed", summary.Elapsed))
	return summary, nil
}

// Cleanup sweeps stale records and their artifacts without linking anything
// new. Every file the catalog still lists stays untouched.
func (b *Bridge) Cleanup(ctx context.Context) (*Summary, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := b.logger.With(logging.String(logging.FieldRunID, runID))

	lock := flock.New(b.cfg.Paths.LockFile)
	locked, err := lock.TryLock()
	if err != nil || !locked {
		return nil, services.Wrap(services.ErrConfiguration, "startup", "lock",
			"acquire run lock "+b.cfg.Paths.LockFile, err)
	}
	defer func() { _ = lock.Unlock() }()

	if err := b.catalogs.CheckConnection(ctx); err != nil {
		return nil, services.Wrap(services.ErrConnectivity, "startup", "catalog",
			"reach catalog at "+b.cfg.Shoko.URL, err)
	}

	fileIDs, err := b.catalogs.ListFileIDs(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrConnectivity, "cleanup", "list-files",
			"list catalog files", err)
	}

	summary := &Summary{RunID: runID, DryRun: b.dryRun}
	summary.Cleaned, err = b.cleaner.Sweep(ctx, activeSet(fileIDs))
	if err != nil {
		return summary, err
	}
	logger.Info("cleanup complete", logging.Int("cleaned", summary.Cleaned))
	return summary, nil
}

// preflight verifies external prerequisites before any mutation.
func (b *Bridge) preflight(ctx context.Context) error {
	if err := b.catalogs.CheckConnection(ctx); err != nil {
		return services.Wrap(services.ErrConnectivity, "startup", "catalog",
			"reach catalog at "+b.cfg.Shoko.URL, err)
	}
	if b.op == txn.OpHardlink {
		for _, root := range []string{b.cfg.Directories.ShowsDir, b.cfg.Directories.MoviesDir} {
			if err := txn.EnsureHardlinkCapable(b.cfg.Directories.SourceRoot, root); err != nil {
				return err
			}
		}
	}
	return nil
}

// activeSet indexes the catalog's file ids for the stale sweep.
func activeSet(fileIDs []int64) map[int64]struct{} {
	active := make(map[int64]struct{}, len(fileIDs))
	for _, fileID := range fileIDs {
		active[fileID] = struct{}{}
	}
	return active
}

// processOne carries a single resolution through linking and bookkeeping.
// The returned error is non-nil only for fatal conditions; group-scoped
// failures land in the summary.
func (b *Bridge) processOne(ctx context.Context, logger *slog.Logger, scanner *catalog.Scanner, resolution resolver.Resolution, claimed map[string]string, summary *Summary) error {
	groupFailed := func(err error) {
		summary.Failures = append(summary.Failures, Failure{
			FileID: resolution.FileID,
			Path:   resolution.RelativePath,
			Err:    err,
		})
	}

	if !resolution.Resolved() {
		summary.Unmatched = append(summary.Unmatched, Unmatched{
			FileID: resolution.FileID,
			Path:   resolution.RelativePath,
			Reason: resolution.Err.Error(),
		})
		return nil
	}

	group, err := scanner.Resolve(resolution.FileID, resolution.RelativePath)
	if err != nil {
		groupFailed(services.Wrap(services.ErrGroupFailed, "scan", "source", "", err))
		return nil
	}

	fingerprint := group.Primary.Fingerprint()

	destination, err := b.builder.DestinationFor(resolution.Identity, group.Primary.Path)
	if err != nil {
		groupFailed(services.Wrap(services.ErrGroupFailed, "plan", "destination", "", err))
		return nil
	}

	existing, err := b.store.Lookup(ctx, fingerprint)
	if err != nil {
		return services.Wrap(services.ErrStateStore, "plan", "lookup", "", err)
	}

	// Superseded placement to retire once the new link has committed.
	// Retiring it first would leave the group with no placement at all
	// if the new link then fails.
	var retired *state.LinkRecord

	if existing != nil && existing.Status == state.StatusCommitted {
		if existing.DestinationPath == destination {
			claimed[destination] = fingerprint
			summary.Skipped++
			logger.Debug("unchanged, skipping",
				logging.Int64("file_id", resolution.FileID),
				logging.String("destination", destination))
			return nil
		}
		// Identity drifted since the last run.
		logger.Info("destination changed, relinking",
			logging.Int64("file_id", resolution.FileID),
			logging.String("old", existing.DestinationPath),
			logging.String("new", destination))
		retired = existing
	} else {
		prior, err := b.store.LookupByCatalogID(ctx, resolution.FileID)
		if err != nil {
			return services.Wrap(services.ErrStateStore, "plan", "catalog-lookup", "", err)
		}
		if prior != nil && prior.Fingerprint != fingerprint {
			// Same catalog file, new bytes. When the stale copy sits on
			// the planned destination it must go before the link.
			logger.Info("source changed, relinking",
				logging.Int64("file_id", resolution.FileID),
				logging.String("old", prior.DestinationPath),
				logging.String("new", destination))
			if prior.DestinationPath == destination {
				if !b.dryRun {
					if err := b.cleaner.RemoveRecord(ctx, *prior); err != nil {
						if errors.Is(err, services.ErrStateStore) {
							return err
						}
						groupFailed(err)
						return nil
					}
				}
			} else {
				retired = prior
			}
		}
	}

	if err := b.checkConflict(ctx, fingerprint, destination, claimed); err != nil {
		if errors.Is(err, services.ErrStateStore) {
			return err
		}
		groupFailed(err)
		return nil
	}

	if err := b.linkGroup(group, resolution.Identity, destination); err != nil {
		groupFailed(err)
		if !b.dryRun && retired == nil {
			return b.recordOutcome(ctx, group, resolution, destination, state.StatusFailed)
		}
		// A failed relink keeps the committed record; its placement is
		// still the live one.
		return nil
	}

	claimed[destination] = fingerprint
	summary.Linked++
	logger.Info("group linked",
		logging.Int64("file_id", resolution.FileID),
		logging.String("identity", resolution.Identity.Label()),
		logging.String("destination", destination),
		logging.Bool("dry_run", b.dryRun))
	if b.dryRun {
		return nil
	}
	if err := b.recordOutcome(ctx, group, resolution, destination, state.StatusCommitted); err != nil {
		return err
	}
	return b.retire(ctx, retired, fingerprint)
}

// retire drops a superseded placement after its replacement has committed.
// When both records share a fingerprint the upsert already replaced the row,
// so only the old artifacts remain to remove.
func (b *Bridge) retire(ctx context.Context, retired *state.LinkRecord, fingerprint string) error {
	if retired == nil {
		return nil
	}
	var err error
	if retired.Fingerprint == fingerprint {
		err = b.cleaner.RetirePlacement(retired.DestinationPath)
	} else {
		err = b.cleaner.RemoveRecord(ctx, *retired)
	}
	if errors.Is(err, services.ErrStateStore) {
		return err
	}
	if err != nil {
		b.logger.Warn("superseded placement not fully removed",
			logging.String("destination", retired.DestinationPath),
			logging.Error(err))
	}
	return nil
}

// checkConflict enforces first-committed-wins for destination paths, both
// within the run and against committed records from earlier runs.
func (b *Bridge) checkConflict(ctx context.Context, fingerprint, destination string, claimed map[string]string) error {
	if owner, ok := claimed[destination]; ok && owner != fingerprint {
		return services.Wrap(services.ErrConflict, "plan", "destination",
			fmt.Sprintf("destination %s already claimed this run", destination), nil)
	}
	record, err := b.store.LookupByDestination(ctx, destination)
	if err != nil {
		return services.Wrap(services.ErrStateStore, "plan", "destination-lookup", "", err)
	}
	if record != nil && record.Fingerprint != fingerprint {
		return services.Wrap(services.ErrConflict, "plan", "destination",
			fmt.Sprintf("destination %s held by an earlier run", destination), nil)
	}
	return nil
}

// linkGroup applies the whole group in one transaction. Any failure rolls the
// group back to its pre-link state.
func (b *Bridge) linkGroup(group *catalog.FileGroup, id identity.Identity, destination string) error {
	tx := txn.Begin(b.logger, b.dryRun)

	link := func(source, dest string) error {
		target := ""
		if b.op == txn.OpSymlink {
			var err error
			if target, err = b.builder.SymlinkTarget(source, dest); err != nil {
				return err
			}
		}
		return tx.Link(b.op, source, dest, target)
	}

	if err := link(group.Primary.Path, destination); err != nil {
		tx.Rollback()
		return services.Wrap(services.ErrGroupFailed, "link", "primary", "", err)
	}
	for _, supplement := range group.Supplements {
		dest := b.builder.SupplementDestination(group.Primary.Path, destination, supplement)
		if err := link(supplement, dest); err != nil {
			tx.Rollback()
			return services.Wrap(services.ErrGroupFailed, "link", "supplement", "", err)
		}
	}

	tx.Commit()
	return nil
}

// recordOutcome persists the group's result. A store write failure is fatal:
// without the record the next run cannot guarantee idempotency.
func (b *Bridge) recordOutcome(ctx context.Context, group *catalog.FileGroup, resolution resolver.Resolution, destination string, status state.RecordStatus) error {
	identityJSON := ""
	if status == state.StatusCommitted {
		encoded, err := resolution.Identity.Encode()
		if err != nil {
			return services.Wrap(services.ErrStateStore, "record", "encode-identity", "", err)
		}
		identityJSON = encoded
	}
	err := b.store.Commit(ctx, &state.LinkRecord{
		Fingerprint:     group.Primary.Fingerprint(),
		SourcePath:      group.Primary.Path,
		CatalogID:       resolution.FileID,
		IdentityJSON:    identityJSON,
		DestinationPath: destination,
		Operation:       string(b.op),
		LastRunAt:       time.Now().UTC(),
		Status:          status,
	})
	if err != nil {
		return services.Wrap(services.ErrStateStore, "record", "commit",
			fmt.Sprintf("persist link record for file %d", resolution.FileID), err)
	}
	return nil
}
