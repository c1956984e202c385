package txn

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"shokobridge/internal/logging"
)

// Txn applies the filesystem changes of one file group. Every applied change
// pushes a compensating step; Rollback runs them in reverse so a failed group
// leaves the destination tree as it was.
type Txn struct {
	logger *slog.Logger
	dryRun bool

	undo        []func() error
	createdDirs []string
}

// Begin starts a transaction. In dry-run mode operations are logged and
// validated but nothing touches the filesystem.
func Begin(logger *slog.Logger, dryRun bool) *Txn {
	return &Txn{
		logger: logging.NewComponentLogger(logger, "txn"),
		dryRun: dryRun,
	}
}

// Link materializes destination from source using the given operation.
// symlinkTarget is the link body for OpSymlink and ignored otherwise.
func (t *Txn) Link(op Operation, source, destination, symlinkTarget string) error {
	if t.dryRun {
		t.logger.Info("dry-run: would link",
			logging.String("op", string(op)),
			logging.String("source", source),
			logging.String("destination", destination))
		return nil
	}

	if err := t.ensureDir(filepath.Dir(destination)); err != nil {
		return err
	}
	if _, err := os.Lstat(destination); err == nil {
		return fmt.Errorf("destination %s already exists", destination)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("inspect destination %s: %w", destination, err)
	}

	switch op {
	case OpMove:
		if err := moveFile(source, destination); err != nil {
			return err
		}
		t.undo = append(t.undo, func() error { return moveFile(destination, source) })
	case OpCopy:
		if err := copyFile(source, destination); err != nil {
			return err
		}
		t.undo = append(t.undo, func() error { return os.Remove(destination) })
	case OpHardlink:
		if err := os.Link(source, destination); err != nil {
			return fmt.Errorf("hardlink %s: %w", destination, err)
		}
		t.undo = append(t.undo, func() error { return os.Remove(destination) })
	case OpSymlink:
		if err := os.Symlink(symlinkTarget, destination); err != nil {
			return fmt.Errorf("symlink %s: %w", destination, err)
		}
		t.undo = append(t.undo, func() error { return os.Remove(destination) })
	default:
		return fmt.Errorf("unknown link operation %q", op)
	}

	t.logger.Debug("linked",
		logging.String("op", string(op)),
		logging.String("destination", destination))
	return nil
}

// Commit discards the compensation log; the group's changes stay in place.
func (t *Txn) Commit() {
	t.undo = nil
	t.createdDirs = nil
}

// Rollback undoes every applied change in reverse order, then removes
// directories the transaction created, deepest first. Compensation failures
// are logged and skipped so the remaining steps still run.
func (t *Txn) Rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		if err := t.undo[i](); err != nil {
			t.logger.Warn("rollback step failed", logging.Error(err))
		}
	}
	t.undo = nil

	for i := len(t.createdDirs) - 1; i >= 0; i-- {
		dir := t.createdDirs[i]
		if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
			// Non-empty means another group already placed files there.
			t.logger.Debug("created directory kept", logging.String("dir", dir))
		}
	}
	t.createdDirs = nil
}

// ensureDir creates dir and records every ancestor that did not exist before,
// so rollback can prune them again.
func (t *Txn) ensureDir(dir string) error {
	var missing []string
	probe := filepath.Clean(dir)
	for {
		if _, err := os.Lstat(probe); err == nil {
			break
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("inspect directory %s: %w", probe, err)
		}
		missing = append(missing, probe)
		parent := filepath.Dir(probe)
		if parent == probe {
			break
		}
		probe = parent
	}
	if len(missing) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	// Shallowest first so rollback removal order is deepest first.
	for i := len(missing) - 1; i >= 0; i-- {
		t.createdDirs = append(t.createdDirs, missing[i])
	}
	return nil
}

// moveFile renames, falling back to copy-and-remove across filesystems.
func moveFile(source, destination string) error {
	if err := os.Rename(source, destination); err == nil {
		return nil
	}
	if err := copyFile(source, destination); err != nil {
		return fmt.Errorf("move %s: %w", destination, err)
	}
	if err := os.Remove(source); err != nil {
		return fmt.Errorf("remove moved source %s: %w", source, err)
	}
	return nil
}

func copyFile(source, destination string) error {
	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("open source %s: %w", source, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source %s: %w", source, err)
	}

	out, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create destination %s: %w", destination, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(destination)
		return fmt.Errorf("copy to %s: %w", destination, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(destination)
		return fmt.Errorf("finish %s: %w", destination, err)
	}
	return nil
}
