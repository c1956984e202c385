package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"shokobridge/internal/logging"
	"shokobridge/internal/services"
)

// Watcher triggers reconciliation passes when the source tree changes.
// Bursts of events collapse into one pass after a quiet period.
type Watcher struct {
	root     string
	debounce time.Duration
	run      func(context.Context) error
	logger   *slog.Logger
}

// New creates a watcher over root. run is invoked after each debounced burst;
// its non-fatal errors are logged and watching continues.
func New(root string, debounce time.Duration, run func(context.Context) error, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 30 * time.Second
	}
	return &Watcher{
		root:     filepath.Clean(root),
		debounce: debounce,
		run:      run,
		logger:   logging.NewComponentLogger(logger, "watch"),
	}
}

// Watch blocks until ctx is cancelled or a fatal run error occurs. An
// initial pass runs before any filesystem event.
func (w *Watcher) Watch(ctx context.Context) error {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer notifier.Close()

	if err := w.addTree(notifier, w.root); err != nil {
		return err
	}
	w.logger.Info("watching source tree",
		logging.String("root", w.root),
		logging.Duration("debounce", w.debounce))

	if err := w.runOnce(ctx); err != nil {
		return err
	}

	// The timer stays parked until the first event arrives.
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-notifier.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(notifier, event.Name); err != nil {
						w.logger.Warn("watch new directory failed",
							logging.String("dir", event.Name), logging.Error(err))
					}
				}
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
				!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("change detected", logging.String("path", event.Name))
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.debounce)
			pending = true

		case err, ok := <-notifier.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", logging.Error(err))

		case <-timer.C:
			pending = false
			if err := w.runOnce(ctx); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context) error {
	err := w.run(ctx)
	if err == nil {
		return nil
	}
	if services.IsFatal(err) || ctx.Err() != nil {
		return err
	}
	w.logger.Error("pass failed, continuing to watch", logging.Error(err))
	return nil
}

func (w *Watcher) addTree(notifier *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if err := notifier.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
