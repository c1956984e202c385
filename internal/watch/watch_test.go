package watch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"shokobridge/internal/services"
	"shokobridge/internal/watch"
)

func TestInitialPassRuns(t *testing.T) {
	var runs atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())

	watcher := watch.New(t.TempDir(), time.Hour, func(context.Context) error {
		runs.Add(1)
		cancel()
		return nil
	}, nil)

	if err := watcher.Watch(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Watch returned %v", err)
	}
	if runs.Load() != 1 {
		t.Fatalf("runs = %d, want 1", runs.Load())
	}
}

func TestBurstCollapsesIntoOnePass(t *testing.T) {
	root := t.TempDir()
	var runs atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())

	watcher := watch.New(root, 150*time.Millisecond, func(context.Context) error {
		if runs.Add(1) == 2 {
			cancel()
		}
		return nil
	}, nil)

	done := make(chan error, 1)
	go func() { done <- watcher.Watch(ctx) }()

	// Give the watcher time to install, then write a burst of files.
	time.Sleep(200 * time.Millisecond)
	for i := 0; i < 5; i++ {
		name := filepath.Join(root, "file"+string(rune('a'+i))+".mkv")
		if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Watch returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not trigger a pass")
	}
	if runs.Load() != 2 {
		t.Fatalf("runs = %d, want initial pass plus one debounced pass", runs.Load())
	}
}

func TestFatalErrorStopsWatching(t *testing.T) {
	fatal := services.Wrap(services.ErrConfiguration, "startup", "check", "bad setup", nil)
	watcher := watch.New(t.TempDir(), time.Hour, func(context.Context) error {
		return fatal
	}, nil)

	err := watcher.Watch(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("Watch returned %v", err)
	}
}

func TestNonFatalErrorKeepsWatching(t *testing.T) {
	var runs atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())
	root := t.TempDir()

	watcher := watch.New(root, 50*time.Millisecond, func(context.Context) error {
		if runs.Add(1) == 2 {
			cancel()
			return nil
		}
		return services.Wrap(services.ErrGroupFailed, "link", "primary", "one group failed", nil)
	}, nil)

	done := make(chan error, 1)
	go func() { done <- watcher.Watch(ctx) }()

	time.Sleep(150 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(root, "new.mkv"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Watch returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher stopped after a non-fatal error")
	}
}
