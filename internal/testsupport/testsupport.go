// Package testsupport holds helpers shared by package tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"shokobridge/internal/state"
)

// WriteFile creates path with the given content, making parent directories as
// needed.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadFile returns the content of path, failing the test on error.
func ReadFile(t testing.TB, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// OpenStore opens a state store in a fresh temporary directory and closes it
// when the test finishes.
func OpenStore(t testing.TB) *state.Store {
	t.Helper()
	return OpenStoreAt(t, filepath.Join(t.TempDir(), "state.db"))
}

// OpenStoreAt opens a state store at path and closes it when the test
// finishes.
func OpenStoreAt(t testing.TB, path string) *state.Store {
	t.Helper()
	store, err := state.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
