package txn_test

import (
	"os"
	"path/filepath"
	"testing"

	"shokobridge/internal/testsupport"
	"shokobridge/internal/txn"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	testsupport.WriteFile(t, path, content)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	return testsupport.ReadFile(t, path)
}

func TestParseOperation(t *testing.T) {
	for _, valid := range []string{"move", "copy", "hardlink", "symlink", " Symlink "} {
		if _, err := txn.ParseOperation(valid); err != nil {
			t.Fatalf("ParseOperation(%q) failed: %v", valid, err)
		}
	}
	if _, err := txn.ParseOperation("reflink"); err == nil {
		t.Fatal("expected error for unknown operation")
	}
}

func TestCopyThenCommit(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "src", "ep.mkv")
	destination := filepath.Join(root, "lib", "Show", "Season 01", "ep.mkv")
	writeFile(t, source, "video-bytes")

	tx := txn.Begin(nil, false)
	if err := tx.Link(txn.OpCopy, source, destination, ""); err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	tx.Commit()

	if readFile(t, destination) != "video-bytes" {
		t.Fatal("destination content mismatch")
	}
	if readFile(t, source) != "video-bytes" {
		t.Fatal("source must survive a copy")
	}
}

func TestRollbackRestoresMove(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "src", "ep.mkv")
	destination := filepath.Join(root, "lib", "Show", "ep.mkv")
	writeFile(t, source, "payload")

	tx := txn.Begin(nil, false)
	if err := tx.Link(txn.OpMove, source, destination, ""); err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Fatal("source should be gone after move")
	}
	tx.Rollback()

	if readFile(t, source) != "payload" {
		t.Fatal("rollback must restore the moved source byte for byte")
	}
	if _, err := os.Stat(destination); !os.IsNotExist(err) {
		t.Fatal("destination should be gone after rollback")
	}
}

func TestRollbackPrunesCreatedDirectories(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "src", "ep.mkv")
	destination := filepath.Join(root, "lib", "Show", "Season 01", "ep.mkv")
	writeFile(t, source, "payload")

	tx := txn.Begin(nil, false)
	if err := tx.Link(txn.OpCopy, source, destination, ""); err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	tx.Rollback()

	if _, err := os.Stat(filepath.Join(root, "lib")); !os.IsNotExist(err) {
		t.Fatal("created directory chain should be pruned")
	}
}

func TestRollbackKeepsPreexistingDirectories(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "src", "ep.mkv")
	libDir := filepath.Join(root, "lib", "Show")
	writeFile(t, source, "payload")
	if err := os.MkdirAll(libDir, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	tx := txn.Begin(nil, false)
	if err := tx.Link(txn.OpCopy, source, filepath.Join(libDir, "Season 01", "ep.mkv"), ""); err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	tx.Rollback()

	if _, err := os.Stat(libDir); err != nil {
		t.Fatalf("pre-existing directory must survive rollback: %v", err)
	}
	if _, err := os.Stat(filepath.Join(libDir, "Season 01")); !os.IsNotExist(err) {
		t.Fatal("directory created by the transaction should be pruned")
	}
}

func TestRollbackReversesMultipleLinks(t *testing.T) {
	root := t.TempDir()
	sourceA := filepath.Join(root, "src", "ep.mkv")
	sourceB := filepath.Join(root, "src", "ep.srt")
	writeFile(t, sourceA, "video")
	writeFile(t, sourceB, "subs")
	destA := filepath.Join(root, "lib", "ep.mkv")
	destB := filepath.Join(root, "lib", "ep.srt")

	tx := txn.Begin(nil, false)
	if err := tx.Link(txn.OpMove, sourceA, destA, ""); err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if err := tx.Link(txn.OpMove, sourceB, destB, ""); err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	tx.Rollback()

	if readFile(t, sourceA) != "video" || readFile(t, sourceB) != "subs" {
		t.Fatal("all moved files must be restored")
	}
}

func TestSymlinkUsesGivenTarget(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "src", "ep.mkv")
	destination := filepath.Join(root, "lib", "ep.mkv")
	writeFile(t, source, "payload")

	tx := txn.Begin(nil, false)
	target := filepath.Join("..", "src", "ep.mkv")
	if err := tx.Link(txn.OpSymlink, source, destination, target); err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	tx.Commit()

	got, err := os.Readlink(destination)
	if err != nil {
		t.Fatalf("Readlink failed: %v", err)
	}
	if got != target {
		t.Fatalf("link target = %q, want %q", got, target)
	}
}

func TestHardlinkSharesInode(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "src", "ep.mkv")
	destination := filepath.Join(root, "lib", "ep.mkv")
	writeFile(t, source, "payload")

	tx := txn.Begin(nil, false)
	if err := tx.Link(txn.OpHardlink, source, destination, ""); err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	tx.Commit()

	if readFile(t, destination) != "payload" {
		t.Fatal("hardlink content mismatch")
	}
}

func TestLinkRefusesExistingDestination(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "src", "ep.mkv")
	destination := filepath.Join(root, "lib", "ep.mkv")
	writeFile(t, source, "new")
	writeFile(t, destination, "old")

	tx := txn.Begin(nil, false)
	if err := tx.Link(txn.OpCopy, source, destination, ""); err == nil {
		t.Fatal("expected error for occupied destination")
	}
	if readFile(t, destination) != "old" {
		t.Fatal("occupied destination must not be touched")
	}
}

func TestDryRunTouchesNothing(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "src", "ep.mkv")
	destination := filepath.Join(root, "lib", "ep.mkv")
	writeFile(t, source, "payload")

	tx := txn.Begin(nil, true)
	if err := tx.Link(txn.OpMove, source, destination, ""); err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	tx.Commit()

	if _, err := os.Stat(destination); !os.IsNotExist(err) {
		t.Fatal("dry run must not create the destination")
	}
	if readFile(t, source) != "payload" {
		t.Fatal("dry run must not move the source")
	}
}

func TestEnsureHardlinkCapableSameVolume(t *testing.T) {
	root := t.TempDir()
	if err := txn.EnsureHardlinkCapable(root, filepath.Join(root, "not-yet-created", "deep")); err != nil {
		t.Fatalf("EnsureHardlinkCapable failed: %v", err)
	}
}
