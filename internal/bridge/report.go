package bridge

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// Summary captures the outcome of one reconciliation pass.
type Summary struct {
	RunID     string
	DryRun    bool
	Linked    int
	Skipped   int
	Cleaned   int
	Failures  []Failure
	Unmatched []Unmatched
	Elapsed   time.Duration
}

// Failure is a group that resolved but could not be linked.
type Failure struct {
	FileID int64
	Path   string
	Err    error
}

// Unmatched is a file no resolution step could identify.
type Unmatched struct {
	FileID int64
	Path   string
	Reason string
}

// WriteSummary renders the run summary as tables. Colors apply only when w is
// a terminal.
func WriteSummary(w io.Writer, summary *Summary) {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	title := "Run " + summary.RunID
	if summary.DryRun {
		title += " (dry run)"
	}

	overview := table.NewWriter()
	overview.SetOutputMirror(w)
	overview.SetTitle(title)
	overview.AppendHeader(table.Row{"Linked", "Skipped", "Failed", "Unmatched", "Cleaned", "Elapsed"})
	overview.AppendRow(table.Row{
		summary.Linked,
		summary.Skipped,
		len(summary.Failures),
		len(summary.Unmatched),
		summary.Cleaned,
		summary.Elapsed.Round(time.Millisecond),
	})
	applyStyle(overview, styled)
	overview.Render()

	if len(summary.Failures) > 0 {
		failures := table.NewWriter()
		failures.SetOutputMirror(w)
		failures.SetTitle("Failed groups")
		failures.AppendHeader(table.Row{"File ID", "Path", "Error"})
		for _, failure := range summary.Failures {
			failures.AppendRow(table.Row{failure.FileID, failure.Path, failure.Err.Error()})
		}
		applyStyle(failures, styled)
		failures.Render()
	}

	if len(summary.Unmatched) > 0 {
		fmt.Fprintf(w, "%d files could not be identified; see the unmatched report.\n", len(summary.Unmatched))
	}
}

func applyStyle(t table.Writer, styled bool) {
	if !styled {
		t.SetStyle(table.StyleLight)
		return
	}
	style := table.StyleLight
	style.Title.Colors = text.Colors{text.Bold}
	style.Color.Header = text.Colors{text.FgHiWhite}
	t.SetStyle(style)
}

// WriteUnmatchedReport persists the unmatched files to the configured report
// path, one line per file. An empty run removes a stale report.
func WriteUnmatchedReport(path string, summary *Summary) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if len(summary.Unmatched) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale report %s: %w", path, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# unmatched files, run %s at %s\n",
		summary.RunID, time.Now().UTC().Format(time.RFC3339))
	for _, entry := range summary.Unmatched {
		fmt.Fprintf(&b, "file_id=%d\tpath=%s\treason=%s\n", entry.FileID, entry.Path, entry.Reason)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}
	return nil
}
