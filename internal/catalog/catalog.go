package catalog

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"shokobridge/internal/logging"
)

// SourceFile is one on-disk media file recognized by the catalog.
type SourceFile struct {
	FileID       int64
	Path         string
	RelativePath string
	Size         int64
	ModTime      time.Time
}

// Fingerprint returns the change-detection token for the file. Two scans of
// an unchanged file must produce the same token.
func (f SourceFile) Fingerprint() string {
	return Fingerprint(f.Size, f.ModTime)
}

// Fingerprint builds the token from a file's size and modification time.
func Fingerprint(size int64, modTime time.Time) string {
	return fmt.Sprintf("sz=%d;mt=%d", size, modTime.Unix())
}

// FileGroup is a primary media file together with the supplemental files that
// must move with it. Supplements share the primary's basename stem.
type FileGroup struct {
	Primary     SourceFile
	Supplements []string
}

// Scanner resolves catalog file references against the source tree. Directory
// listings are cached for the scanner's lifetime, so one scanner should not
// outlive a run.
type Scanner struct {
	root   string
	logger *slog.Logger

	mu       sync.Mutex
	dirCache map[string][]string
}

// NewScanner creates a scanner rooted at the media source directory.
func NewScanner(root string, logger *slog.Logger) *Scanner {
	return &Scanner{
		root:     filepath.Clean(root),
		logger:   logging.NewComponentLogger(logger, "catalog"),
		dirCache: make(map[string][]string),
	}
}

// Resolve stats the file behind a catalog reference and gathers its group.
// The returned group's supplements are sorted for deterministic processing.
func (s *Scanner) Resolve(fileID int64, relativePath string) (*FileGroup, error) {
	relativePath = filepath.FromSlash(strings.TrimSpace(relativePath))
	relativePath = strings.TrimPrefix(relativePath, string(filepath.Separator))
	if relativePath == "" {
		return nil, fmt.Errorf("file %d has no relative path", fileID)
	}

	absolute := filepath.Join(s.root, relativePath)
	info, err := os.Stat(absolute)
	if err != nil {
		return nil, fmt.Errorf("stat source %s: %w", absolute, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source %s is a directory", absolute)
	}

	primary := SourceFile{
		FileID:       fileID,
		Path:         absolute,
		RelativePath: relativePath,
		Size:         info.Size(),
		ModTime:      info.ModTime(),
	}

	supplements, err := s.findSupplements(primary)
	if err != nil {
		return nil, err
	}
	return &FileGroup{Primary: primary, Supplements: supplements}, nil
}

// findSupplements returns sibling files sharing the primary's stem, such as
// subtitles and metadata sidecars.
func (s *Scanner) findSupplements(primary SourceFile) ([]string, error) {
	dir := filepath.Dir(primary.Path)
	names, err := s.listDir(dir)
	if err != nil {
		return nil, err
	}

	primaryName := filepath.Base(primary.Path)
	stem := stemOf(primaryName)

	var supplements []string
	for _, name := range names {
		if name == primaryName {
			continue
		}
		if stemOf(name) != stem {
			continue
		}
		supplements = append(supplements, filepath.Join(dir, name))
	}
	sort.Strings(supplements)
	if len(supplements) > 0 {
		s.logger.Debug("supplemental files found",
			logging.String("primary", primary.Path),
			logging.Int("count", len(supplements)))
	}
	return supplements, nil
}

func (s *Scanner) listDir(dir string) ([]string, error) {
	s.mu.Lock()
	cached, ok := s.dirCache[dir]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source directory %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if entry.Type()&fs.ModeSymlink != 0 {
			// A sidecar symlink would be linked again on the destination
			// side, so only regular files count.
			continue
		}
		names = append(names, entry.Name())
	}

	s.mu.Lock()
	s.dirCache[dir] = names
	s.mu.Unlock()
	return names, nil
}

// stemOf strips the final extension. Multi-part suffixes like ".eng.srt"
// match because only the last extension is removed from the primary too.
func stemOf(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	// Language-tagged sidecars keep their tag: "Show - 01.eng.srt" has stem
	// "Show - 01.eng", which must still group with "Show - 01.mkv".
	if ext := filepath.Ext(stem); ext != "" && len(ext) <= 5 {
		if isLanguageTag(ext[1:]) {
			stem = strings.TrimSuffix(stem, ext)
		}
	}
	return stem
}

func isLanguageTag(tag string) bool {
	if len(tag) != 2 && len(tag) != 3 {
		return false
	}
	for _, r := range tag {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
