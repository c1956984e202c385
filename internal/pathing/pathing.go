package pathing

import (
	"fmt"
	"path/filepath"
	"strings"

	"shokobridge/internal/config"
	"shokobridge/internal/identity"
	"shokobridge/internal/textutil"
)

// Builder computes destination paths for resolved identities. It performs no
// filesystem access; the same inputs always yield the same path.
type Builder struct {
	showsDir         string
	moviesDir        string
	mappings         []config.PathMapping
	relativeSymlinks bool
}

// NewBuilder creates a builder from the directory layout settings.
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{
		showsDir:         cfg.Directories.ShowsDir,
		moviesDir:        cfg.Directories.MoviesDir,
		mappings:         cfg.PathMappings,
		relativeSymlinks: cfg.Options.UseRelativeSymlinks,
	}
}

// DestinationFor returns the absolute destination path for the primary file
// of a resolved identity. The extension is carried over from sourcePath.
func (b *Builder) DestinationFor(id identity.Identity, sourcePath string) (string, error) {
	if err := id.Validate(); err != nil {
		return "", err
	}
	ext := filepath.Ext(sourcePath)
	switch id.Kind {
	case identity.KindMovie:
		folder := textutil.SanitizeFileName(titleWithYear(id.Movie.Title, id.Movie.Year))
		return filepath.Join(b.moviesDir, folder, folder+ext), nil
	case identity.KindEpisode:
		ep := id.Episode
		series := textutil.SanitizeFileName(titleWithYear(ep.SeriesTitle, ep.SeriesYear))
		season := fmt.Sprintf("Season %02d", ep.Season)
		name := fmt.Sprintf("%s - s%02de%02d", series, ep.Season, ep.Episode)
		if title := strings.TrimSpace(ep.EpisodeTitle); title != "" {
			name += " - " + textutil.SanitizeFileName(title)
		}
		return filepath.Join(b.showsDir, series, season, name+ext), nil
	case identity.KindExtra:
		ex := id.Extra
		series := textutil.SanitizeFileName(titleWithYear(ex.SeriesTitle, ex.SeriesYear))
		folder := identity.CategoryFolder(ex.Category)
		title := strings.TrimSpace(ex.Title)
		if title == "" {
			// Untitled extras keep their source name so several within
			// one folder cannot collide.
			base := filepath.Base(sourcePath)
			title = strings.TrimSuffix(base, ext)
		}
		name := textutil.SanitizeFileName(title)
		return filepath.Join(b.showsDir, series, folder, name+ext), nil
	default:
		return "", fmt.Errorf("unknown identity kind %q", id.Kind)
	}
}

// SupplementDestination places a supplemental file next to its primary's
// destination, swapping the primary's stem for the destination stem so the
// supplement's own suffix (language tag, extension) survives.
func (b *Builder) SupplementDestination(primarySource, primaryDest, supplement string) string {
	sourceName := filepath.Base(primarySource)
	sourceStem := strings.TrimSuffix(sourceName, filepath.Ext(sourceName))
	destName := filepath.Base(primaryDest)
	destStem := strings.TrimSuffix(destName, filepath.Ext(destName))

	supplementName := filepath.Base(supplement)
	suffix := strings.TrimPrefix(supplementName, sourceStem)
	return filepath.Join(filepath.Dir(primaryDest), destStem+suffix)
}

// MapExternal rewrites a local path through the configured path mappings.
// The first matching mapping wins; an unmapped path is returned unchanged.
func (b *Builder) MapExternal(path string) (string, bool) {
	for _, mapping := range b.mappings {
		prefix := strings.TrimRight(mapping.ScriptPath, string(filepath.Separator))
		if path == prefix || strings.HasPrefix(path, prefix+string(filepath.Separator)) {
			rest := strings.TrimPrefix(path, prefix)
			return mapping.ExternalPath + rest, true
		}
	}
	return path, false
}

// SymlinkTarget computes what a symlink at destination should point at.
// Path mappings take precedence over relative targets.
func (b *Builder) SymlinkTarget(source, destination string) (string, error) {
	if mapped, ok := b.MapExternal(source); ok {
		return mapped, nil
	}
	if b.relativeSymlinks {
		target, err := filepath.Rel(filepath.Dir(destination), source)
		if err != nil {
			return "", fmt.Errorf("relative target for %s: %w", destination, err)
		}
		return target, nil
	}
	return source, nil
}

func titleWithYear(title, year string) string {
	title = strings.TrimSpace(title)
	if year = strings.TrimSpace(year); year != "" {
		return title + " (" + year + ")"
	}
	return title
}
