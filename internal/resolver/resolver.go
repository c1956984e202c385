package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"shokobridge/internal/identity"
	"shokobridge/internal/logging"
	"shokobridge/internal/services"
	"shokobridge/internal/shoko"
	"shokobridge/internal/textutil"
	"shokobridge/internal/tmdb"
)

// Resolution is the outcome of identifying one catalog file.
type Resolution struct {
	FileID       int64
	RelativePath string
	Identity     identity.Identity
	Err          error
}

// Resolved reports whether the file obtained a usable identity.
func (r Resolution) Resolved() bool {
	return r.Err == nil
}

// Resolver maps catalog files to identities. It walks a fixed fallback
// hierarchy: movie cross-reference, episode cross-reference, title
// similarity, then extras classification.
type Resolver struct {
	catalog   shoko.Catalog
	metadata  tmdb.Metadata
	threshold float64
	workers   int
	logger    *slog.Logger
}

// New creates a resolver. threshold is the minimum title similarity ratio
// accepted by the fallback matcher; workers bounds concurrent resolutions.
func New(catalog shoko.Catalog, metadata tmdb.Metadata, threshold float64, workers int, logger *slog.Logger) *Resolver {
	if workers < 1 {
		workers = 1
	}
	return &Resolver{
		catalog:   catalog,
		metadata:  metadata,
		threshold: threshold,
		workers:   workers,
		logger:    logging.NewComponentLogger(logger, "resolver"),
	}
}

// ResolveAll resolves every file id with bounded parallelism. Results come
// back in input order; per-file failures are recorded, never propagated.
func (r *Resolver) ResolveAll(ctx context.Context, fileIDs []int64) []Resolution {
	results := make([]Resolution, len(fileIDs))
	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup

	for i, fileID := range fileIDs {
		// Acquire before spawning so a large catalog never holds more
		// than workers goroutines at once.
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, fileID int64) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = r.ResolveFile(ctx, fileID)
		}(i, fileID)
	}
	wg.Wait()
	return results
}

// ResolveFile identifies a single catalog file.
func (r *Resolver) ResolveFile(ctx context.Context, fileID int64) Resolution {
	result := Resolution{FileID: fileID}

	details, err := r.catalog.GetFileDetails(ctx, fileID)
	if err != nil {
		result.Err = services.Wrap(services.ErrUnresolved, "resolve", "file-details",
			fmt.Sprintf("fetch file %d", fileID), err)
		return result
	}
	if len(details.Locations) == 0 || strings.TrimSpace(details.Locations[0].RelativePath) == "" {
		result.Err = services.Wrap(services.ErrUnresolved, "resolve", "locations",
			fmt.Sprintf("file %d has no location", fileID), nil)
		return result
	}
	result.RelativePath = details.Locations[0].RelativePath

	if len(details.SeriesIDs) == 0 {
		result.Err = services.Wrap(services.ErrUnresolved, "resolve", "cross-refs",
			fmt.Sprintf("file %d has no series cross-reference", fileID), nil)
		return result
	}
	xref := details.SeriesIDs[0]
	if len(xref.EpisodeIDs) == 0 {
		result.Err = services.Wrap(services.ErrUnresolved, "resolve", "cross-refs",
			fmt.Sprintf("file %d has no episode cross-reference", fileID), nil)
		return result
	}

	episode, err := r.catalog.GetEpisodeDetails(ctx, xref.EpisodeIDs[0].ID)
	if err != nil {
		result.Err = services.Wrap(services.ErrUnresolved, "resolve", "episode-details",
			fmt.Sprintf("fetch episode %d for file %d", xref.EpisodeIDs[0].ID, fileID), err)
		return result
	}

	var showID int64
	if len(xref.SeriesID.TMDB.Show) > 0 {
		showID = xref.SeriesID.TMDB.Show[0]
	}

	id, err := r.identify(ctx, fileID, showID, episode)
	if err != nil {
		result.Err = err
		return result
	}
	result.Identity = id
	r.logger.Debug("file resolved",
		logging.Int64("file_id", fileID),
		logging.String("identity", id.Label()))
	return result
}

// identify walks the fallback hierarchy for one episode record.
func (r *Resolver) identify(ctx context.Context, fileID, showID int64, episode *shoko.EpisodeDetails) (identity.Identity, error) {
	if len(episode.IDs.TMDB.Movie) > 0 {
		return r.identifyMovie(ctx, episode.IDs.TMDB.Movie[0], episode)
	}
	if len(episode.IDs.TMDB.Episode) > 0 {
		return r.identifyEpisode(ctx, showID, episode.IDs.TMDB.Episode[0], episode)
	}
	typeTag := episode.AniDB.Type
	if typeTag == "Normal" || typeTag == "" {
		return r.identifyBySimilarity(ctx, fileID, showID, episode)
	}
	return r.identifyExtra(ctx, showID, typeTag, episode)
}

func (r *Resolver) identifyMovie(ctx context.Context, movieID int64, episode *shoko.EpisodeDetails) (identity.Identity, error) {
	// The catalog often embeds the movie metadata it already pulled from
	// TMDB; use it before going upstream.
	for _, embedded := range episode.TMDB.Movies {
		if embedded.ID == movieID {
			return identity.NewMovie(identity.Movie{
				TMDBID: movieID,
				Title:  embedded.Title,
				Year:   yearOf(embedded.ReleasedAt),
			}), nil
		}
	}

	details, err := r.metadata.GetMovieDetails(ctx, movieID)
	if err != nil {
		return identity.Identity{}, services.Wrap(services.ErrUnresolved, "resolve", "movie-details",
			fmt.Sprintf("fetch movie %d", movieID), err)
	}
	return identity.NewMovie(identity.Movie{
		TMDBID: movieID,
		Title:  details.Title,
		Year:   yearOf(details.ReleaseDate),
	}), nil
}

func (r *Resolver) identifyEpisode(ctx context.Context, showID, episodeID int64, episode *shoko.EpisodeDetails) (identity.Identity, error) {
	if showID == 0 {
		return identity.Identity{}, services.Wrap(services.ErrUnresolved, "resolve", "series-id",
			"episode cross-reference without a series id", nil)
	}
	series, err := r.metadata.GetTVDetails(ctx, showID)
	if err != nil {
		return identity.Identity{}, services.Wrap(services.ErrUnresolved, "resolve", "series-details",
			fmt.Sprintf("fetch series %d", showID), err)
	}

	for _, embedded := range episode.TMDB.Episodes {
		if embedded.ID == episodeID {
			return identity.NewEpisode(identity.Episode{
				TMDBSeriesID: showID,
				SeriesTitle:  series.Name,
				SeriesYear:   yearOf(series.FirstAirDate),
				Season:       embedded.SeasonNumber,
				Episode:      embedded.EpisodeNumber,
				EpisodeTitle: embedded.Title,
			}), nil
		}
	}

	// No embedded copy; walk the season listings for the episode id.
	for season := 1; season <= series.NumberOfSeasons; season++ {
		listing, err := r.metadata.GetSeasonDetails(ctx, showID, season)
		if err != nil {
			return identity.Identity{}, services.Wrap(services.ErrUnresolved, "resolve", "season-details",
				fmt.Sprintf("fetch series %d season %d", showID, season), err)
		}
		for _, candidate := range listing.Episodes {
			if candidate.ID == episodeID {
				return identity.NewEpisode(identity.Episode{
					TMDBSeriesID: showID,
					SeriesTitle:  series.Name,
					SeriesYear:   yearOf(series.FirstAirDate),
					Season:       candidate.SeasonNumber,
					Episode:      candidate.EpisodeNumber,
					EpisodeTitle: candidate.Name,
				}), nil
			}
		}
	}
	return identity.Identity{}, services.Wrap(services.ErrUnresolved, "resolve", "episode-lookup",
		fmt.Sprintf("episode %d not found in series %d", episodeID, showID), nil)
}

// identifyBySimilarity matches a regular episode by comparing its catalog
// title against every episode title of the linked series. The best ratio at
// or above the threshold wins; ties keep the earliest candidate.
func (r *Resolver) identifyBySimilarity(ctx context.Context, fileID, showID int64, episode *shoko.EpisodeDetails) (identity.Identity, error) {
	name := strings.TrimSpace(episode.Name)
	if showID == 0 || name == "" {
		return identity.Identity{}, services.Wrap(services.ErrUnresolved, "resolve", "similarity",
			fmt.Sprintf("file %d lacks a series id or episode title", fileID), nil)
	}
	series, err := r.metadata.GetTVDetails(ctx, showID)
	if err != nil {
		return identity.Identity{}, services.Wrap(services.ErrUnresolved, "resolve", "series-details",
			fmt.Sprintf("fetch series %d", showID), err)
	}

	var (
		best      tmdb.SeasonEpisode
		bestRatio = -1.0
		found     bool
	)
	for season := 1; season <= series.NumberOfSeasons; season++ {
		listing, err := r.metadata.GetSeasonDetails(ctx, showID, season)
		if err != nil {
			return identity.Identity{}, services.Wrap(services.ErrUnresolved, "resolve", "season-details",
				fmt.Sprintf("fetch series %d season %d", showID, season), err)
		}
		for _, candidate := range listing.Episodes {
			// Strict greater-than keeps the earliest candidate on ties.
			if ratio := textutil.Ratio(name, candidate.Name); ratio > bestRatio {
				bestRatio = ratio
				if ratio >= r.threshold {
					best = candidate
					found = true
				}
			}
		}
	}
	if !found {
		return identity.Identity{}, services.Wrap(services.ErrUnresolved, "resolve", "similarity",
			fmt.Sprintf("no episode title within threshold for %q (best %.2f)", name, bestRatio), nil)
	}
	r.logger.Debug("similarity match",
		logging.Int64("file_id", fileID),
		logging.String("title", name),
		logging.Float64("ratio", bestRatio))
	return identity.NewEpisode(identity.Episode{
		TMDBSeriesID: showID,
		SeriesTitle:  series.Name,
		SeriesYear:   yearOf(series.FirstAirDate),
		Season:       best.SeasonNumber,
		Episode:      best.EpisodeNumber,
		EpisodeTitle: best.Name,
	}), nil
}

func (r *Resolver) identifyExtra(ctx context.Context, showID int64, typeTag string, episode *shoko.EpisodeDetails) (identity.Identity, error) {
	category, ok := identity.ClassifyTypeTag(typeTag)
	if !ok {
		return identity.Identity{}, services.Wrap(services.ErrUnresolved, "resolve", "classify",
			fmt.Sprintf("unclassifiable episode type %q", typeTag), nil)
	}
	if showID == 0 {
		return identity.Identity{}, services.Wrap(services.ErrUnresolved, "resolve", "series-id",
			"extra without a series id", nil)
	}
	series, err := r.metadata.GetTVDetails(ctx, showID)
	if err != nil {
		return identity.Identity{}, services.Wrap(services.ErrUnresolved, "resolve", "series-details",
			fmt.Sprintf("fetch series %d", showID), err)
	}
	return identity.NewExtra(identity.Extra{
		Category:    category,
		SeriesTitle: series.Name,
		SeriesYear:  yearOf(series.FirstAirDate),
		Title:       episode.Name,
	}), nil
}

func yearOf(date string) string {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}
