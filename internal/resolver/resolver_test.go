package resolver_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"shokobridge/internal/identity"
	"shokobridge/internal/resolver"
	"shokobridge/internal/services"
	"shokobridge/internal/shoko"
	"shokobridge/internal/tmdb"
)

type fakeCatalog struct {
	files    map[int64]*shoko.FileDetails
	episodes map[int64]*shoko.EpisodeDetails
}

func (f *fakeCatalog) CheckConnection(context.Context) error { return nil }

func (f *fakeCatalog) ListFileIDs(context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(f.files))
	for id := range f.files {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeCatalog) GetFileDetails(_ context.Context, fileID int64) (*shoko.FileDetails, error) {
	details, ok := f.files[fileID]
	if !ok {
		return nil, fmt.Errorf("no file %d", fileID)
	}
	return details, nil
}

func (f *fakeCatalog) GetEpisodeDetails(_ context.Context, episodeID int64) (*shoko.EpisodeDetails, error) {
	details, ok := f.episodes[episodeID]
	if !ok {
		return nil, fmt.Errorf("no episode %d", episodeID)
	}
	return details, nil
}

type fakeMetadata struct {
	movies  map[int64]*tmdb.MovieDetails
	series  map[int64]*tmdb.TVDetails
	seasons map[string]*tmdb.SeasonDetails
}

func (f *fakeMetadata) GetMovieDetails(_ context.Context, movieID int64) (*tmdb.MovieDetails, error) {
	details, ok := f.movies[movieID]
	if !ok {
		return nil, fmt.Errorf("no movie %d", movieID)
	}
	return details, nil
}

func (f *fakeMetadata) GetTVDetails(_ context.Context, seriesID int64) (*tmdb.TVDetails, error) {
	details, ok := f.series[seriesID]
	if !ok {
		return nil, fmt.Errorf("no series %d", seriesID)
	}
	return details, nil
}

func (f *fakeMetadata) GetSeasonDetails(_ context.Context, seriesID int64, season int) (*tmdb.SeasonDetails, error) {
	details, ok := f.seasons[fmt.Sprintf("%d/%d", seriesID, season)]
	if !ok {
		return nil, fmt.Errorf("no season %d/%d", seriesID, season)
	}
	return details, nil
}

func fileWith(relPath string, showID int64, episodeIDs ...int64) *shoko.FileDetails {
	details := &shoko.FileDetails{ID: 1}
	details.Locations = []shoko.FileLocation{{RelativePath: relPath}}
	xref := shoko.SeriesCrossRef{}
	if showID != 0 {
		xref.SeriesID.TMDB.Show = []int64{showID}
	}
	for _, id := range episodeIDs {
		xref.EpisodeIDs = append(xref.EpisodeIDs, shoko.EpisodeRef{ID: id})
	}
	details.SeriesIDs = []shoko.SeriesCrossRef{xref}
	return details
}

func TestMovieCrossReferenceWins(t *testing.T) {
	episode := &shoko.EpisodeDetails{Name: "Complete Movie"}
	episode.IDs.TMDB.Movie = []int64{603}
	episode.IDs.TMDB.Episode = []int64{900}
	episode.AniDB.Type = "Normal"

	catalog := &fakeCatalog{
		files:    map[int64]*shoko.FileDetails{1: fileWith("movie.mkv", 0, 50)},
		episodes: map[int64]*shoko.EpisodeDetails{50: episode},
	}
	metadata := &fakeMetadata{movies: map[int64]*tmdb.MovieDetails{
		603: {ID: 603, Title: "The Matrix", ReleaseDate: "1999-03-31"},
	}}

	result := resolver.New(catalog, metadata, 0.8, 1, nil).ResolveFile(context.Background(), 1)
	if !result.Resolved() {
		t.Fatalf("ResolveFile failed: %v", result.Err)
	}
	if result.Identity.Kind != identity.KindMovie {
		t.Fatalf("kind = %q", result.Identity.Kind)
	}
	if result.Identity.Movie.Title != "The Matrix" || result.Identity.Movie.Year != "1999" {
		t.Fatalf("movie = %+v", result.Identity.Movie)
	}
}

func TestEmbeddedMovieDataShortCircuitsUpstream(t *testing.T) {
	episode := &shoko.EpisodeDetails{Name: "Complete Movie"}
	episode.IDs.TMDB.Movie = []int64{603}
	episode.TMDB.Movies = []shoko.TMDBMovieData{{ID: 603, Title: "The Matrix", ReleasedAt: "1999-03-31"}}

	catalog := &fakeCatalog{
		files:    map[int64]*shoko.FileDetails{1: fileWith("movie.mkv", 0, 50)},
		episodes: map[int64]*shoko.EpisodeDetails{50: episode},
	}
	// Empty metadata: any upstream call would fail the resolution.
	metadata := &fakeMetadata{}

	result := resolver.New(catalog, metadata, 0.8, 1, nil).ResolveFile(context.Background(), 1)
	if !result.Resolved() {
		t.Fatalf("ResolveFile failed: %v", result.Err)
	}
	if result.Identity.Movie.Year != "1999" {
		t.Fatalf("movie = %+v", result.Identity.Movie)
	}
}

func TestEpisodeCrossReferenceUsesEmbeddedData(t *testing.T) {
	episode := &shoko.EpisodeDetails{Name: "Pilot"}
	episode.IDs.TMDB.Episode = []int64{900}
	episode.TMDB.Episodes = []shoko.TMDBEpisodeData{
		{ID: 900, Title: "Pilot", SeasonNumber: 1, EpisodeNumber: 1},
	}

	catalog := &fakeCatalog{
		files:    map[int64]*shoko.FileDetails{1: fileWith("Show/Show - 01.mkv", 100, 50)},
		episodes: map[int64]*shoko.EpisodeDetails{50: episode},
	}
	metadata := &fakeMetadata{series: map[int64]*tmdb.TVDetails{
		100: {ID: 100, Name: "Show", FirstAirDate: "2020-01-01", NumberOfSeasons: 1},
	}}

	result := resolver.New(catalog, metadata, 0.8, 1, nil).ResolveFile(context.Background(), 1)
	if !result.Resolved() {
		t.Fatalf("ResolveFile failed: %v", result.Err)
	}
	ep := result.Identity.Episode
	if ep == nil || ep.Season != 1 || ep.Episode != 1 || ep.SeriesTitle != "Show" {
		t.Fatalf("episode = %+v", ep)
	}
	if result.RelativePath != "Show/Show - 01.mkv" {
		t.Fatalf("relative path = %q", result.RelativePath)
	}
}

func similarityFixture(episodeTitle string) (*fakeCatalog, *fakeMetadata) {
	episode := &shoko.EpisodeDetails{Name: episodeTitle}
	episode.AniDB.Type = "Normal"
	catalog := &fakeCatalog{
		files:    map[int64]*shoko.FileDetails{1: fileWith("Show/ep.mkv", 100, 50)},
		episodes: map[int64]*shoko.EpisodeDetails{50: episode},
	}
	metadata := &fakeMetadata{
		series: map[int64]*tmdb.TVDetails{
			100: {ID: 100, Name: "Show", FirstAirDate: "2020-01-01", NumberOfSeasons: 1},
		},
		seasons: map[string]*tmdb.SeasonDetails{
			"100/1": {Episodes: []tmdb.SeasonEpisode{
				{ID: 900, Name: "The Long Voyage Home", SeasonNumber: 1, EpisodeNumber: 1},
				{ID: 901, Name: "Another Story Entirely", SeasonNumber: 1, EpisodeNumber: 2},
			}},
		},
	}
	return catalog, metadata
}

func TestSimilarityMatchAtThreshold(t *testing.T) {
	catalog, metadata := similarityFixture("The Long Voyage Home")

	// Exact title: ratio 1.0, comfortably above any threshold.
	result := resolver.New(catalog, metadata, 1.0, 1, nil).ResolveFile(context.Background(), 1)
	if !result.Resolved() {
		t.Fatalf("ResolveFile failed: %v", result.Err)
	}
	if result.Identity.Episode.Episode != 1 {
		t.Fatalf("episode = %+v", result.Identity.Episode)
	}
}

func TestSimilarityBelowThresholdIsUnresolved(t *testing.T) {
	catalog, metadata := similarityFixture("Utterly Different Name")

	result := resolver.New(catalog, metadata, 0.8, 1, nil).ResolveFile(context.Background(), 1)
	if result.Resolved() {
		t.Fatalf("expected unresolved, got %+v", result.Identity)
	}
	if !errors.Is(result.Err, services.ErrUnresolved) {
		t.Fatalf("err = %v", result.Err)
	}
	if !services.IsGroupScoped(result.Err) {
		t.Fatalf("unresolved should be group scoped: %v", result.Err)
	}
}

func TestExtraClassification(t *testing.T) {
	cases := []struct {
		typeTag string
		want    identity.Category
	}{
		{"Trailer", identity.CategoryTrailer},
		{"Special", identity.CategoryFeaturette},
		{"Credits", identity.CategoryFeaturette},
		{"Parody", identity.CategoryFeaturette},
		{"Web", identity.CategoryOther},
	}
	for _, tc := range cases {
		episode := &shoko.EpisodeDetails{Name: "Bonus"}
		episode.AniDB.Type = tc.typeTag
		catalog := &fakeCatalog{
			files:    map[int64]*shoko.FileDetails{1: fileWith("Show/bonus.mkv", 100, 50)},
			episodes: map[int64]*shoko.EpisodeDetails{50: episode},
		}
		metadata := &fakeMetadata{series: map[int64]*tmdb.TVDetails{
			100: {ID: 100, Name: "Show", FirstAirDate: "2020-01-01"},
		}}

		result := resolver.New(catalog, metadata, 0.8, 1, nil).ResolveFile(context.Background(), 1)
		if !result.Resolved() {
			t.Fatalf("%s: ResolveFile failed: %v", tc.typeTag, result.Err)
		}
		if result.Identity.Kind != identity.KindExtra {
			t.Fatalf("%s: kind = %q", tc.typeTag, result.Identity.Kind)
		}
		if result.Identity.Extra.Category != tc.want {
			t.Fatalf("%s: category = %q, want %q", tc.typeTag, result.Identity.Extra.Category, tc.want)
		}
	}
}

func TestFileWithoutCrossReferences(t *testing.T) {
	catalog := &fakeCatalog{
		files: map[int64]*shoko.FileDetails{
			1: {ID: 1, Locations: []shoko.FileLocation{{RelativePath: "x.mkv"}}},
		},
	}
	result := resolver.New(catalog, &fakeMetadata{}, 0.8, 1, nil).ResolveFile(context.Background(), 1)
	if result.Resolved() {
		t.Fatal("expected unresolved")
	}
	if !errors.Is(result.Err, services.ErrUnresolved) {
		t.Fatalf("err = %v", result.Err)
	}
}

type gatedCatalog struct {
	fakeCatalog
	mu      sync.Mutex
	current int
	peak    int
}

func (g *gatedCatalog) GetFileDetails(ctx context.Context, fileID int64) (*shoko.FileDetails, error) {
	g.mu.Lock()
	g.current++
	if g.current > g.peak {
		g.peak = g.current
	}
	g.mu.Unlock()
	time.Sleep(time.Millisecond)
	g.mu.Lock()
	g.current--
	g.mu.Unlock()
	return g.fakeCatalog.GetFileDetails(ctx, fileID)
}

func TestResolveAllBoundsConcurrency(t *testing.T) {
	episode := &shoko.EpisodeDetails{Name: "Movie"}
	episode.IDs.TMDB.Movie = []int64{603}
	episode.TMDB.Movies = []shoko.TMDBMovieData{{ID: 603, Title: "M", ReleasedAt: "1999-01-01"}}

	files := make(map[int64]*shoko.FileDetails)
	ids := make([]int64, 0, 32)
	for i := int64(1); i <= 32; i++ {
		files[i] = fileWith(fmt.Sprintf("f%d.mkv", i), 0, 50)
		ids = append(ids, i)
	}
	catalog := &gatedCatalog{fakeCatalog: fakeCatalog{
		files:    files,
		episodes: map[int64]*shoko.EpisodeDetails{50: episode},
	}}

	results := resolver.New(catalog, &fakeMetadata{}, 0.8, 2, nil).ResolveAll(context.Background(), ids)
	if len(results) != len(ids) {
		t.Fatalf("results = %d", len(results))
	}
	if catalog.peak > 2 {
		t.Fatalf("peak concurrency = %d, want at most 2", catalog.peak)
	}
}

func TestResolveAllPreservesOrder(t *testing.T) {
	episode := &shoko.EpisodeDetails{Name: "Movie"}
	episode.IDs.TMDB.Movie = []int64{603}
	episode.TMDB.Movies = []shoko.TMDBMovieData{{ID: 603, Title: "M", ReleasedAt: "1999-01-01"}}

	catalog := &fakeCatalog{
		files: map[int64]*shoko.FileDetails{
			1: fileWith("a.mkv", 0, 50),
			2: fileWith("b.mkv", 0, 50),
		},
		episodes: map[int64]*shoko.EpisodeDetails{50: episode},
	}

	results := resolver.New(catalog, &fakeMetadata{}, 0.8, 4, nil).
		ResolveAll(context.Background(), []int64{1, 99, 2})
	if len(results) != 3 {
		t.Fatalf("results = %d", len(results))
	}
	if results[0].FileID != 1 || results[1].FileID != 99 || results[2].FileID != 2 {
		t.Fatalf("order = %d %d %d", results[0].FileID, results[1].FileID, results[2].FileID)
	}
	if !results[0].Resolved() || results[1].Resolved() || !results[2].Resolved() {
		t.Fatalf("resolution flags wrong: %v %v %v", results[0].Err, results[1].Err, results[2].Err)
	}
}
