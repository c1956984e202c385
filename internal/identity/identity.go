package identity

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind discriminates the closed set of identity variants.
type Kind string

const (
	KindMovie   Kind = "movie"
	KindEpisode Kind = "episode"
	KindExtra   Kind = "extra"
)

// Category classifies extras by the source taxonomy's type tag.
type Category string

const (
	CategoryTrailer    Category = "trailer"
	CategoryFeaturette Category = "featurette"
	CategoryOther      Category = "other"
)

// Identity is the resolved canonical identity of a file group. Exactly one of
// Movie, Episode, or Extra is set, selected by Kind.
type Identity struct {
	Kind    Kind     `json:"kind"`
	Movie   *Movie   `json:"movie,omitempty"`
	Episode *Episode `json:"episode,omitempty"`
	Extra   *Extra   `json:"extra,omitempty"`
}

// Movie identifies a theatrical release.
type Movie struct {
	TMDBID int64  `json:"tmdb_id"`
	Title  string `json:"title"`
	Year   string `json:"year"`
}

// Episode identifies one episode of a series.
type Episode struct {
	TMDBSeriesID int64  `json:"tmdb_series_id"`
	SeriesTitle  string `json:"series_title"`
	SeriesYear   string `json:"series_year"`
	Season       int    `json:"season"`
	Episode      int    `json:"episode"`
	EpisodeTitle string `json:"episode_title"`
}

// Extra identifies series-scoped supplemental content (trailers, specials).
type Extra struct {
	Category    Category `json:"category"`
	SeriesTitle string   `json:"series_title"`
	SeriesYear  string   `json:"series_year"`
	Title       string   `json:"title"`
}

// NewMovie builds a movie identity.
func NewMovie(m Movie) Identity {
	return Identity{Kind: KindMovie, Movie: &m}
}

// NewEpisode builds an episode identity.
func NewEpisode(e Episode) Identity {
	return Identity{Kind: KindEpisode, Episode: &e}
}

// NewExtra builds an extra identity.
func NewExtra(e Extra) Identity {
	return Identity{Kind: KindExtra, Extra: &e}
}

// Validate checks that exactly the variant named by Kind is populated.
func (id Identity) Validate() error {
	switch id.Kind {
	case KindMovie:
		if id.Movie == nil || id.Episode != nil || id.Extra != nil {
			return errors.New("movie identity must carry exactly the movie variant")
		}
	case KindEpisode:
		if id.Episode == nil || id.Movie != nil || id.Extra != nil {
			return errors.New("episode identity must carry exactly the episode variant")
		}
	case KindExtra:
		if id.Extra == nil || id.Movie != nil || id.Episode != nil {
			return errors.New("extra identity must carry exactly the extra variant")
		}
	default:
		return fmt.Errorf("unknown identity kind %q", id.Kind)
	}
	return nil
}

// Label returns a short human-readable description for logs and reports.
func (id Identity) Label() string {
	switch id.Kind {
	case KindMovie:
		return fmt.Sprintf("%s (%s)", id.Movie.Title, id.Movie.Year)
	case KindEpisode:
		e := id.Episode
		return fmt.Sprintf("%s s%02de%02d %s", e.SeriesTitle, e.Season, e.Episode, e.EpisodeTitle)
	case KindExtra:
		return fmt.Sprintf("%s extra (%s): %s", id.Extra.SeriesTitle, id.Extra.Category, id.Extra.Title)
	}
	return "unknown"
}

// Encode serializes the identity for LinkRecord persistence.
func (id Identity) Encode() (string, error) {
	if err := id.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(id)
	if err != nil {
		return "", fmt.Errorf("encode identity: %w", err)
	}
	return string(data), nil
}

// Decode restores a persisted identity and rejects ambiguous shapes.
func Decode(data string) (Identity, error) {
	var decoded Identity
	if err := json.Unmarshal([]byte(data), &decoded); err != nil {
		return Identity{}, fmt.Errorf("decode identity: %w", err)
	}
	if err := decoded.Validate(); err != nil {
		return Identity{}, err
	}
	return decoded, nil
}

// CategoryFolder maps an extra category to its destination folder name.
func CategoryFolder(c Category) string {
	switch c {
	case CategoryTrailer:
		return "Trailers"
	case CategoryFeaturette:
		return "Featurettes"
	default:
		return "Other"
	}
}

// ClassifyTypeTag maps a source-taxonomy episode type tag to an extra category.
// Normal episodes are not extras and yield false.
func ClassifyTypeTag(tag string) (Category, bool) {
	switch tag {
	case "Trailer":
		return CategoryTrailer, true
	case "Special", "Credits", "Parody":
		return CategoryFeaturette, true
	case "Normal", "":
		return "", false
	default:
		return CategoryOther, true
	}
}
