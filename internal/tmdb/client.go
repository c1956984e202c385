package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"shokobridge/internal/metacache"
)

const defaultBaseURL = "https://api.themoviedb.org/3"

// minRequestGap paces upstream calls to stay under TMDB's rate limit.
const minRequestGap = 250 * time.Millisecond

// MovieDetails is the subset of TMDB movie metadata the bridge needs.
type MovieDetails struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
}

// TVDetails is the subset of TMDB series metadata the bridge needs.
type TVDetails struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	FirstAirDate    string `json:"first_air_date"`
	NumberOfSeasons int    `json:"number_of_seasons"`
}

// SeasonEpisode is one episode entry from a TMDB season listing.
type SeasonEpisode struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
}

// SeasonDetails lists the episodes of one TMDB season.
type SeasonDetails struct {
	ID       int64           `json:"id"`
	Episodes []SeasonEpisode `json:"episodes"`
}

// Metadata defines the upstream lookups used during identity resolution.
type Metadata interface {
	GetMovieDetails(ctx context.Context, movieID int64) (*MovieDetails, error)
	GetTVDetails(ctx context.Context, seriesID int64) (*TVDetails, error)
	GetSeasonDetails(ctx context.Context, seriesID int64, season int) (*SeasonDetails, error)
}

// Client provides access to the TMDB API with request pacing and a
// read-through cache in front of every lookup.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
	cache      *metacache.Cache
	retries    int
	retryDelay time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

var _ Metadata = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithLanguage sets the metadata language for every request.
func WithLanguage(language string) Option {
	return func(c *Client) {
		if language = strings.TrimSpace(language); language != "" {
			c.language = language
		}
	}
}

// WithCache attaches a read-through cache in front of API lookups.
func WithCache(cache *metacache.Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithRetries sets how many times transient failures are retried.
func WithRetries(attempts int) Option {
	return func(c *Client) {
		if attempts >= 0 {
			c.retries = attempts
		}
	}
}

// WithRetryDelay sets the initial backoff before the first retry.
func WithRetryDelay(delay time.Duration) Option {
	return func(c *Client) {
		if delay > 0 {
			c.retryDelay = delay
		}
	}
}

// New creates a TMDB client.
func New(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		language:   "en-US",
		httpClient: &http.Client{Timeout: 20 * time.Second},
		retries:    3,
		retryDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// GetMovieDetails fetches movie metadata, preferring the cache.
func (c *Client) GetMovieDetails(ctx context.Context, movieID int64) (*MovieDetails, error) {
	if movieID <= 0 {
		return nil, errors.New("movie id must be positive")
	}
	key := metacache.MovieKey(movieID)
	var details MovieDetails
	if c.cache.Get(ctx, key, &details) {
		return &details, nil
	}
	path := "/movie/" + strconv.FormatInt(movieID, 10)
	if err := c.getJSON(ctx, path, &details); err != nil {
		return nil, err
	}
	c.cache.Put(ctx, key, details)
	return &details, nil
}

// GetTVDetails fetches series metadata, preferring the cache.
func (c *Client) GetTVDetails(ctx context.Context, seriesID int64) (*TVDetails, error) {
	if seriesID <= 0 {
		return nil, errors.New("series id must be positive")
	}
	key := metacache.SeriesKey(seriesID)
	var details TVDetails
	if c.cache.Get(ctx, key, &details) {
		return &details, nil
	}
	path := "/tv/" + strconv.FormatInt(seriesID, 10)
	if err := c.getJSON(ctx, path, &details); err != nil {
		return nil, err
	}
	c.cache.Put(ctx, key, details)
	return &details, nil
}

// GetSeasonDetails fetches the episode list of one season, preferring the
// cache.
func (c *Client) GetSeasonDetails(ctx context.Context, seriesID int64, season int) (*SeasonDetails, error) {
	if seriesID <= 0 {
		return nil, errors.New("series id must be positive")
	}
	if season < 0 {
		return nil, errors.New("season must not be negative")
	}
	key := metacache.SeasonKey(seriesID, season)
	var details SeasonDetails
	if c.cache.Get(ctx, key, &details) {
		return &details, nil
	}
	path := fmt.Sprintf("/tv/%d/season/%d", seriesID, season)
	if err := c.getJSON(ctx, path, &details); err != nil {
		return nil, err
	}
	c.cache.Put(ctx, key, details)
	return &details, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse tmdb url: %w", err)
	}
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("language", c.language)
	endpoint.RawQuery = params.Encode()

	var lastErr error
	delay := c.retryDelay
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
		lastErr = c.doOnce(ctx, endpoint.String(), out)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, endpoint string, out any) error {
	if err := c.pace(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return &transientError{fmt.Errorf("execute request (latency=%v): %w", latency, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("tmdb returned %d (latency=%v)", resp.StatusCode, latency)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return &transientError{err}
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode tmdb response: %w", err)
	}
	return nil
}

// pace enforces the minimum gap between consecutive upstream requests.
func (c *Client) pace(ctx context.Context) error {
	c.mu.Lock()
	wait := minRequestGap - time.Since(c.lastCall)
	if wait > 0 {
		c.mu.Unlock()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		c.mu.Lock()
	}
	c.lastCall = time.Now()
	c.mu.Unlock()
	return nil
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var transient *transientError
	return errors.As(err, &transient)
}
