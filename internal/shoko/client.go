package shoko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// FileLocation describes where the catalog stores one copy of a file.
type FileLocation struct {
	RelativePath string `json:"RelativePath"`
}

// SeriesIDs carries the cross-reference identifiers of a linked series.
type SeriesIDs struct {
	TMDB struct {
		Show []int64 `json:"Show"`
	} `json:"TMDB"`
}

// EpisodeRef is a catalog episode cross-reference.
type EpisodeRef struct {
	ID int64 `json:"ID"`
}

// SeriesCrossRef links a file to a series and its episodes.
type SeriesCrossRef struct {
	SeriesID   SeriesIDs    `json:"SeriesID"`
	EpisodeIDs []EpisodeRef `json:"EpisodeIDs"`
}

// FileDetails is the catalog's view of one recognized file.
type FileDetails struct {
	ID        int64            `json:"ID"`
	Size      int64            `json:"Size"`
	Locations []FileLocation   `json:"Locations"`
	SeriesIDs []SeriesCrossRef `json:"SeriesIDs"`
}

// TMDBMovieData is full movie metadata embedded in a catalog episode response.
type TMDBMovieData struct {
	ID         int64  `json:"ID"`
	Title      string `json:"Title"`
	ReleasedAt string `json:"ReleasedAt"`
}

// TMDBEpisodeData is full episode metadata embedded in a catalog episode response.
type TMDBEpisodeData struct {
	ID            int64  `json:"ID"`
	Title         string `json:"Title"`
	SeasonNumber  int    `json:"SeasonNumber"`
	EpisodeNumber int    `json:"EpisodeNumber"`
}

// EpisodeDetails is the catalog's view of one episode, including external IDs
// and whatever upstream metadata the catalog already fetched.
type EpisodeDetails struct {
	Name string `json:"Name"`
	IDs  struct {
		TMDB struct {
			Movie   []int64 `json:"Movie"`
			Episode []int64 `json:"Episode"`
		} `json:"TMDB"`
	} `json:"IDs"`
	AniDB struct {
		Type string `json:"Type"`
	} `json:"AniDB"`
	TMDB struct {
		Movies   []TMDBMovieData   `json:"Movies"`
		Episodes []TMDBEpisodeData `json:"Episodes"`
	} `json:"TMDB"`
}

// Catalog defines the source-of-truth operations used by the bridge.
type Catalog interface {
	CheckConnection(ctx context.Context) error
	ListFileIDs(ctx context.Context) ([]int64, error)
	GetFileDetails(ctx context.Context, fileID int64) (*FileDetails, error)
	GetEpisodeDetails(ctx context.Context, episodeID int64) (*EpisodeDetails, error)
}

// Client provides access to the Shoko server API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retries    int
	retryDelay time.Duration
}

var _ Catalog = (*Client)(nil)

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

// New creates a Shoko client.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("shoko base url required")
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("shoko api key required")
	}
	client := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		retries:    3,
		retryDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// CheckConnection verifies the server is reachable before a run starts.
func (c *Client) CheckConnection(ctx context.Context) error {
	var payload json.RawMessage
	return c.getJSON(ctx, "/api/v3/Init/Version", nil, &payload)
}

// ListFileIDs fetches every recognized file identifier from the catalog.
func (c *Client) ListFileIDs(ctx context.Context) ([]int64, error) {
	params := url.Values{}
	params.Set("pageSize", "0")

	var payload struct {
		List []struct {
			ID int64 `json:"ID"`
		} `json:"List"`
	}
	if err := c.getJSON(ctx, "/api/v3/File", params, &payload); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(payload.List))
	for _, entry := range payload.List {
		ids = append(ids, entry.ID)
	}
	return ids, nil
}

// GetFileDetails fetches detailed information for a file, including series and
// episode cross-references.
func (c *Client) GetFileDetails(ctx context.Context, fileID int64) (*FileDetails, error) {
	if fileID <= 0 {
		return nil, errors.New("file id must be positive")
	}
	params := url.Values{}
	params.Set("include", "MediaInfo,XRefs")

	var payload FileDetails
	path := "/api/v3/File/" + strconv.FormatInt(fileID, 10)
	if err := c.getJSON(ctx, path, params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetEpisodeDetails fetches an episode with AniDB and TMDB data included.
func (c *Client) GetEpisodeDetails(ctx context.Context, episodeID int64) (*EpisodeDetails, error) {
	if episodeID <= 0 {
		return nil, errors.New("episode id must be positive")
	}
	params := url.Values{}
	params.Set("includeDataFrom", "AniDB,TMDB")

	var payload EpisodeDetails
	path := "/api/v3/Episode/" + strconv.FormatInt(episodeID, 10)
	if err := c.getJSON(ctx, path, params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse shoko url: %w", err)
	}
	if params != nil {
		endpoint.RawQuery = params.Encode()
	}

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
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return &transientError{fmt.Errorf("execute request (latency=%v): %w", latency, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("shoko returned %d (latency=%v)", resp.StatusCode, latency)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return &transientError{err}
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode shoko response: %w", err)
	}
	return nil
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var transient *transientError
	return errors.As(err, &transient)
}
