package tmdb_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"shokobridge/internal/metacache"
	"shokobridge/internal/testsupport"
	"shokobridge/internal/tmdb"
)

func newServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func newCache(t *testing.T) *metacache.Cache {
	t.Helper()
	return metacache.New(testsupport.OpenStore(t), time.Hour, nil)
}

func TestGetMovieDetails(t *testing.T) {
	server := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/603" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "key" {
			t.Errorf("api_key = %q", r.URL.Query().Get("api_key"))
		}
		if r.URL.Query().Get("language") != "en-US" {
			t.Errorf("language = %q", r.URL.Query().Get("language"))
		}
		w.Write([]byte(`{"id":603,"title":"The Matrix","release_date":"1999-03-31"}`))
	}))

	client, err := tmdb.New("key", tmdb.WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	details, err := client.GetMovieDetails(context.Background(), 603)
	if err != nil {
		t.Fatalf("GetMovieDetails failed: %v", err)
	}
	if details.Title != "The Matrix" || details.ReleaseDate != "1999-03-31" {
		t.Fatalf("details = %+v", details)
	}
}

func TestCacheShortCircuitsSecondLookup(t *testing.T) {
	var calls atomic.Int64
	server := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"id":100,"name":"Show","first_air_date":"2020-01-01"}`))
	}))

	client, err := tmdb.New("key", tmdb.WithBaseURL(server.URL), tmdb.WithCache(newCache(t)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		details, err := client.GetTVDetails(context.Background(), 100)
		if err != nil {
			t.Fatalf("GetTVDetails failed: %v", err)
		}
		if details.Name != "Show" {
			t.Fatalf("details = %+v", details)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("upstream calls = %d, want 1", calls.Load())
	}
}

func TestGetSeasonDetails(t *testing.T) {
	server := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tv/100/season/1" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"id":55,"episodes":[
			{"id":900,"name":"Pilot","season_number":1,"episode_number":1},
			{"id":901,"name":"Second","season_number":1,"episode_number":2}
		]}`))
	}))

	client, err := tmdb.New("key", tmdb.WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	season, err := client.GetSeasonDetails(context.Background(), 100, 1)
	if err != nil {
		t.Fatalf("GetSeasonDetails failed: %v", err)
	}
	if len(season.Episodes) != 2 {
		t.Fatalf("episodes = %+v", season.Episodes)
	}
	if season.Episodes[0].Name != "Pilot" || season.Episodes[1].EpisodeNumber != 2 {
		t.Fatalf("episodes = %+v", season.Episodes)
	}
}

func TestRetriesRateLimit(t *testing.T) {
	var calls atomic.Int64
	server := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"id":603,"title":"The Matrix","release_date":"1999-03-31"}`))
	}))

	client, err := tmdb.New("key",
		tmdb.WithBaseURL(server.URL),
		tmdb.WithRetries(2),
		tmdb.WithRetryDelay(time.Millisecond))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := client.GetMovieDetails(context.Background(), 603); err != nil {
		t.Fatalf("GetMovieDetails failed after retry: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int64
	server := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))

	client, err := tmdb.New("key", tmdb.WithBaseURL(server.URL), tmdb.WithRetries(3))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := client.GetMovieDetails(context.Background(), 1); err == nil {
		t.Fatal("expected error on 404")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}
