package metacache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"shokobridge/internal/logging"
)

// Backing is the durable key/value surface the cache persists through.
type Backing interface {
	CacheGet(ctx context.Context, key string) (string, time.Time, bool, error)
	CachePut(ctx context.Context, key, payload string) error
}

// Cache is a read-through metadata cache. It only reduces upstream calls;
// every failure degrades to a miss so resolution never depends on it.
type Cache struct {
	store  Backing
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a cache over the backing store. A zero ttl disables staleness
// expiry; a nil store yields a cache that always misses.
func New(store Backing, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{
		store:  store,
		ttl:    ttl,
		logger: logging.NewComponentLogger(logger, "metacache"),
	}
}

// Get unmarshals the cached payload for key into out. Returns false on miss,
// stale entry, or any backing/decoding failure.
func (c *Cache) Get(ctx context.Context, key string, out any) bool {
	if c == nil || c.store == nil {
		return false
	}
	payload, fetchedAt, ok, err := c.store.CacheGet(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed, treating as miss",
			logging.String("key", key), logging.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if c.ttl > 0 && time.Since(fetchedAt) > c.ttl {
		c.logger.Debug("cache entry stale",
			logging.String("key", key),
			logging.Duration("age", time.Since(fetchedAt)))
		return false
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		c.logger.Warn("cache payload corrupt, treating as miss",
			logging.String("key", key), logging.Error(err))
		return false
	}
	return true
}

// Put stores value under key. Failures are logged and swallowed; the caller
// already holds the fresh data.
func (c *Cache) Put(ctx context.Context, key string, value any) {
	if c == nil || c.store == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache payload encode failed",
			logging.String("key", key), logging.Error(err))
		return
	}
	if err := c.store.CachePut(ctx, key, string(payload)); err != nil {
		c.logger.Warn("cache write failed",
			logging.String("key", key), logging.Error(err))
	}
}

// SeriesKey identifies a TMDB series details lookup.
func SeriesKey(tmdbID int64) string {
	return fmt.Sprintf("series_%d", tmdbID)
}

// MovieKey identifies a TMDB movie details lookup.
func MovieKey(tmdbID int64) string {
	return fmt.Sprintf("movie_%d", tmdbID)
}

// SeasonKey identifies a TMDB season details lookup.
func SeasonKey(tmdbID int64, season int) string {
	return fmt.Sprintf("season_%d_%d", tmdbID, season)
}
