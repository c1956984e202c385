package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CacheGet returns the payload and fetch time for a cache key. The third
// return value reports whether the key was present.
func (s *Store) CacheGet(ctx context.Context, key string) (string, time.Time, bool, error) {
	ctx = ensureContext(ctx)
	var (
		payload   string
		fetchedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, fetched_at FROM metadata_cache WHERE cache_key = ?`, key,
	).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, fmt.Errorf("cache get: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return "", time.Time{}, false, fmt.Errorf("parse fetched_at %q: %w", fetchedAt, err)
	}
	return payload, parsed, true, nil
}

// CachePut upserts a cache entry. Entries are idempotent to overwrite, so
// concurrent writers for the same key are harmless.
func (s *Store) CachePut(ctx context.Context, key, payload string) error {
	if key == "" {
		return errors.New("cache key must be set")
	}
	return s.execWithRetry(ctx,
		`INSERT INTO metadata_cache (cache_key, payload, fetched_at)
         VALUES (?, ?, ?)
         ON CONFLICT(cache_key) DO UPDATE SET
             payload = excluded.payload,
             fetched_at = excluded.fetched_at`,
		key, payload, time.Now().UTC().Format(time.RFC3339Nano))
}

// CacheDelete removes a cache entry.
func (s *Store) CacheDelete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("cache key must be set")
	}
	return s.execWithRetry(ctx, `DELETE FROM metadata_cache WHERE cache_key = ?`, key)
}
