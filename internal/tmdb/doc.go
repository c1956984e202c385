// Package tmdb implements the TMDB API client used to enrich identities with
// titles, years, and season layouts. Lookups are paced, retried on transient
// failures, and served from the metadata cache when possible.
package tmdb
