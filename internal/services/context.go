package services

import "context"

type contextKey string

const (
	runIDKey     contextKey = "run_id"
	groupKey     contextKey = "group"
	catalogIDKey contextKey = "catalog_id"
)

// WithRunID attaches the run correlation identifier to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext extracts the run identifier, if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(runIDKey).(string)
	return id, ok && id != ""
}

// WithGroup attaches a file-group label (primary file base name) to the context.
func WithGroup(ctx context.Context, label string) context.Context {
	if label == "" {
		return ctx
	}
	return context.WithValue(ctx, groupKey, label)
}

// GroupFromContext extracts the file-group label, if present.
func GroupFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	label, ok := ctx.Value(groupKey).(string)
	return label, ok && label != ""
}

// WithCatalogID attaches the catalog file identifier to the context.
func WithCatalogID(ctx context.Context, id int64) context.Context {
	if id <= 0 {
		return ctx
	}
	return context.WithValue(ctx, catalogIDKey, id)
}

// CatalogIDFromContext extracts the catalog file identifier, if present.
func CatalogIDFromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(catalogIDKey).(int64)
	return id, ok && id > 0
}
