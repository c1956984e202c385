package logging

import (
	"context"
	"log/slog"

	"shokobridge/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized structured logging key for run correlation identifiers.
	FieldRunID = "run_id"
	// FieldGroup is the standardized structured logging key for file-group labels.
	FieldGroup = "group"
	// FieldCatalogID is the standardized structured logging key for catalog file identifiers.
	FieldCatalogID = "catalog_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if label, ok := services.GroupFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldGroup, label))
	}
	if id, ok := services.CatalogIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldCatalogID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
