package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"shokobridge/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	inner := errors.New("boom")
	err := services.Wrap(services.ErrGroupFailed, "materialize", "hardlink", "link failed", inner)
	if !errors.Is(err, services.ErrGroupFailed) {
		t.Fatalf("expected ErrGroupFailed marker, got %v", err)
	}
	if !errors.Is(err, inner) {
		t.Fatalf("expected wrapped inner error, got %v", err)
	}
	for _, fragment := range []string{"materialize", "hardlink", "link failed", "boom"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %q", fragment, err.Error())
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrGroupFailed) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestFatalClassification(t *testing.T) {
	cases := []struct {
		marker error
		fatal  bool
		scoped bool
	}{
		{services.ErrConfiguration, true, false},
		{services.ErrConnectivity, true, false},
		{services.ErrStateStore, true, false},
		{services.ErrUnresolved, false, true},
		{services.ErrGroupFailed, false, true},
		{services.ErrConflict, false, true},
	}
	for _, tc := range cases {
		err := services.Wrap(tc.marker, "stage", "op", "msg", nil)
		if services.IsFatal(err) != tc.fatal {
			t.Fatalf("%v: IsFatal = %v, want %v", tc.marker, services.IsFatal(err), tc.fatal)
		}
		if services.IsGroupScoped(err) != tc.scoped {
			t.Fatalf("%v: IsGroupScoped = %v, want %v", tc.marker, services.IsGroupScoped(err), tc.scoped)
		}
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := services.WithRunID(context.Background(), "run-1")
	ctx = services.WithGroup(ctx, "Show - 01")
	ctx = services.WithCatalogID(ctx, 42)

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-1" {
		t.Fatalf("run id = %q, %v", id, ok)
	}
	if label, ok := services.GroupFromContext(ctx); !ok || label != "Show - 01" {
		t.Fatalf("group = %q, %v", label, ok)
	}
	if id, ok := services.CatalogIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("catalog id = %d, %v", id, ok)
	}
}
