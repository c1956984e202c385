package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks invalid or missing configuration. Fatal before any
	// group is processed.
	ErrConfiguration = errors.New("configuration error")
	// ErrConnectivity marks transient upstream failures (Shoko/TMDB). Retried with
	// backoff; fatal for the run once retries are exhausted.
	ErrConnectivity = errors.New("connectivity error")
	// ErrUnresolved marks a file group that could not be matched to an identity.
	// Recoverable: the group is reported and retried on the next run.
	ErrUnresolved = errors.New("unresolved identity")
	// ErrGroupFailed marks a file group whose materialization was rolled back.
	// Recoverable: other groups continue.
	ErrGroupFailed = errors.New("group operation failed")
	// ErrStateStore marks state store failures. Fatal: without the store the run
	// cannot guarantee idempotency.
	ErrStateStore = errors.New("state store error")
	// ErrConflict marks a group whose destination is already claimed by an earlier
	// committed group. Reported, never applied.
	ErrConflict = errors.New("destination conflict")
)

// Wrap builds an error message that includes run context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrGroupFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether an error must abort the whole run rather than a
// single file group.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrStateStore) ||
		errors.Is(err, ErrConnectivity)
}

// IsGroupScoped reports whether an error is confined to one file group.
func IsGroupScoped(err error) bool {
	return errors.Is(err, ErrUnresolved) ||
		errors.Is(err, ErrGroupFailed) ||
		errors.Is(err, ErrConflict)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
