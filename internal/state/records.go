package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecordStatus is the lifecycle state of a link record.
type RecordStatus string

const (
	StatusCommitted RecordStatus = "committed"
	StatusFailed    RecordStatus = "failed"
)

// LinkRecord is the persisted mapping of one committed source-to-destination
// materialization. The fingerprint keys idempotency; the destination path is
// unique across committed records.
type LinkRecord struct {
	Fingerprint     string
	SourcePath      string
	CatalogID       int64
	IdentityJSON    string
	DestinationPath string
	Operation       string
	LastRunAt       time.Time
	Status          RecordStatus
}

const recordColumns = `fingerprint, source_path, catalog_id, identity_json, destination_path, operation, last_run_at, status`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*LinkRecord, error) {
	var (
		rec       LinkRecord
		lastRunAt string
		status    string
	)
	if err := row.Scan(
		&rec.Fingerprint,
		&rec.SourcePath,
		&rec.CatalogID,
		&rec.IdentityJSON,
		&rec.DestinationPath,
		&rec.Operation,
		&lastRunAt,
		&status,
	); err != nil {
		return nil, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, lastRunAt)
	if err != nil {
		return nil, fmt.Errorf("parse last_run_at %q: %w", lastRunAt, err)
	}
	rec.LastRunAt = parsed
	rec.Status = RecordStatus(status)
	return &rec, nil
}

// Lookup returns the record for a fingerprint, or nil when none exists.
func (s *Store) Lookup(ctx context.Context, fingerprint string) (*LinkRecord, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM link_records WHERE fingerprint = ?`, fingerprint)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup record: %w", err)
	}
	return rec, nil
}

// LookupByDestination returns the committed record owning a destination path,
// or nil when the destination is unclaimed.
func (s *Store) LookupByDestination(ctx context.Context, destination string) (*LinkRecord, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM link_records WHERE destination_path = ? AND status = ?`,
		destination, StatusCommitted)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup by destination: %w", err)
	}
	return rec, nil
}

// LookupByCatalogID returns the committed record for a catalog file id, or
// nil when none exists. A hit with a different fingerprint means the catalog
// file's bytes changed since the record was committed.
func (s *Store) LookupByCatalogID(ctx context.Context, catalogID int64) (*LinkRecord, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM link_records WHERE catalog_id = ? AND status = ? LIMIT 1`,
		catalogID, StatusCommitted)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup by catalog id: %w", err)
	}
	return rec, nil
}

// Commit upserts a record inside a transaction. The WAL journal plus FULL
// synchronous mode make a successful return durable across crashes.
func (s *Store) Commit(ctx context.Context, rec *LinkRecord) error {
	if rec == nil {
		return errors.New("record is nil")
	}
	if rec.Fingerprint == "" {
		return errors.New("record fingerprint must be set")
	}
	if rec.LastRunAt.IsZero() {
		rec.LastRunAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = StatusCommitted
	}

	return s.execWithRetry(ctx,
		`INSERT INTO link_records (`+recordColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(fingerprint) DO UPDATE SET
             source_path = excluded.source_path,
             catalog_id = excluded.catalog_id,
             identity_json = excluded.identity_json,
             destination_path = excluded.destination_path,
             operation = excluded.operation,
             last_run_at = excluded.last_run_at,
             status = excluded.status`,
		rec.Fingerprint,
		rec.SourcePath,
		rec.CatalogID,
		rec.IdentityJSON,
		rec.DestinationPath,
		rec.Operation,
		rec.LastRunAt.UTC().Format(time.RFC3339Nano),
		string(rec.Status),
	)
}

// Remove deletes the record for a fingerprint. Removing a missing fingerprint
// is a no-op.
func (s *Store) Remove(ctx context.Context, fingerprint string) error {
	if fingerprint == "" {
		return errors.New("fingerprint must be set")
	}
	return s.execWithRetry(ctx, `DELETE FROM link_records WHERE fingerprint = ?`, fingerprint)
}

// ListAll returns every record ordered by destination path.
func (s *Store) ListAll(ctx context.Context) ([]LinkRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM link_records ORDER BY destination_path`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []LinkRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}
