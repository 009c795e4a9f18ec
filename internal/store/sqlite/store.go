// Package sqlite is a single-file core.Store for local runs and the CLI.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/JonMunkholm/sheetsync/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// Timestamps are stored as fixed-width UTC text so they sort correctly.
const tsLayout = "2006-01-02T15:04:05.000000Z"

// Store persists services and sync logs in an SQLite file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ core.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
// Writers are serialized on a single connection; transactions start with
// BEGIN IMMEDIATE so the per-row read-then-write never races.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const serviceColumns = `id, external_id, sheet_key, origin, service_date, service_time,
  vessel_name, address, location, description, contact_name, contact_phone, status,
  deleted_at, created_at, updated_at`

func serviceByExternalID(ctx context.Context, q queryer, externalID string) (core.StoredService, error) {
	var (
		svc                       core.StoredService
		origin, status            string
		date, serviceTime         sql.NullString
		contactName, contactPhone sql.NullString
		deletedAt                 sql.NullString
		createdAt, updatedAt      string
	)
	err := q.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE external_id = ?`, externalID).Scan(
		&svc.ID, &svc.Record.ExternalID, &svc.SheetKey, &origin, &date, &serviceTime,
		&svc.Record.VesselName, &svc.Record.Address, &svc.Record.Location, &svc.Record.Description,
		&contactName, &contactPhone, &status,
		&deletedAt, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return core.StoredService{}, core.ErrNotFound
	}
	if err != nil {
		return core.StoredService{}, fmt.Errorf("load service %s: %w", externalID, err)
	}

	svc.Origin = core.Origin(origin)
	svc.Record.Status = core.ServiceStatus(status)
	svc.Record.Time = nullable(serviceTime)
	svc.Record.ContactName = nullable(contactName)
	svc.Record.ContactPhone = nullable(contactPhone)
	if date.Valid {
		var d core.CalendarDate
		if err := d.UnmarshalText([]byte(date.String)); err != nil {
			return core.StoredService{}, fmt.Errorf("service %s date: %w", externalID, err)
		}
		svc.Record.Date = &d
	}
	if deletedAt.Valid {
		t := parseTS(deletedAt.String)
		svc.DeletedAt = &t
	}
	svc.CreatedAt = parseTS(createdAt)
	svc.UpdatedAt = parseTS(updatedAt)
	return svc, nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func dateValue(d *core.CalendarDate) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func formatTS(t time.Time) string { return t.UTC().Format(tsLayout) }

func parseTS(s string) time.Time {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

// InTx runs fn in one transaction, rolled back when fn fails.
func (s *Store) InTx(ctx context.Context, fn func(core.StoreTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&storeTx{tx: tx, now: s.now}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) SoftDeleteSheet(ctx context.Context, sheetKey string) (int, error) {
	now := formatTS(s.now())
	res, err := s.db.ExecContext(ctx, `
UPDATE services
   SET deleted_at = ?, updated_at = ?
 WHERE sheet_key = ? AND origin = 'SHEET' AND deleted_at IS NULL`, now, now, sheetKey)
	if err != nil {
		return 0, fmt.Errorf("soft delete %s: %w", sheetKey, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("soft delete %s: %w", sheetKey, err)
	}
	return int(n), nil
}

func (s *Store) ServiceByExternalID(ctx context.Context, externalID string) (core.StoredService, error) {
	return serviceByExternalID(ctx, s.db, externalID)
}

func (s *Store) InsertRunLog(ctx context.Context, log core.RunLog) error {
	errs := log.Errors
	if errs == nil {
		errs = []core.RowError{}
	}
	payload, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("encode run errors: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO sync_logs (
  id, run_id, sheet_name, sync_type, status,
  records_created, records_updated, records_deleted, records_skipped,
  duration_ms, errors, trigger, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.RunID, log.SheetName, log.SyncType, string(log.Status),
		log.Created, log.Updated, log.Deleted, log.Skipped,
		log.DurationMs, string(payload), log.Trigger, formatTS(log.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run log: %w", err)
	}
	return nil
}

func (s *Store) RecentRunLogs(ctx context.Context, sheetName string, limit int) ([]core.RunLog, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, run_id, sheet_name, sync_type, status,
       records_created, records_updated, records_deleted, records_skipped,
       duration_ms, errors, trigger, created_at
  FROM sync_logs
 WHERE (? = '' OR sheet_name = ?)
 ORDER BY created_at DESC, rowid DESC
 LIMIT ?`, sheetName, sheetName, limit)
	if err != nil {
		return nil, fmt.Errorf("query run logs: %w", err)
	}
	defer rows.Close()

	logs := []core.RunLog{}
	for rows.Next() {
		var (
			l               core.RunLog
			status, payload string
			createdAt       string
		)
		if err := rows.Scan(
			&l.ID, &l.RunID, &l.SheetName, &l.SyncType, &status,
			&l.Created, &l.Updated, &l.Deleted, &l.Skipped,
			&l.DurationMs, &payload, &l.Trigger, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan run log: %w", err)
		}
		l.Status = core.RunStatus(status)
		l.CreatedAt = parseTS(createdAt)
		l.Errors = []core.RowError{}
		if err := json.Unmarshal([]byte(payload), &l.Errors); err != nil {
			return nil, fmt.Errorf("decode run log errors: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run logs: %w", err)
	}
	return logs, nil
}

// InsertManual stores a manually created record. Sync never overwrites it.
func (s *Store) InsertManual(ctx context.Context, rec core.ServiceRecord) error {
	return s.InTx(ctx, func(tx core.StoreTx) error {
		return tx.(*storeTx).insert(ctx, "", core.OriginManual, rec)
	})
}

type storeTx struct {
	tx  *sql.Tx
	now func() time.Time
}

func (t *storeTx) ServiceByExternalID(ctx context.Context, externalID string) (core.StoredService, error) {
	return serviceByExternalID(ctx, t.tx, externalID)
}

func (t *storeTx) InsertService(ctx context.Context, sheetKey string, rec core.ServiceRecord) error {
	return t.insert(ctx, sheetKey, core.OriginSheet, rec)
}

func (t *storeTx) insert(ctx context.Context, sheetKey string, origin core.Origin, rec core.ServiceRecord) error {
	now := formatTS(t.now())
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO services (
  id, external_id, sheet_key, origin, service_date, service_time,
  vessel_name, address, location, description, contact_name, contact_phone, status,
  created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), rec.ExternalID, sheetKey, string(origin), dateValue(rec.Date), nullString(rec.Time),
		rec.VesselName, rec.Address, rec.Location, rec.Description,
		nullString(rec.ContactName), nullString(rec.ContactPhone), string(rec.Status), now, now,
	)
	if errors.Is(err, sqlite3.CONSTRAINT_UNIQUE) {
		return fmt.Errorf("insert service %s: %w", rec.ExternalID, core.ErrDuplicateRecord)
	}
	if err != nil {
		return fmt.Errorf("insert service %s: %w", rec.ExternalID, err)
	}
	return nil
}

func (t *storeTx) UpdateService(ctx context.Context, id, sheetKey string, rec core.ServiceRecord) error {
	res, err := t.tx.ExecContext(ctx, `
UPDATE services
   SET sheet_key = ?, service_date = ?, service_time = ?,
       vessel_name = ?, address = ?, location = ?, description = ?,
       contact_name = ?, contact_phone = ?, status = ?,
       deleted_at = NULL, updated_at = ?
 WHERE id = ?`,
		sheetKey, dateValue(rec.Date), nullString(rec.Time),
		rec.VesselName, rec.Address, rec.Location, rec.Description,
		nullString(rec.ContactName), nullString(rec.ContactPhone), string(rec.Status),
		formatTS(t.now()), id,
	)
	if err != nil {
		return fmt.Errorf("update service %s: %w", rec.ExternalID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update service %s: %w", rec.ExternalID, core.ErrNotFound)
	}
	return nil
}
