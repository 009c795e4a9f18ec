// Package postgres is the production core.Store on pgx.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/sheetsync/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists services and sync logs in PostgreSQL.
type Store struct {
	db  DB
	now func() time.Time
}

// New returns a store on db.
func New(db DB) *Store {
	return &Store{db: db, now: time.Now}
}

var _ core.Store = (*Store)(nil)

// ApplySchema creates the tables and indexes when missing.
func (s *Store) ApplySchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const serviceColumns = `id::text, external_id, sheet_key, origin, service_date, service_time,
  vessel_name, address, location, description, contact_name, contact_phone, status,
  deleted_at, created_at, updated_at`

func scanService(row pgx.Row) (core.StoredService, error) {
	var (
		svc         core.StoredService
		origin      string
		status      string
		date        pgtype.Date
		serviceTime pgtype.Text
		contactName pgtype.Text
		phone       pgtype.Text
		deletedAt   pgtype.Timestamptz
	)
	err := row.Scan(
		&svc.ID, &svc.Record.ExternalID, &svc.SheetKey, &origin, &date, &serviceTime,
		&svc.Record.VesselName, &svc.Record.Address, &svc.Record.Location, &svc.Record.Description,
		&contactName, &phone, &status,
		&deletedAt, &svc.CreatedAt, &svc.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.StoredService{}, core.ErrNotFound
	}
	if err != nil {
		return core.StoredService{}, err
	}

	svc.Origin = core.Origin(origin)
	svc.Record.Status = core.ServiceStatus(status)
	svc.Record.Date = fromPgDate(date)
	svc.Record.Time = fromPgText(serviceTime)
	svc.Record.ContactName = fromPgText(contactName)
	svc.Record.ContactPhone = fromPgText(phone)
	svc.DeletedAt = fromPgTimestamptz(deletedAt)
	return svc, nil
}

// InTx runs fn in one database transaction. The transaction is rolled back
// when fn fails.
func (s *Store) InTx(ctx context.Context, fn func(core.StoreTx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := fn(&storeTx{tx: tx, now: s.now}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) SoftDeleteSheet(ctx context.Context, sheetKey string) (int, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE services
   SET deleted_at = $2, updated_at = $2
 WHERE sheet_key = $1
   AND origin = 'SHEET'
   AND deleted_at IS NULL`, sheetKey, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("soft delete %s: %w", sheetKey, err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) ServiceByExternalID(ctx context.Context, externalID string) (core.StoredService, error) {
	return scanService(s.db.QueryRow(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE external_id = $1`, externalID))
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

	_, err = s.db.Exec(ctx, `
INSERT INTO sync_logs (
  id, run_id, sheet_name, sync_type, status,
  records_created, records_updated, records_deleted, records_skipped,
  duration_ms, errors, trigger, created_at
) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12, $13)`,
		log.ID, log.RunID, log.SheetName, log.SyncType, string(log.Status),
		log.Created, log.Updated, log.Deleted, log.Skipped,
		log.DurationMs, payload, log.Trigger, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run log: %w", err)
	}
	return nil
}

func (s *Store) RecentRunLogs(ctx context.Context, sheetName string, limit int) ([]core.RunLog, error) {
	rows, err := s.db.Query(ctx, `
SELECT id::text, run_id::text, sheet_name, sync_type, status,
       records_created, records_updated, records_deleted, records_skipped,
       duration_ms, errors, trigger, created_at
  FROM sync_logs
 WHERE ($1 = '' OR sheet_name = $1)
 ORDER BY created_at DESC
 LIMIT NULLIF($2::int, 0)`, sheetName, limit)
	if err != nil {
		return nil, fmt.Errorf("query run logs: %w", err)
	}
	defer rows.Close()

	logs := []core.RunLog{}
	for rows.Next() {
		var (
			l       core.RunLog
			status  string
			payload []byte
		)
		if err := rows.Scan(
			&l.ID, &l.RunID, &l.SheetName, &l.SyncType, &status,
			&l.Created, &l.Updated, &l.Deleted, &l.Skipped,
			&l.DurationMs, &payload, &l.Trigger, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run log: %w", err)
		}
		l.Status = core.RunStatus(status)
		l.Errors = []core.RowError{}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &l.Errors); err != nil {
				return nil, fmt.Errorf("decode run log errors: %w", err)
			}
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run logs: %w", err)
	}
	return logs, nil
}

type storeTx struct {
	tx  pgx.Tx
	now func() time.Time
}

func (t *storeTx) ServiceByExternalID(ctx context.Context, externalID string) (core.StoredService, error) {
	return scanService(t.tx.QueryRow(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE external_id = $1 FOR UPDATE`, externalID))
}

func (t *storeTx) InsertService(ctx context.Context, sheetKey string, rec core.ServiceRecord) error {
	now := t.now().UTC()
	_, err := t.tx.Exec(ctx, `
INSERT INTO services (
  id, external_id, sheet_key, origin, service_date, service_time,
  vessel_name, address, location, description, contact_name, contact_phone, status,
  created_at, updated_at
) VALUES ($1::uuid, $2, $3, 'SHEET', $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`,
		uuid.NewString(), rec.ExternalID, sheetKey, toPgDate(rec.Date), toPgText(rec.Time),
		rec.VesselName, rec.Address, rec.Location, rec.Description,
		toPgText(rec.ContactName), toPgText(rec.ContactPhone), string(rec.Status), now,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert service %s: %w", rec.ExternalID, core.ErrDuplicateRecord)
	}
	if err != nil {
		return fmt.Errorf("insert service %s: %w", rec.ExternalID, err)
	}
	return nil
}

func (t *storeTx) UpdateService(ctx context.Context, id, sheetKey string, rec core.ServiceRecord) error {
	tag, err := t.tx.Exec(ctx, `
UPDATE services
   SET sheet_key = $2, service_date = $3, service_time = $4,
       vessel_name = $5, address = $6, location = $7, description = $8,
       contact_name = $9, contact_phone = $10, status = $11,
       deleted_at = NULL, updated_at = $12
 WHERE id = $1::uuid`,
		id, sheetKey, toPgDate(rec.Date), toPgText(rec.Time),
		rec.VesselName, rec.Address, rec.Location, rec.Description,
		toPgText(rec.ContactName), toPgText(rec.ContactPhone), string(rec.Status), t.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update service %s: %w", rec.ExternalID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update service %s: %w", rec.ExternalID, core.ErrNotFound)
	}
	return nil
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
