package core

import (
	"context"
	"errors"
)

// Sentinel errors shared by the orchestrator, stores and transports.
var (
	ErrSyncUnavailable      = errors.New("sync unavailable: upstream credentials are not configured")
	ErrUnknownSheet         = errors.New("unknown sheet")
	ErrInvalidMode          = errors.New("invalid sync mode")
	ErrConfirmationRequired = errors.New("full reset requires explicit confirmation")
	ErrNotFound             = errors.New("not found")
	ErrNoPrimarySheet       = errors.New("no sheet registered")
	ErrDuplicateRecord      = errors.New("duplicate key: a record with this external id exists")
)

// Store persists service records and run logs.
//
// Each InTx call is one transaction; the orchestrator opens one per source
// row so a failing row never rolls back its neighbours.
type Store interface {
	InTx(ctx context.Context, fn func(tx StoreTx) error) error

	// SoftDeleteSheet marks every active sheet-sourced record owned by
	// sheetKey as deleted and returns how many rows it touched.
	SoftDeleteSheet(ctx context.Context, sheetKey string) (int, error)

	// ServiceByExternalID returns the record with the id, deleted or not,
	// or ErrNotFound.
	ServiceByExternalID(ctx context.Context, externalID string) (StoredService, error)

	InsertRunLog(ctx context.Context, log RunLog) error
	RecentRunLogs(ctx context.Context, sheetName string, limit int) ([]RunLog, error)
}

// StoreTx is the per-row transactional view of a Store.
type StoreTx interface {
	// ServiceByExternalID locks and returns the record with the id, deleted
	// or not, or ErrNotFound.
	ServiceByExternalID(ctx context.Context, externalID string) (StoredService, error)

	// InsertService creates a sheet-sourced record owned by sheetKey.
	InsertService(ctx context.Context, sheetKey string, rec ServiceRecord) error

	// UpdateService overwrites the record's fields, assigns it to sheetKey
	// and clears any soft delete.
	UpdateService(ctx context.Context, id, sheetKey string, rec ServiceRecord) error
}
