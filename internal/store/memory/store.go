// Package memory is an in-process core.Store for tests, demos and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/sheetsync/internal/core"
)

// Store keeps services and run logs in maps guarded by one mutex. InTx
// holds the mutex for the whole callback, so transactions are serial and a
// callback error discards its writes.
type Store struct {
	mu       sync.Mutex
	services map[string]core.StoredService // by external id
	logs     []core.RunLog
	writes   int
	now      func() time.Time

	// FailInsertRunLog makes InsertRunLog fail with this error when set.
	FailInsertRunLog error
	// FailSoftDelete makes SoftDeleteSheet fail with this error when set.
	FailSoftDelete error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		services: make(map[string]core.StoredService),
		now:      time.Now,
	}
}

var _ core.Store = (*Store)(nil)

// InTx runs fn against a staged copy of the touched records and commits
// them only when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(core.StoreTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, staged: make(map[string]core.StoredService)}
	if err := fn(tx); err != nil {
		return err
	}
	for id, svc := range tx.staged {
		s.services[id] = svc
		s.writes++
	}
	return nil
}

// SoftDeleteSheet marks every active sheet-sourced record of sheetKey deleted.
func (s *Store) SoftDeleteSheet(ctx context.Context, sheetKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailSoftDelete != nil {
		return 0, s.FailSoftDelete
	}

	now := s.now().UTC()
	n := 0
	for id, svc := range s.services {
		if svc.SheetKey != sheetKey || svc.Origin != core.OriginSheet || !svc.Active() {
			continue
		}
		svc.DeletedAt = &now
		svc.UpdatedAt = now
		s.services[id] = svc
		n++
	}
	s.writes += n
	return n, nil
}

// ServiceByExternalID returns the record with the id, deleted or not.
func (s *Store) ServiceByExternalID(ctx context.Context, externalID string) (core.StoredService, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	svc, ok := s.services[externalID]
	if !ok {
		return core.StoredService{}, core.ErrNotFound
	}
	return svc, nil
}

// InsertRunLog appends a run log.
func (s *Store) InsertRunLog(ctx context.Context, log core.RunLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailInsertRunLog != nil {
		return s.FailInsertRunLog
	}
	s.logs = append(s.logs, log)
	return nil
}

// RecentRunLogs returns run logs newest first, optionally for one sheet.
func (s *Store) RecentRunLogs(ctx context.Context, sheetName string, limit int) ([]core.RunLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.RunLog, 0, len(s.logs))
	for i := len(s.logs) - 1; i >= 0; i-- {
		l := s.logs[i]
		if sheetName != "" && l.SheetName != sheetName {
			continue
		}
		out = append(out, l)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Seed stores a record directly, bypassing the sync path. Use it to set up
// manual records or pre-existing state.
func (s *Store) Seed(svc core.StoredService) core.StoredService {
	s.mu.Lock()
	defer s.mu.Unlock()

	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	if svc.Origin == "" {
		svc.Origin = core.OriginSheet
	}
	now := s.now().UTC()
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = now
	}
	if svc.UpdatedAt.IsZero() {
		svc.UpdatedAt = now
	}
	s.services[svc.Record.ExternalID] = svc
	return svc
}

// Services returns every stored record ordered by external id.
func (s *Store) Services() []core.StoredService {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.StoredService, 0, len(s.services))
	for _, svc := range s.services {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Record.ExternalID < out[j].Record.ExternalID
	})
	return out
}

// ActiveCount returns the number of records not soft-deleted.
func (s *Store) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, svc := range s.services {
		if svc.Active() {
			n++
		}
	}
	return n
}

// Writes returns how many record writes have been committed.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

type memTx struct {
	store  *Store
	staged map[string]core.StoredService
}

func (tx *memTx) ServiceByExternalID(ctx context.Context, externalID string) (core.StoredService, error) {
	if svc, ok := tx.staged[externalID]; ok {
		return svc, nil
	}
	svc, ok := tx.store.services[externalID]
	if !ok {
		return core.StoredService{}, core.ErrNotFound
	}
	return svc, nil
}

func (tx *memTx) InsertService(ctx context.Context, sheetKey string, rec core.ServiceRecord) error {
	if _, err := tx.ServiceByExternalID(ctx, rec.ExternalID); err == nil {
		return fmt.Errorf("insert service %s: %w", rec.ExternalID, core.ErrDuplicateRecord)
	}
	now := tx.store.now().UTC()
	tx.staged[rec.ExternalID] = core.StoredService{
		ID:        uuid.NewString(),
		SheetKey:  sheetKey,
		Origin:    core.OriginSheet,
		Record:    rec,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (tx *memTx) UpdateService(ctx context.Context, id, sheetKey string, rec core.ServiceRecord) error {
	current, err := tx.ServiceByExternalID(ctx, rec.ExternalID)
	if err != nil || current.ID != id {
		return core.ErrNotFound
	}
	current.SheetKey = sheetKey
	current.Record = rec
	current.DeletedAt = nil
	current.UpdatedAt = tx.store.now().UTC()
	tx.staged[rec.ExternalID] = current
	return nil
}
