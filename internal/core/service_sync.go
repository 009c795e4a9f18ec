package core

// service_sync.go runs one sheet (or every sheet) through
// FETCHING -> per row VALIDATE/DIFF/APPLY -> LOGGING -> DONE.
//
// A run is never one big transaction. Each row is applied in its own store
// transaction, so one bad row is recorded and skipped while the rest of the
// batch lands. Once a run has its lock and slot it ignores caller
// cancellation and always finishes with a logged outcome.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SyncOptions selects the mode of a run. RunID is generated when empty.
type SyncOptions struct {
	Mode  Mode
	RunID string
}

type rowOutcome int

const (
	outcomeUnchanged rowOutcome = iota
	outcomeCreated
	outcomeUpdated
	outcomeOwnedByPrimary
)

var errManualRecord = errors.New("external id belongs to a manually created record")

// SyncSheet runs one registered sheet. Row and fetch failures are reported
// in the result; the error is reserved for problems that prevented the run
// from starting (unknown sheet, missing credentials, no free run slot).
func (s *Service) SyncSheet(ctx context.Context, sheetKey string, opts SyncOptions) (SyncResult, error) {
	def, ok := Get(sheetKey)
	if !ok {
		return SyncResult{}, fmt.Errorf("%w: %s", ErrUnknownSheet, sheetKey)
	}

	conn, err := s.connector(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	opts = s.normalizeOptions(opts)
	return s.runSheet(ctx, conn, def, opts)
}

// SyncAll runs every registered sheet with one shared run id. A failure in
// one sheet never stops the others; a sheet that could not start is
// reported as a failed result.
func (s *Service) SyncAll(ctx context.Context, opts SyncOptions) (map[string]SyncResult, error) {
	conn, err := s.connector(ctx)
	if err != nil {
		return nil, err
	}

	opts = s.normalizeOptions(opts)
	defs := All()
	results := make(map[string]SyncResult, len(defs))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(cap(s.limiter.slots))
	for _, def := range defs {
		g.Go(func() error {
			res, err := s.runSheet(ctx, conn, def, opts)
			if err != nil {
				res = SyncResult{
					Sheet:  def.Key,
					RunID:  opts.RunID,
					Mode:   opts.Mode,
					Status: RunFailed,
					Errors: []RowError{{Sheet: def.Key, Kind: ErrorKindFetch, Message: err.Error()}},
				}
			}
			mu.Lock()
			results[def.Key] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

func (s *Service) normalizeOptions(opts SyncOptions) SyncOptions {
	if opts.Mode == "" {
		opts.Mode = ModeIncremental
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	return opts
}

// runSheet waits for the sheet lock and a run slot, then executes the run
// detached from the caller's cancellation.
func (s *Service) runSheet(ctx context.Context, conn Connector, def SheetDefinition, opts SyncOptions) (SyncResult, error) {
	unlock, err := s.locks.Lock(ctx, def.Key)
	if err != nil {
		return SyncResult{}, fmt.Errorf("wait for sheet %s: %w", def.Key, err)
	}
	defer unlock()

	if err := s.limiter.Acquire(ctx); err != nil {
		return SyncResult{}, err
	}
	defer s.limiter.Release()

	m := getMetrics()
	m.activeRuns.Inc()
	defer m.activeRuns.Dec()

	return s.execute(context.WithoutCancel(ctx), conn, def, opts), nil
}

func (s *Service) execute(ctx context.Context, conn Connector, def SheetDefinition, opts SyncOptions) SyncResult {
	started := s.now()
	logger := slog.With("run_id", opts.RunID, "sheet", def.Key, "mode", opts.Mode)
	logger.Info("sync run started", "trigger", TriggerFromContext(ctx), "ip", IPAddressFromContext(ctx))

	res := SyncResult{Sheet: def.Key, RunID: opts.RunID, Mode: opts.Mode, Errors: []RowError{}}

	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	rows, err := conn.FetchRows(fetchCtx, def)
	cancel()

	if err != nil {
		logger.Error("sync fetch failed", "error", err)
		res.Status = RunFailed
		res.Errors = append(res.Errors, RowError{
			Sheet:   def.Key,
			Kind:    ErrorKindFetch,
			Message: fmt.Sprintf("fetch rows: %v", err),
		})
		return s.finish(ctx, logger, res, started, 0)
	}

	records, rowErrs := parseBatch(def, rows)
	res.Errors = append(res.Errors, rowErrs...)
	res.Skipped = len(rowErrs)

	if opts.Mode == ModeFullReset {
		deleted, err := s.store.SoftDeleteSheet(ctx, def.Key)
		if err != nil {
			logger.Error("full reset delete failed", "error", err)
			res.Status = RunFailed
			res.Errors = append(res.Errors, RowError{
				Sheet:   def.Key,
				Kind:    ErrorKindPersistence,
				Message: fmt.Sprintf("soft delete sheet records: %v", err),
			})
			return s.finish(ctx, logger, res, started, 0)
		}
		res.Deleted = deleted
		logger.Info("full reset cleared sheet records", "deleted", deleted)
	}

	primaryKey := ""
	if primary, ok := Primary(); ok {
		primaryKey = primary.Key
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.opts.RowWorkers)
	for _, p := range records {
		g.Go(func() error {
			outcome, err := s.applyRow(ctx, def.Key, primaryKey, p.Record)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Debug("row apply failed", "row", p.Number, "external_id", p.Record.ExternalID, "error", err)
				res.Skipped++
				res.Errors = append(res.Errors, RowError{
					Sheet:      def.Key,
					Row:        p.Number,
					ExternalID: p.Record.ExternalID,
					Kind:       ErrorKindPersistence,
					Message:    err.Error(),
				})
				return nil
			}
			switch outcome {
			case outcomeCreated:
				res.Created++
			case outcomeUpdated:
				res.Updated++
			case outcomeOwnedByPrimary:
				logger.Debug("row left to primary sheet", "row", p.Number, "external_id", p.Record.ExternalID, "owner", primaryKey)
				res.Unchanged++
			default:
				res.Unchanged++
			}
			return nil
		})
	}
	_ = g.Wait()

	sortRowErrors(res.Errors)
	res.Status = runStatus(res)
	return s.finish(ctx, logger, res, started, len(records))
}

func (s *Service) finish(ctx context.Context, logger *slog.Logger, res SyncResult, started time.Time, applied int) SyncResult {
	res.Success = res.Status == RunSuccess
	res.DurationMs = s.now().Sub(started).Milliseconds()

	_ = s.tracker.Finish(ctx, res, started)
	getMetrics().observeRun(res, s.now())

	logger.Info("sync run finished",
		"status", res.Status,
		"rows", applied,
		"created", res.Created,
		"updated", res.Updated,
		"unchanged", res.Unchanged,
		"deleted", res.Deleted,
		"skipped", res.Skipped,
		"errors", len(res.Errors),
		"duration_ms", res.DurationMs,
	)
	return res
}

// runStatus: SUCCESS without errors, FAILED when errors left nothing
// applied, PARTIAL otherwise.
func runStatus(res SyncResult) RunStatus {
	if len(res.Errors) == 0 {
		return RunSuccess
	}
	if res.Created+res.Updated+res.Unchanged == 0 {
		return RunFailed
	}
	return RunPartial
}

// parseBatch runs the parse step over every fetched row, drops blank rows
// and rejects repeated external ids after their first occurrence.
func parseBatch(def SheetDefinition, rows []SheetRow) ([]ParsedRow, []RowError) {
	layout := NewLayout(def)
	seen := make(map[string]int, len(rows))

	var records []ParsedRow
	var errs []RowError
	for _, row := range rows {
		p := layout.Parse(row)
		switch {
		case p.Blank:
			continue
		case p.Err != nil:
			errs = append(errs, *p.Err)
			continue
		}

		if first, dup := seen[p.Record.ExternalID]; dup {
			errs = append(errs, RowError{
				Sheet:      def.Key,
				Row:        p.Number,
				ExternalID: p.Record.ExternalID,
				Kind:       ErrorKindValidation,
				Message:    fmt.Sprintf("duplicate external id (first seen on row %d)", first),
			})
			continue
		}
		seen[p.Record.ExternalID] = p.Number
		records = append(records, p)
	}
	return records, errs
}

// applyRow reconciles one record inside its own transaction. An active
// record owned by the primary sheet is never taken over by another sheet.
func (s *Service) applyRow(ctx context.Context, sheetKey, primaryKey string, rec ServiceRecord) (rowOutcome, error) {
	var outcome rowOutcome

	err := s.store.InTx(ctx, func(tx StoreTx) error {
		existing, err := tx.ServiceByExternalID(ctx, rec.ExternalID)
		if errors.Is(err, ErrNotFound) {
			outcome = outcomeCreated
			return tx.InsertService(ctx, sheetKey, rec)
		}
		if err != nil {
			return err
		}

		if existing.Origin == OriginManual {
			return errManualRecord
		}
		if !existing.Active() {
			outcome = outcomeCreated
			return tx.UpdateService(ctx, existing.ID, sheetKey, rec)
		}
		if existing.SheetKey == primaryKey && sheetKey != primaryKey {
			outcome = outcomeOwnedByPrimary
			return nil
		}
		if existing.SheetKey == sheetKey && len(rec.Diff(existing.Record)) == 0 {
			outcome = outcomeUnchanged
			return nil
		}
		outcome = outcomeUpdated
		return tx.UpdateService(ctx, existing.ID, sheetKey, rec)
	})
	if err != nil {
		return outcomeUnchanged, err
	}
	return outcome, nil
}

func sortRowErrors(errs []RowError) {
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].Sheet != errs[j].Sheet {
			return errs[i].Sheet < errs[j].Sheet
		}
		return errs[i].Row < errs[j].Row
	})
}

// FlattenErrors merges the errors of several sheet results, ordered by
// sheet and row.
func FlattenErrors(results map[string]SyncResult) []RowError {
	all := []RowError{}
	for _, res := range results {
		all = append(all, res.Errors...)
	}
	sortRowErrors(all)
	return all
}

// AllSucceeded reports whether every result is a clean success.
func AllSucceeded(results map[string]SyncResult) bool {
	for _, res := range results {
		if !res.Success {
			return false
		}
	}
	return true
}
