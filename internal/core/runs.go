package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// LastRunCache holds the summary of the most recent run in this process.
// Writers replace the whole value in one atomic store, so readers never
// observe a half-written summary.
type LastRunCache struct {
	v atomic.Pointer[RunSummary]
}

// Load returns a copy of the cached summary, or nil before the first run.
func (c *LastRunCache) Load() *RunSummary {
	p := c.v.Load()
	if p == nil {
		return nil
	}
	s := *p
	return &s
}

// Store replaces the cached summary.
func (c *LastRunCache) Store(s RunSummary) {
	c.v.Store(&s)
}

// RunTracker writes one RunLog per run and keeps the LastRunCache current.
type RunTracker struct {
	store Store
	cache *LastRunCache
	now   func() time.Time
}

// NewRunTracker returns a tracker writing to store. A nil cache gets a
// private one.
func NewRunTracker(store Store, cache *LastRunCache) *RunTracker {
	if cache == nil {
		cache = &LastRunCache{}
	}
	return &RunTracker{store: store, cache: cache, now: time.Now}
}

// Finish records the end of a run. The cache is always updated; a failure
// to persist the run log is logged and returned but never alters res.
func (t *RunTracker) Finish(ctx context.Context, res SyncResult, started time.Time) error {
	finished := t.now()

	t.cache.Store(RunSummary{
		RunID:      res.RunID,
		Sheet:      res.Sheet,
		Mode:       res.Mode,
		Status:     res.Status,
		Created:    res.Created,
		Updated:    res.Updated,
		Deleted:    res.Deleted,
		Skipped:    res.Skipped,
		ErrorCount: len(res.Errors),
		StartedAt:  started,
		FinishedAt: finished,
		DurationMs: res.DurationMs,
	})

	errs := res.Errors
	if errs == nil {
		errs = []RowError{}
	}
	entry := RunLog{
		ID:         uuid.NewString(),
		RunID:      res.RunID,
		SheetName:  res.Sheet,
		SyncType:   res.Mode.SyncType(),
		Status:     res.Status,
		Created:    res.Created,
		Updated:    res.Updated,
		Deleted:    res.Deleted,
		Skipped:    res.Skipped,
		DurationMs: res.DurationMs,
		Errors:     errs,
		Trigger:    TriggerFromContext(ctx),
		CreatedAt:  finished.UTC(),
	}

	if err := t.store.InsertRunLog(ctx, entry); err != nil {
		getMetrics().runLogFails.Inc()
		slog.Error("failed to write run log",
			"run_id", res.RunID,
			"sheet", res.Sheet,
			"status", res.Status,
			"error", err,
		)
		return fmt.Errorf("write run log: %w", err)
	}
	return nil
}

// Last returns the cached summary of the most recent run, or nil.
func (t *RunTracker) Last() *RunSummary {
	return t.cache.Load()
}

// Recent returns the newest persisted run logs, optionally for one sheet.
func (t *RunTracker) Recent(ctx context.Context, sheet string, limit int) ([]RunLog, error) {
	logs, err := t.store.RecentRunLogs(ctx, sheet, limit)
	if err != nil {
		return nil, fmt.Errorf("recent run logs: %w", err)
	}
	return logs, nil
}
