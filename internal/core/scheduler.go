package core

// scheduler.go runs SyncAll on an in-process ticker for deployments that
// have no external cron caller. It runs immediately on start, then every
// interval, and stops when ctx is cancelled.

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// StartScheduler blocks until ctx is cancelled. A failing cycle is logged
// and never stops the scheduler.
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration, mode Mode) {
	if interval <= 0 {
		return
	}
	if mode == "" {
		mode = ModeIncremental
	}

	slog.Info("sync scheduler started", "interval", interval.String(), "mode", mode)

	s.runScheduled(ctx, mode)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync scheduler stopped")
			return
		case <-ticker.C:
			s.runScheduled(ctx, mode)
		}
	}
}

// runScheduled performs one SyncAll cycle.
func (s *Service) runScheduled(ctx context.Context, mode Mode) {
	start := time.Now()
	ctx = ContextWithTrigger(ctx, TriggerScheduler)

	results, err := s.SyncAll(ctx, SyncOptions{Mode: mode})
	if err != nil {
		if errors.Is(err, ErrSyncUnavailable) {
			slog.Warn("scheduled sync skipped", "reason", err)
			return
		}
		slog.Error("scheduled sync failed", "error", err)
		return
	}

	failed := 0
	for _, res := range results {
		if res.Status == RunFailed {
			failed++
		}
	}
	slog.Info("scheduled sync completed",
		"sheets", len(results),
		"failed", failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
