package core

import (
	"context"
	"time"
)

// StatusReport is the health view of the sync engine.
type StatusReport struct {
	LastRun          *RunSummary      `json:"lastRun"`
	LastRunAt        *time.Time       `json:"lastRunAt"`
	Stale            bool             `json:"stale"`
	ThresholdMinutes int              `json:"thresholdMinutes"`
	RecentRuns       []RunLog         `json:"recentRuns"`
	RecentRunsError  string           `json:"recentRunsError,omitempty"`
	Limiter          RunLimiterStatus `json:"limiter"`
	SyncAvailable    bool             `json:"syncAvailable"`
}

// Status builds the status report. A store failure while reading recent
// runs degrades the report instead of failing it.
func (s *Service) Status(ctx context.Context, limit int) StatusReport {
	report := StatusReport{
		LastRun:          s.LastRun(),
		ThresholdMinutes: int(s.opts.StaleThreshold / time.Minute),
		RecentRuns:       []RunLog{},
		Limiter:          s.LimiterStatus(),
		SyncAvailable:    s.Available(ctx),
	}

	runs, err := s.RecentRuns(ctx, "", limit)
	if err != nil {
		report.RecentRunsError = err.Error()
	} else if runs != nil {
		report.RecentRuns = runs
	}

	switch {
	case report.LastRun != nil:
		at := report.LastRun.FinishedAt.UTC()
		report.LastRunAt = &at
	case len(report.RecentRuns) > 0:
		at := report.RecentRuns[0].CreatedAt.UTC()
		report.LastRunAt = &at
	}

	report.Stale = isStale(report.LastRunAt, s.now(), s.opts.StaleThreshold)
	return report
}

func isStale(lastRunAt *time.Time, now time.Time, threshold time.Duration) bool {
	if lastRunAt == nil {
		return true
	}
	return now.Sub(*lastRunAt) > threshold
}
