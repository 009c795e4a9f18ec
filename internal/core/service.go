package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/sheetsync/internal/config"
)

// Options tunes the orchestrator. Zero values fall back to defaults.
type Options struct {
	RowWorkers        int
	MaxConcurrentRuns int
	MaxWait           time.Duration
	FetchTimeout      time.Duration
	StaleThreshold    time.Duration
	ValidateSample    int
	RecentRuns        int
}

// OptionsFromConfig maps the sync-related configuration sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		RowWorkers:        cfg.Sync.RowWorkers,
		MaxConcurrentRuns: cfg.Sync.MaxConcurrentRuns,
		MaxWait:           cfg.Sync.MaxWaitTime,
		FetchTimeout:      cfg.Source.FetchTimeout,
		StaleThreshold:    cfg.Sync.StaleThreshold,
		ValidateSample:    cfg.Sync.ValidateSample,
		RecentRuns:        cfg.Sync.RecentRuns,
	}
}

func (o Options) withDefaults() Options {
	if o.RowWorkers <= 0 {
		o.RowWorkers = 4
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = time.Minute
	}
	if o.StaleThreshold <= 0 {
		o.StaleThreshold = 15 * time.Minute
	}
	if o.ValidateSample <= 0 {
		o.ValidateSample = 20
	}
	if o.RecentRuns <= 0 {
		o.RecentRuns = 20
	}
	return o
}

// Service is the sync orchestrator: it fetches sheet rows, reconciles them
// into the store and records every run.
type Service struct {
	store      Store
	connectors ConnectorFactory
	tracker    *RunTracker
	limiter    *RunLimiter
	locks      *KeyLock
	opts       Options
	now        func() time.Time

	availableOnce sync.Once
	available     bool
}

// NewService wires an orchestrator. The cache is shared with anything that
// needs the last run cheaply; pass nil for a private one.
func NewService(store Store, connectors ConnectorFactory, cache *LastRunCache, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		store:      store,
		connectors: connectors,
		tracker:    NewRunTracker(store, cache),
		limiter:    NewRunLimiter(opts.MaxConcurrentRuns, opts.MaxWait),
		locks:      NewKeyLock(),
		opts:       opts,
		now:        time.Now,
	}
}

// ListSheets returns every registered sheet definition.
func (s *Service) ListSheets() []SheetDefinition {
	return All()
}

// LastRun returns the in-process summary of the most recent run, or nil.
func (s *Service) LastRun() *RunSummary {
	return s.tracker.Last()
}

// RecentRuns returns persisted run logs, newest first.
func (s *Service) RecentRuns(ctx context.Context, sheet string, limit int) ([]RunLog, error) {
	if limit <= 0 {
		limit = s.opts.RecentRuns
	}
	return s.tracker.Recent(ctx, sheet, limit)
}

// LimiterStatus reports run slot usage.
func (s *Service) LimiterStatus() RunLimiterStatus {
	return s.limiter.Status()
}

// WaitForRuns blocks until in-flight runs finish or ctx ends.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// Available reports whether an upstream source is configured. The factory
// is consulted once; the answer is cached for the life of the service.
// Credentials that are present but broken count as configured: runs against
// them fail and are logged.
func (s *Service) Available(ctx context.Context) bool {
	s.availableOnce.Do(func() {
		if s.connectors == nil {
			return
		}
		conn, err := s.connectors(ctx)
		s.available = err != nil || conn != nil
	})
	return s.available
}

// connector builds the upstream connector for a run. Only a missing source
// is an error; a factory failure is returned as a connector whose fetch
// fails, so the run is logged as FAILED like any other upstream failure.
func (s *Service) connector(ctx context.Context) (Connector, error) {
	if s.connectors == nil {
		return nil, ErrSyncUnavailable
	}
	conn, err := s.connectors(ctx)
	if err != nil {
		return failedConnector{err: fmt.Errorf("create connector: %w", err)}, nil
	}
	if conn == nil {
		return nil, ErrSyncUnavailable
	}
	return conn, nil
}

type failedConnector struct{ err error }

func (c failedConnector) FetchRows(context.Context, SheetDefinition) ([]SheetRow, error) {
	return nil, c.err
}
