package core

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	runsTotal   *prometheus.CounterVec
	rowsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	lastRun     *prometheus.GaugeVec
	activeRuns  prometheus.Gauge
	runLogFails prometheus.Counter
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		runsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheetsync",
			Name:      "runs_total",
			Help:      "Total number of sheet sync runs by outcome.",
		}, []string{"sheet", "mode", "status"}),
		rowsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheetsync",
			Name:      "rows_total",
			Help:      "Rows processed by sync runs, by outcome.",
		}, []string{"sheet", "outcome"}),
		runDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sheetsync",
			Name:      "run_duration_seconds",
			Help:      "Wall time of sheet sync runs.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"sheet", "mode"}),
		lastRun: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sheetsync",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time at which the last run of a sheet finished.",
		}, []string{"sheet"}),
		activeRuns: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "sheetsync",
			Name:      "active_runs",
			Help:      "Sheet runs currently executing.",
		}),
		runLogFails: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "sheetsync",
			Name:      "run_log_write_failures_total",
			Help:      "Run log rows that could not be persisted.",
		}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}

func (m *metrics) observeRun(res SyncResult, finished time.Time) {
	m.runsTotal.WithLabelValues(res.Sheet, string(res.Mode), string(res.Status)).Inc()
	m.runDuration.WithLabelValues(res.Sheet, string(res.Mode)).Observe(float64(res.DurationMs) / 1000)
	m.lastRun.WithLabelValues(res.Sheet).Set(float64(finished.Unix()))

	for outcome, n := range map[string]int{
		"created":   res.Created,
		"updated":   res.Updated,
		"unchanged": res.Unchanged,
		"skipped":   res.Skipped,
		"deleted":   res.Deleted,
	} {
		if n > 0 {
			m.rowsTotal.WithLabelValues(res.Sheet, outcome).Add(float64(n))
		}
	}
}
