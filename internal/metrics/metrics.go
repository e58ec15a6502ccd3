// Package metrics exposes the engine's Prometheus instrumentation. Grounded
// on sawpanic-cryptorun's internal/interfaces/http/metrics.go
// MetricsRegistry shape (HistogramVec/CounterVec/Gauge construction plus a
// single prometheus.MustRegister call), retargeted from scan/regime metrics
// to sync-job metrics: rows inserted, retry counts, batch sizes, job
// duration.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every metric the sync engine emits.
type Registry struct {
	JobDuration   *prometheus.HistogramVec
	JobsTotal     *prometheus.CounterVec
	RowsInserted  *prometheus.CounterVec
	BatchSize     *prometheus.HistogramVec
	RetryAttempts *prometheus.CounterVec
	CircuitTrips  *prometheus.CounterVec
	ActiveSymbols *prometheus.GaugeVec
}

// NewRegistry builds and registers every metric with reg. Passing a fresh
// prometheus.NewRegistry() keeps tests free of global-registry collisions;
// production wires prometheus.DefaultRegisterer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "funding_sync_job_duration_seconds",
				Help:    "Duration of a venue sync job (history or online) in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"venue", "kind"},
		),
		JobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funding_sync_jobs_total",
				Help: "Total number of sync jobs run, by venue, kind, and outcome",
			},
			[]string{"venue", "kind", "outcome"},
		),
		RowsInserted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funding_sync_rows_inserted_total",
				Help: "Total number of rows persisted, by venue and table",
			},
			[]string{"venue", "table"},
		),
		BatchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "funding_sync_batch_size",
				Help:    "Size of per-symbol fetch batches",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 200, 500, 1000},
			},
			[]string{"venue"},
		),
		RetryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funding_sync_retry_attempts_total",
				Help: "Total number of retry attempts by venue and outcome",
			},
			[]string{"venue", "outcome"},
		),
		CircuitTrips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funding_sync_circuit_breaker_trips_total",
				Help: "Total number of times a venue's circuit breaker opened",
			},
			[]string{"venue"},
		),
		ActiveSymbols: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "funding_sync_active_symbols",
				Help: "Number of active perpetual symbols last seen per venue",
			},
			[]string{"venue"},
		),
	}

	reg.MustRegister(
		r.JobDuration,
		r.JobsTotal,
		r.RowsInserted,
		r.BatchSize,
		r.RetryAttempts,
		r.CircuitTrips,
		r.ActiveSymbols,
	)
	return r
}

// JobTimer tracks one job run's wall-clock duration.
type JobTimer struct {
	reg   *Registry
	venue string
	kind  string
	start time.Time
}

// StartJobTimer begins timing a venue's history or online job.
func (r *Registry) StartJobTimer(venue, kind string) *JobTimer {
	return &JobTimer{reg: r, venue: venue, kind: kind, start: time.Now()}
}

// ObserveOutcome records the job's duration and terminal outcome ("ok" or
// "error").
func (t *JobTimer) ObserveOutcome(outcome string) {
	t.reg.JobDuration.WithLabelValues(t.venue, t.kind).Observe(time.Since(t.start).Seconds())
	t.reg.JobsTotal.WithLabelValues(t.venue, t.kind, outcome).Inc()
}
