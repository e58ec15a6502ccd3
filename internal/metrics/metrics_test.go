package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryRegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)

	// Vec metrics only appear in Gather once they have at least one child.
	r.JobDuration.WithLabelValues("BINANCE", "history")
	r.JobsTotal.WithLabelValues("BINANCE", "history", "ok")
	r.RowsInserted.WithLabelValues("BINANCE", "history")
	r.BatchSize.WithLabelValues("BINANCE")
	r.RetryAttempts.WithLabelValues("BINANCE", "ok")
	r.CircuitTrips.WithLabelValues("BINANCE")
	r.ActiveSymbols.WithLabelValues("BINANCE")

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
	require.Len(t, families, 7)
}

func TestJobTimerObservesDurationAndOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)

	timer := r.StartJobTimer("BINANCE", "history")
	timer.ObserveOutcome("ok")

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "funding_sync_jobs_total" {
			found = true
			require.Len(t, f.Metric, 1)
			assertLabel(t, f.Metric[0], "venue", "BINANCE")
			assertLabel(t, f.Metric[0], "kind", "history")
			assertLabel(t, f.Metric[0], "outcome", "ok")
		}
	}
	require.True(t, found, "funding_sync_jobs_total metric must be registered and observed")
}

func assertLabel(t *testing.T, m *dto.Metric, name, value string) {
	t.Helper()
	for _, l := range m.Label {
		if l.GetName() == name {
			require.Equal(t, value, l.GetValue())
			return
		}
	}
	t.Fatalf("label %s not found", name)
}
