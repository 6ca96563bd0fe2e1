package metrics_test

import (
	"testing"

	"github.com/jrsteele09/go-fleet-collect/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.RefreshAttempt("NETWORK_ERROR")
	m.RefreshAttempt("NETWORK_ERROR")
	m.RefreshOutcome("success")
	m.SessionExpired("inactivity")
	m.AssignmentOutcome("assign", "conflict")
	m.SetActiveSessions(3)

	count, err := testutil.GatherAndCount(reg, "fleet_refresh_attempts_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 5)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *metrics.Metrics
	require.NotPanics(t, func() {
		m.RefreshAttempt("ok")
		m.RefreshOutcome("success")
		m.SessionExpired("logout")
		m.AssignmentOutcome("confirm", "success")
		m.SetActiveSessions(1)
	})
}
