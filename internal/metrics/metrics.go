// Package metrics exposes Prometheus counters for session refreshes and
// assignment outcomes. A nil *Metrics records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	refreshAttempts    *prometheus.CounterVec
	refreshOutcomes    *prometheus.CounterVec
	sessionExpirations *prometheus.CounterVec
	assignmentOutcomes *prometheus.CounterVec
	activeSessions     prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_refresh_attempts_total",
			Help: "Token refresh attempts by result kind (ok or error kind).",
		}, []string{"kind"}),
		refreshOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_refresh_outcomes_total",
			Help: "Completed refresh flights by outcome.",
		}, []string{"outcome"}),
		sessionExpirations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_session_expirations_total",
			Help: "Sessions terminated by reason.",
		}, []string{"reason"}),
		assignmentOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_assignment_outcomes_total",
			Help: "Assignment protocol calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleet_active_sessions",
			Help: "Sessions currently held by the gateway.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.refreshAttempts, m.refreshOutcomes, m.sessionExpirations, m.assignmentOutcomes, m.activeSessions)
	}
	return m
}

func (m *Metrics) RefreshAttempt(kind string) {
	if m == nil {
		return
	}
	m.refreshAttempts.WithLabelValues(kind).Inc()
}

func (m *Metrics) RefreshOutcome(outcome string) {
	if m == nil {
		return
	}
	m.refreshOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SessionExpired(reason string) {
	if m == nil {
		return
	}
	m.sessionExpirations.WithLabelValues(reason).Inc()
}

func (m *Metrics) AssignmentOutcome(operation, outcome string) {
	if m == nil {
		return
	}
	m.assignmentOutcomes.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}
