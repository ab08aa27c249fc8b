package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "agentchat"

// Reconciliation outcomes for an inbound chat turn.
const (
	ReconcileResumed      = "resumed"
	ReconcileCreated      = "created"
	ReconcileLookupFailed = "lookup_failed"
)

// Metrics holds the service's Prometheus collectors. A disabled or nil
// *Metrics accepts every call and records nothing.
type Metrics struct {
	chatTurns         *prometheus.CounterVec
	turnDuration      *prometheus.HistogramVec
	reconciliations   *prometheus.CounterVec
	degradedResponses *prometheus.CounterVec
	orphanedSessions  *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec

	registry *prometheus.Registry
}

func NewMetrics(enabled bool) *Metrics {
	if !enabled {
		return &Metrics{}
	}

	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		chatTurns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_turns_total",
				Help:      "Chat turns processed, by platform and outcome",
			},
			[]string{"platform", "status"},
		),
		turnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "chat_turn_duration_seconds",
				Help:      "End-to-end duration of a chat turn",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"platform"},
		),
		reconciliations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_reconciliations_total",
				Help:      "Session reconciliation outcomes",
			},
			[]string{"platform", "outcome"},
		),
		degradedResponses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "degraded_responses_total",
				Help:      "Turns answered with the fallback text",
			},
			[]string{"platform"},
		),
		orphanedSessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orphaned_runtime_sessions_total",
				Help:      "Runtime sessions created without a local mirror row",
			},
			[]string{"platform"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"method", "route", "code"},
		),
	}

	registry.MustRegister(
		m.chatTurns,
		m.turnDuration,
		m.reconciliations,
		m.degradedResponses,
		m.orphanedSessions,
		m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

func (m *Metrics) RecordTurn(platform, status string, d time.Duration) {
	if !m.enabled() {
		return
	}
	m.chatTurns.WithLabelValues(platform, status).Inc()
	m.turnDuration.WithLabelValues(platform).Observe(d.Seconds())
}

func (m *Metrics) RecordReconciliation(platform, outcome string) {
	if !m.enabled() {
		return
	}
	m.reconciliations.WithLabelValues(platform, outcome).Inc()
}

func (m *Metrics) RecordDegraded(platform string) {
	if !m.enabled() {
		return
	}
	m.degradedResponses.WithLabelValues(platform).Inc()
}

func (m *Metrics) RecordOrphan(platform string) {
	if !m.enabled() {
		return
	}
	m.orphanedSessions.WithLabelValues(platform).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, route string, code int) {
	if !m.enabled() {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}

// Registry exposes the underlying registry, nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if !m.enabled() {
		return nil
	}
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if !m.enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
