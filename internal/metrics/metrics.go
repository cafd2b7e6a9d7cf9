// Package metrics exposes the Prometheus collectors shared by the bot components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector the application records into.
type Metrics struct {
	IncomingMessages *prometheus.CounterVec
	Replies          *prometheus.CounterVec
	GeminiRequests   *prometheus.CounterVec
	GeminiLatency    *prometheus.HistogramVec
	SearchRequests   *prometheus.CounterVec
	ActiveSessions   prometheus.Gauge
	Errors           *prometheus.CounterVec
}

// New creates the collectors under namespace and registers them with reg.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IncomingMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incoming_messages_total",
			Help:      "Messages received, by channel.",
		}, []string{"channel"}),
		Replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_total",
			Help:      "Replies produced, by source.",
		}, []string{"source"}),
		GeminiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gemini_requests_total",
			Help:      "Gemini API calls, by outcome.",
		}, []string{"status"}),
		GeminiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gemini_request_duration_seconds",
			Help:      "Gemini API latency, by HTTP status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		SearchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bank_search_requests_total",
			Help:      "Banking information lookups, by outcome.",
		}, []string{"status"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Conversation sessions currently held in memory.",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors, by component.",
		}, []string{"component"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.IncomingMessages,
			m.Replies,
			m.GeminiRequests,
			m.GeminiLatency,
			m.SearchRequests,
			m.ActiveSessions,
			m.Errors,
		)
	}
	return m
}

// NewNop returns collectors that are not registered anywhere. Useful in tests
// and for commands that do not expose /metrics.
func NewNop() *Metrics {
	return New("nop", nil)
}
