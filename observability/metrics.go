// Package observability sets up structured logging and Prometheus metrics
// for the proposal server.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "proposal"

// Metrics are the engine and advisor counters. Each instance owns its own
// registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	Resolutions          prometheus.Counter
	UnabsorbedShortfalls prometheus.Counter
	Discounts            *prometheus.CounterVec
	Suggestions          *prometheus.CounterVec
	SuggestionDuration   prometheus.Histogram
	ActiveSessions       prometheus.Gauge
	SessionsSwept        prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Resolutions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Proposals resolved against a table plan.",
		}),
		UnabsorbedShortfalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unabsorbed_shortfalls_total",
			Help:      "Resolutions whose shortfall had no eligible bucket.",
		}),
		Discounts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discounts_applied_total",
			Help:      "Discounts applied, by target bucket.",
		}, []string{"target"}),
		Suggestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suggestions_total",
			Help:      "Suggestion requests, by outcome.",
		}, []string{"outcome"}),
		SuggestionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "suggestion_duration_seconds",
			Help:      "Latency of suggestion provider calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Negotiation sessions currently held in memory.",
		}),
		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_swept_total",
			Help:      "Idle sessions removed by the sweeper.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Resolutions,
		m.UnabsorbedShortfalls,
		m.Discounts,
		m.Suggestions,
		m.SuggestionDuration,
		m.ActiveSessions,
		m.SessionsSwept,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveSuggestion records one provider call.
func (m *Metrics) ObserveSuggestion(outcome string, elapsed time.Duration) {
	m.Suggestions.WithLabelValues(outcome).Inc()
	m.SuggestionDuration.Observe(elapsed.Seconds())
}
