// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Stream metrics
	EventsProcessed *prometheus.CounterVec
	EventsDropped   *prometheus.CounterVec
	WSReconnects    prometheus.Counter
	StreamConnected prometheus.Gauge
	LastEventTime   prometheus.Gauge

	// Aggregate metrics
	TrackedTokens  prometheus.Gauge
	TokensEvicted  prometheus.Counter
	TradesIngested prometheus.Counter

	// Side-channel metrics
	PersistErrors *prometheus.CounterVec

	// Quote metrics
	SolPriceUsd prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pump_vision"
	}

	return &Metrics{
		EventsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_processed_total",
			Help:      "Total number of stream events processed by kind",
		}, []string{"kind"}),
		EventsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_dropped_total",
			Help:      "Total number of stream events dropped by reason",
		}, []string{"reason"}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnect attempts",
		}),
		StreamConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connected",
			Help:      "Whether the stream transport is currently connected (0/1)",
		}),
		LastEventTime: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "last_event_timestamp_ms",
			Help:      "Timestamp of the last stream event seen, in epoch ms",
		}),

		TrackedTokens: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "tracked_tokens",
			Help:      "Current number of tokens in the bounded universe",
		}),
		TokensEvicted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "tokens_evicted_total",
			Help:      "Total number of tokens evicted from the tail",
		}),
		TradesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "trades_ingested_total",
			Help:      "Total number of trades ingested",
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "errors_total",
			Help:      "Total number of side-channel persistence errors by sink",
		}, []string{"sink"}),

		SolPriceUsd: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "sol_price_usd",
			Help:      "Last observed SOL/USD rate",
		}),
	}
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
