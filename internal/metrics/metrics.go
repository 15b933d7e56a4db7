// Package metrics collects Prometheus instrumentation for the broker: a
// struct of promauto-registered collectors built against a private
// prometheus.Registry, exposed as a process-wide singleton via Default().
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *prometheus.Registry
	def      *Metrics
)

// Metrics holds every collector the broker reports.
type Metrics struct {
	ActiveSessions  prometheus.Gauge
	SessionsOpened  prometheus.Counter
	SessionsClosed  prometheus.Counter
	SessionsDropped prometheus.Counter

	ActiveTopics prometheus.Gauge

	MessagesPublished prometheus.Counter
	MessagesDelivered prometheus.Counter
	PayloadBytes      prometheus.Histogram

	ProtocolErrors prometheus.Counter
}

// New builds a fresh Metrics instance registered against a fresh
// prometheus.Registry, namespaced under namespace.
func New(namespace string) *Metrics {
	registry = prometheus.NewRegistry()

	return &Metrics{
		ActiveSessions: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of currently connected sessions.",
		}),
		SessionsOpened: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Total number of sessions accepted.",
		}),
		SessionsClosed: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Total number of sessions that have closed, for any reason.",
		}),
		SessionsDropped: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_dropped_total",
			Help:      "Total number of sessions disconnected for being slow consumers.",
		}),
		ActiveTopics: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_topics",
			Help:      "Number of topics with at least one subscriber.",
		}),
		MessagesPublished: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Total number of PUBLISH commands accepted.",
		}),
		MessagesDelivered: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_delivered_total",
			Help:      "Total number of MESSAGE frames delivered to subscribers.",
		}),
		PayloadBytes: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payload_bytes",
			Help:      "Distribution of published payload sizes in bytes.",
			Buckets:   []float64{16, 64, 256, 1024, 4096, 16384, 65536},
		}),
		ProtocolErrors: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Total number of malformed or unknown commands received.",
		}),
	}
}

// Registry returns the prometheus.Registry backing Default, for wiring into
// promhttp.HandlerFor.
func Registry() *prometheus.Registry {
	return registry
}

// Default returns the process-wide Metrics instance, creating it under the
// "neuropipe" namespace on first use.
func Default() *Metrics {
	once.Do(func() {
		def = New("neuropipe")
	})
	return def
}
