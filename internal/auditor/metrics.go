package auditor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names as constants for consistency.
const (
	MetricMessagesProcessed = "auditor_messages_processed_total"
	MetricMessagesError     = "auditor_messages_error_total"
	MetricHandleLatency     = "auditor_handle_latency_seconds"
)

// Metrics contains Prometheus metrics for the auditor. All operations are
// thread-safe.
type Metrics struct {
	messagesProcessed prometheus.Counter
	messagesError     prometheus.Counter
	handleLatency     prometheus.Histogram
}

// NewMetrics creates a Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a
// registry.
func NewMetrics() *Metrics {
	return &Metrics{
		messagesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricMessagesProcessed,
			Help: "Total number of login events processed into audit entries",
		}),
		messagesError: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricMessagesError,
			Help: "Total number of messages that failed to decode or process",
		}),
		handleLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricHandleLatency,
			Help:    "Histogram of per-message handling latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.messagesProcessed,
		m.messagesError,
		m.handleLatency,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncMessagesProcessed increments the processed counter.
func (m *Metrics) IncMessagesProcessed() {
	m.messagesProcessed.Inc()
}

// IncMessagesError increments the error counter.
func (m *Metrics) IncMessagesError() {
	m.messagesError.Inc()
}

// ObserveHandleLatency records one message's handling latency in seconds.
func (m *Metrics) ObserveHandleLatency(seconds float64) {
	m.handleLatency.Observe(seconds)
}

// MetricsHandler creates an HTTP handler for the Prometheus metrics
// endpoint backed by the provided registry.
func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
