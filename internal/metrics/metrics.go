// Package metrics exposes Prometheus instrumentation for the request queue
// and the poll cycles.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds all Prometheus metrics for the dashboard.
type Metrics struct {
	gatherer prometheus.Gatherer

	// Queue metrics
	QueueRequests        *prometheus.CounterVec
	QueueRequestDuration *prometheus.HistogramVec
	QueueDepth           prometheus.Gauge

	// Cycle metrics
	Cycles             *prometheus.CounterVec
	CycleDuration      prometheus.Histogram
	LastSuccessfulPoll prometheus.Gauge
}

// NewMetrics registers every metric on reg. A nil reg uses a fresh
// private registry.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = "crypto_dashboard"
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		QueueRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "requests_total",
			Help:      "Backend requests dispatched by the throttle queue",
		}, []string{"endpoint", "outcome"}),
		QueueRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "request_duration_seconds",
			Help:      "Backend request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Requests waiting for dispatch",
		}),

		Cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Poll cycles by outcome",
		}, []string{"outcome"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a full poll cycle",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		LastSuccessfulPoll: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_successful_poll_timestamp_seconds",
			Help:      "Unix time of the last successful poll cycle",
		}),
	}
}

// ObserveDispatch implements queue.Observer.
func (m *Metrics) ObserveDispatch(endpoint string, duration time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.QueueRequests.WithLabelValues(endpoint, outcome).Inc()
	m.QueueRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// ObserveDepth implements queue.Observer.
func (m *Metrics) ObserveDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

func (m *Metrics) ObserveCycle(duration time.Duration, err error) {
	if err != nil {
		m.Cycles.WithLabelValues(OutcomeError).Inc()
		return
	}
	m.Cycles.WithLabelValues(OutcomeSuccess).Inc()
	m.CycleDuration.Observe(duration.Seconds())
	m.LastSuccessfulPoll.SetToCurrentTime()
}

// Handler returns the /metrics exposition handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
