package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ModuleMetrics holds the Prometheus metrics of a served module.
//
// It implements saori.Observer and server.ConnObserver.
type ModuleMetrics struct {
	// Requests
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// Connections
	connections      prometheus.Gauge
	connectionsTotal prometheus.Counter
}

// NewModuleMetrics creates and registers all module metrics
func NewModuleMetrics(registry *prometheus.Registry) *ModuleMetrics {
	m := &ModuleMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saori_requests_total",
				Help: "Total number of SAORI requests handled",
			},
			[]string{"kind", "code"}, // version, execute, malformed
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "saori_request_duration_seconds",
				Help:    "Time spent handling a request",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"kind"},
		),
		connections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "saori_connections",
				Help: "Number of open connections",
			},
		),
		connectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "saori_connections_total",
				Help: "Total connections accepted (cumulative)",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.connections,
		m.connectionsTotal,
	)

	return m
}

// ObserveRequest records a handled request
func (m *ModuleMetrics) ObserveRequest(kind string, code int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(kind, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ConnOpened records an accepted connection
func (m *ModuleMetrics) ConnOpened() {
	m.connections.Inc()
	m.connectionsTotal.Inc()
}

// ConnClosed records a closed connection
func (m *ModuleMetrics) ConnClosed() {
	m.connections.Dec()
}
