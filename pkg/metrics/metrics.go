package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	PushDeliveries  *prometheus.CounterVec
	BulkBatches     *prometheus.CounterVec
	CascadeShifts   prometheus.Counter
	ImportedRecords *prometheus.CounterVec
}

// New registers all collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jadwaluna",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "jadwaluna",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		PushDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jadwaluna",
			Name:      "push_deliveries_total",
			Help:      "Web Push deliveries by outcome.",
		}, []string{"status"}),
		BulkBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jadwaluna",
			Name:      "bulk_replace_batches_total",
			Help:      "Bulk replace batches by outcome.",
		}, []string{"result"}),
		CascadeShifts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jadwaluna",
			Name:      "cascade_shifts_total",
			Help:      "Schedules moved by cascading date updates.",
		}),
		ImportedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jadwaluna",
			Name:      "import_records_total",
			Help:      "CSV import rows by outcome.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.PushDeliveries,
		m.BulkBatches,
		m.CascadeShifts,
		m.ImportedRecords,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
