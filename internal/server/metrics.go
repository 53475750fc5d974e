package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several servers can coexist in one
// process (tests).
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	contacts *prometheus.CounterVec
	uploads  *prometheus.CounterVec
	searches prometheus.Counter
	visitors prometheus.Gauge
}

// NewMetrics registers the gateway metrics. inUse, when non-nil, backs the
// active_database_connections gauge.
func NewMetrics(inUse func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		contacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contact_submissions_total",
			Help: "Total contact submissions",
		}, []string{"source", "service"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "document_uploads_total",
			Help: "Total document uploads",
		}, []string{"document_type", "status"}),
		searches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "document_search_queries_total",
			Help: "Total document search queries",
		}),
		visitors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "website_visitor_count",
			Help: "Current website visitor count",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.duration, m.contacts, m.uploads, m.searches, m.visitors,
	)
	if inUse != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "active_database_connections",
			Help: "Database connections currently in use",
		}, func() float64 { return float64(inUse()) }))
	}
	return m
}

func (m *Metrics) ObserveRequest(method, endpoint string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

func (m *Metrics) ContactSubmitted(source, service string) {
	m.contacts.WithLabelValues(source, service).Inc()
}

func (m *Metrics) DocumentUploaded(documentType, status string) {
	m.uploads.WithLabelValues(documentType, status).Inc()
}

func (m *Metrics) SearchQueried() {
	m.searches.Inc()
}

// SetVisitorCount updates the gauge. Zero is what the store returns when the
// counter could not be read, so it never overwrites a known value.
func (m *Metrics) SetVisitorCount(n int64) {
	if n <= 0 {
		return
	}
	m.visitors.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
