package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the collector.
type Metrics struct {
	// Ingestion metrics
	HitsTotal     *prometheus.CounterVec
	WriteFailures *prometheus.CounterVec
	WriteLatency  *prometheus.HistogramVec

	// Reporting metrics
	ReportRequests *prometheus.CounterVec
	ReportLatency  *prometheus.HistogramVec
	CacheHits      *prometheus.CounterVec

	// Archive metrics
	ArchivedHits    prometheus.Counter
	ArchiveFailures prometheus.Counter

	// System metrics
	DBConnections *prometheus.GaugeVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics *Metrics

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		HitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hits_total",
				Help:      "Beacon hits received, by kind",
			},
			[]string{"kind"}, // session, interaction
		),
		WriteFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "write_failures_total",
				Help:      "Failed fire-and-forget persistence attempts",
			},
			[]string{"kind"},
		),
		WriteLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "write_latency_seconds",
				Help:      "Hit persistence latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"kind"},
		),

		ReportRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_requests_total",
				Help:      "Reporting requests, by outcome",
			},
			[]string{"status"}, // ok, auth_failed, error
		),
		ReportLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "report_latency_seconds",
				Help:      "Reporting request latency in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
			},
			[]string{"status"},
		),
		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_cache_total",
				Help:      "Report cache lookups, by outcome",
			},
			[]string{"outcome"}, // hit, miss, disabled
		),

		ArchivedHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "archived_hits_total",
				Help:      "Raw hits flushed to the archive",
			},
		),
		ArchiveFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "archive_failures_total",
				Help:      "Failed archive batch flushes",
			},
		),

		DBConnections: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections",
				Help:      "Database connection pool stats",
			},
			[]string{"state"}, // idle, in_use, total
		),

		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Rate limit rejections",
			},
			[]string{"endpoint"},
		),
	}

	DefaultMetrics = m
	return m
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHit records a classified beacon hit.
func (m *Metrics) RecordHit(kind string) {
	m.HitsTotal.WithLabelValues(kind).Inc()
}

// RecordWrite records one persistence attempt.
func (m *Metrics) RecordWrite(kind string, latency time.Duration, err error) {
	m.WriteLatency.WithLabelValues(kind).Observe(latency.Seconds())
	if err != nil {
		m.WriteFailures.WithLabelValues(kind).Inc()
	}
}

// RecordReport records a reporting request outcome.
func (m *Metrics) RecordReport(status string, latency time.Duration) {
	m.ReportRequests.WithLabelValues(status).Inc()
	m.ReportLatency.WithLabelValues(status).Observe(latency.Seconds())
}

// RecordCacheLookup records a report cache lookup outcome.
func (m *Metrics) RecordCacheLookup(outcome string) {
	m.CacheHits.WithLabelValues(outcome).Inc()
}

// RecordArchiveFlush records one archive batch flush.
func (m *Metrics) RecordArchiveFlush(hits int, err error) {
	if err != nil {
		m.ArchiveFailures.Inc()
		return
	}
	m.ArchivedHits.Add(float64(hits))
}

// UpdateDBStats updates database connection metrics.
func (m *Metrics) UpdateDBStats(idle, inUse, total int) {
	m.DBConnections.WithLabelValues("idle").Set(float64(idle))
	m.DBConnections.WithLabelValues("in_use").Set(float64(inUse))
	m.DBConnections.WithLabelValues("total").Set(float64(total))
}

// RecordRateLimitHit records a rate limit rejection.
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.RateLimitHits.WithLabelValues(endpoint).Inc()
}
