package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for tappo. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// Ingestion metrics
	EventsIngested *prometheus.CounterVec
	EventsRejected *prometheus.CounterVec
	IngestLatency  prometheus.Histogram

	// Analytics metrics
	ReportsServed *prometheus.CounterVec
	ReportLatency prometheus.Histogram
	ReportEvents  prometheus.Histogram

	// Rating sync metrics
	SyncRuns           *prometheus.CounterVec
	SyncDuration       *prometheus.HistogramVec
	ExtractionStrategy *prometheus.CounterVec
	FetchLatency       *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// System metrics
	DBConnections    *prometheus.GaugeVec
	RateLimitHits    *prometheus.CounterVec
	GeoLookupLatency *prometheus.HistogramVec
}

// NewMetrics creates all metrics and registers them with reg. A nil reg
// means the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		EventsIngested: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_ingested_total",
				Help:      "Interaction events accepted by the ingestion endpoint",
			},
			[]string{"event_type"},
		),
		EventsRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_rejected_total",
				Help:      "Interaction events rejected, by error code",
			},
			[]string{"code"},
		),
		IngestLatency: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ingest_latency_seconds",
				Help:      "Time to resolve and persist one event",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
			},
		),

		ReportsServed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_served_total",
				Help:      "Analytics reports served, by cache outcome",
			},
			[]string{"cache"}, // hit, miss, bypass
		),
		ReportLatency: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "report_latency_seconds",
				Help:      "Time to fetch and aggregate one report",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ReportEvents: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "report_events",
				Help:      "Events read per aggregated report",
				Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
			},
		),

		SyncRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rating_sync_runs_total",
				Help:      "Rating sync attempts, by result",
			},
			[]string{"result"}, // ok, error, superseded, rejected
		),
		SyncDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rating_sync_duration_seconds",
				Help:      "Wall time of one rating sync",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 90},
			},
			[]string{"result"},
		),
		ExtractionStrategy: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rating_extraction_strategy_total",
				Help:      "Which extraction strategy produced the rating",
			},
			[]string{"strategy"},
		),
		FetchLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "review_page_fetch_seconds",
				Help:      "Time to fetch and render one review page",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
			},
			[]string{"fetcher", "result"},
		),

		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests served",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		DBConnections: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections",
				Help:      "Database connection pool stats",
			},
			[]string{"state"}, // idle, in_use, total
		),
		RateLimitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Rate limit rejections",
			},
			[]string{"bucket"},
		),
		GeoLookupLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "geo_lookup_latency_seconds",
				Help:      "GeoIP lookup latency",
				Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01},
			},
			[]string{"found"},
		),
	}
}

// Handler returns the Prometheus metrics HTTP handler for g. A nil g serves
// the default gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordEventIngested records an accepted event.
func (m *Metrics) RecordEventIngested(eventType string, latency time.Duration) {
	if m == nil {
		return
	}
	m.EventsIngested.WithLabelValues(eventType).Inc()
	m.IngestLatency.Observe(latency.Seconds())
}

// RecordEventRejected records a rejected event.
func (m *Metrics) RecordEventRejected(code string) {
	if m == nil {
		return
	}
	m.EventsRejected.WithLabelValues(code).Inc()
}

// RecordReport records a served report.
func (m *Metrics) RecordReport(cache string, events int, latency time.Duration) {
	if m == nil {
		return
	}
	m.ReportsServed.WithLabelValues(cache).Inc()
	if cache != "hit" {
		m.ReportLatency.Observe(latency.Seconds())
		m.ReportEvents.Observe(float64(events))
	}
}

// RecordSync records the outcome of one rating sync.
func (m *Metrics) RecordSync(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.SyncRuns.WithLabelValues(result).Inc()
	m.SyncDuration.WithLabelValues(result).Observe(d.Seconds())
}

// RecordExtraction records which strategy produced a result.
func (m *Metrics) RecordExtraction(strategy string) {
	if m == nil {
		return
	}
	m.ExtractionStrategy.WithLabelValues(strategy).Inc()
}

// RecordFetch records one review page fetch.
func (m *Metrics) RecordFetch(fetcher string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.FetchLatency.WithLabelValues(fetcher, result).Observe(d.Seconds())
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordGeoLookup records a geo lookup.
func (m *Metrics) RecordGeoLookup(found bool, latency time.Duration) {
	if m == nil {
		return
	}
	m.GeoLookupLatency.WithLabelValues(strconv.FormatBool(found)).Observe(latency.Seconds())
}

// UpdateDBStats updates database connection metrics.
func (m *Metrics) UpdateDBStats(idle, inUse, total int) {
	if m == nil {
		return
	}
	m.DBConnections.WithLabelValues("idle").Set(float64(idle))
	m.DBConnections.WithLabelValues("in_use").Set(float64(inUse))
	m.DBConnections.WithLabelValues("total").Set(float64(total))
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(bucket string) {
	if m == nil {
		return
	}
	m.RateLimitHits.WithLabelValues(bucket).Inc()
}
