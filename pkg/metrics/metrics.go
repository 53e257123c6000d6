package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Report pipeline metrics
	ReportFetchesTotal  *prometheus.CounterVec
	ReportFetchDuration *prometheus.HistogramVec
	RowsParsedTotal     *prometheus.CounterVec
	OverviewsBuiltTotal *prometheus.CounterVec
	JoinCoveragePct     *prometheus.GaugeVec

	// External API metrics
	ExternalAPICalls    *prometheus.CounterVec
	ExternalAPIDuration *prometheus.HistogramVec
	ExternalAPIFailures *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		ReportFetchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "report_fetches_total",
				Help: "Total number of upstream report fetches",
			},
			[]string{"source", "status"},
		),

		ReportFetchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "report_fetch_duration_seconds",
				Help:    "Upstream report fetch duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"source"},
		),

		RowsParsedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "report_rows_parsed_total",
				Help: "Total number of report rows parsed",
			},
			[]string{"source"},
		),

		OverviewsBuiltTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "overviews_built_total",
				Help: "Total number of overview datasets built",
			},
			[]string{"status"},
		),

		JoinCoveragePct: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "join_classified_share_pct",
				Help: "Share of analytics visits attributed to a known campaign, last run",
			},
			[]string{"method"},
		),

		ExternalAPICalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_api_calls_total",
				Help: "Total number of external API calls",
			},
			[]string{"api", "status"},
		),

		ExternalAPIDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "external_api_duration_seconds",
				Help:    "External API call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"api"},
		),

		ExternalAPIFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_api_failures_total",
				Help: "Total number of external API failures",
			},
			[]string{"api", "error_type"},
		),
	}
}

// HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Report fetch metrics
func (m *Metrics) RecordReportFetch(source, status string, duration time.Duration) {
	m.ReportFetchesTotal.WithLabelValues(source, status).Inc()
	m.ReportFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// Parsed row metrics
func (m *Metrics) RecordRowsParsed(source string, count int) {
	m.RowsParsedTotal.WithLabelValues(source).Add(float64(count))
}

// Overview build metrics
func (m *Metrics) RecordOverviewBuilt(status string) {
	m.OverviewsBuiltTotal.WithLabelValues(status).Inc()
}

// Join coverage metrics
func (m *Metrics) RecordJoinCoverage(method string, sharePct float64) {
	m.JoinCoveragePct.WithLabelValues(method).Set(sharePct)
}

// External API call metrics
func (m *Metrics) RecordExternalAPICall(api, status string, duration time.Duration) {
	m.ExternalAPICalls.WithLabelValues(api, status).Inc()
	m.ExternalAPIDuration.WithLabelValues(api).Observe(duration.Seconds())
}

// External API failure metrics
func (m *Metrics) RecordExternalAPIFailure(api, errorType string) {
	m.ExternalAPIFailures.WithLabelValues(api, errorType).Inc()
}

// HTTP requests in flight counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// HTTP requests in flight counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}
