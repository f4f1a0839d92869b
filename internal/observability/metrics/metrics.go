package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "biportal_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "biportal_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "biportal_logins_total",
		Help: "Login attempts by method and result",
	}, []string{"method", "result"})

	embedExchangeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "biportal_embed_exchange_duration_seconds",
		Help:    "Duration of embed-credential exchanges",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	datasetParses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "biportal_dataset_parses_total",
		Help: "Spreadsheet parse attempts by result",
	}, []string{"result"})

	datasetFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "biportal_dataset_files",
		Help: "Number of client spreadsheet files in the data directory",
	})

	auditWritesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "biportal_audit_writes_failed_total",
		Help: "Login audit inserts that failed and were swallowed",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveLogin records a login attempt outcome
func ObserveLogin(method, result string) {
	loginsTotal.WithLabelValues(method, result).Inc()
}

// ObserveEmbedExchange records the duration of an embed-credential exchange
func ObserveEmbedExchange(result string, duration time.Duration) {
	embedExchangeDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveDatasetParse records a spreadsheet parse attempt
func ObserveDatasetParse(result string) {
	datasetParses.WithLabelValues(result).Inc()
}

// SetDatasetFiles sets the gauge of spreadsheet files present
func SetDatasetFiles(count int) {
	if count < 0 {
		count = 0
	}
	datasetFiles.Set(float64(count))
}

// ObserveAuditWriteFailure counts a swallowed audit insert failure
func ObserveAuditWriteFailure() {
	auditWritesFailed.Inc()
}
