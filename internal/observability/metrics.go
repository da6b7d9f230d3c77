package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce               sync.Once
	httpRequestsTotal          *prometheus.CounterVec
	httpLatencySeconds         *prometheus.HistogramVec
	httpErrorsTotal            *prometheus.CounterVec
	certificatesIssuedTotal    *prometheus.CounterVec
	certificateFailuresTotal   *prometheus.CounterVec
	certificateRenderSeconds   *prometheus.HistogramVec
	progressRecomputesTotal    *prometheus.CounterVec
	assignmentSubmissionsTotal *prometheus.CounterVec
	paymentsTotal              *prometheus.CounterVec
	purgedNodesTotal           *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lms_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_http_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		certificatesIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_certificates_issued_total",
			Help: "Certificates issued, by artifact format.",
		}, []string{"format"})

		certificateFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_certificate_issuance_failures_total",
			Help: "Certificate requests that did not issue, by reason.",
		}, []string{"reason"})

		certificateRenderSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lms_certificate_render_seconds",
			Help:    "Time spent rendering certificate artifacts.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"format"})

		progressRecomputesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_progress_recomputes_total",
			Help: "Progress recomputations, by trigger.",
		}, []string{"trigger"})

		assignmentSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_assignment_submissions_total",
			Help: "Assignment answer submissions, by aggregate outcome.",
		}, []string{"outcome"})

		paymentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_payments_total",
			Help: "Payment lifecycle transitions, by status.",
		}, []string{"status"})

		purgedNodesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_purged_nodes_total",
			Help: "Curriculum nodes hard-deleted after the retention window, by level.",
		}, []string{"level"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			certificatesIssuedTotal,
			certificateFailuresTotal,
			certificateRenderSeconds,
			progressRecomputesTotal,
			assignmentSubmissionsTotal,
			paymentsTotal,
			purgedNodesTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// CertificatesIssued counts successful issuances.
func CertificatesIssued() *prometheus.CounterVec {
	RegisterMetrics()
	return certificatesIssuedTotal
}

// CertificateFailures counts refused or failed issuances.
func CertificateFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return certificateFailuresTotal
}

// CertificateRenderDuration observes renderer latency.
func CertificateRenderDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return certificateRenderSeconds
}

// ProgressRecomputes counts progress recomputations.
func ProgressRecomputes() *prometheus.CounterVec {
	RegisterMetrics()
	return progressRecomputesTotal
}

// AssignmentSubmissions counts graded answer sets.
func AssignmentSubmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return assignmentSubmissionsTotal
}

// Payments counts payment transitions.
func Payments() *prometheus.CounterVec {
	RegisterMetrics()
	return paymentsTotal
}

// PurgedNodes counts hard-deleted curriculum nodes.
func PurgedNodes() *prometheus.CounterVec {
	RegisterMetrics()
	return purgedNodesTotal
}
