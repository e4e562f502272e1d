package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// form engine's domain counters.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	submissionsAccepted prometheus.Counter
	submissionsRejected prometheus.Counter
	formsPublished      prometheus.Counter
	aiActionsExecuted   prometheus.Counter
	snapshotCacheHits   prometheus.Counter
	snapshotCacheMisses prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	submissionsAccepted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "form_submissions_accepted_total",
		Help: "Submissions that passed snapshot validation",
	})

	submissionsRejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "form_submissions_rejected_total",
		Help: "Submissions rejected with validation violations",
	})

	formsPublished := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "forms_published_total",
		Help: "Form definitions published",
	})

	aiActionsExecuted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ai_actions_executed_total",
		Help: "Approved AI proposals materialized into forms",
	})

	snapshotCacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapshot_cache_hits_total",
		Help: "Snapshot lookups served from cache",
	})

	snapshotCacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapshot_cache_misses_total",
		Help: "Snapshot lookups that fell through to the database",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal,
		submissionsAccepted, submissionsRejected, formsPublished, aiActionsExecuted,
		snapshotCacheHits, snapshotCacheMisses, goroutines)

	return &MetricsService{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		submissionsAccepted: submissionsAccepted,
		submissionsRejected: submissionsRejected,
		formsPublished:      formsPublished,
		aiActionsExecuted:   aiActionsExecuted,
		snapshotCacheHits:   snapshotCacheHits,
		snapshotCacheMisses: snapshotCacheMisses,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// SubmissionAccepted increments the accepted-submission counter.
func (m *MetricsService) SubmissionAccepted() {
	if m != nil {
		m.submissionsAccepted.Inc()
	}
}

// SubmissionRejected increments the rejected-submission counter.
func (m *MetricsService) SubmissionRejected() {
	if m != nil {
		m.submissionsRejected.Inc()
	}
}

// FormPublished increments the published-form counter.
func (m *MetricsService) FormPublished() {
	if m != nil {
		m.formsPublished.Inc()
	}
}

// AIActionExecuted increments the executed-proposal counter.
func (m *MetricsService) AIActionExecuted() {
	if m != nil {
		m.aiActionsExecuted.Inc()
	}
}

// SnapshotCacheLookup records a snapshot cache hit or miss.
func (m *MetricsService) SnapshotCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.snapshotCacheHits.Inc()
	} else {
		m.snapshotCacheMisses.Inc()
	}
}
