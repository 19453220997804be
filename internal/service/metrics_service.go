package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry             *prometheus.Registry
	handler              http.Handler
	requestDuration      *prometheus.HistogramVec
	requestTotal         *prometheus.CounterVec
	cacheLatency         prometheus.Observer
	cacheHits            prometheus.Counter
	cacheMisses          prometheus.Counter
	approvalActions      *prometheus.CounterVec
	submissions          *prometheus.CounterVec
	staleRetries         prometheus.Counter
	notificationFailures *prometheus.CounterVec
	directoryFallbacks   *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
	requestCount   uint64
	actionCount    uint64
}

// MetricsSnapshot is a point-in-time summary of the counters above.
type MetricsSnapshot struct {
	RequestsTotal   uint64    `json:"requests_total"`
	ApprovalActions uint64    `json:"approval_actions"`
	CacheHits       uint64    `json:"cache_hits"`
	CacheMisses     uint64    `json:"cache_misses"`
	Goroutines      int       `json:"goroutines"`
	GeneratedAt     time.Time `json:"generated_at"`
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	approvalActions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leave_approval_actions_total",
		Help: "Approval actions by action and outcome",
	}, []string{"action", "outcome"})

	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leave_submissions_total",
		Help: "Leave submissions by requester role and outcome",
	}, []string{"role", "outcome"})

	staleRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leave_stale_write_retries_total",
		Help: "Approval writes retried after a concurrent modification",
	})

	notificationFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leave_notification_failures_total",
		Help: "Notification deliveries that failed, by sink",
	}, []string{"sink"})

	directoryFallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "directory_fallbacks_total",
		Help: "Directory loads served from a fallback source",
	}, []string{"source"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses,
		approvalActions, submissions, staleRetries, notificationFailures, directoryFallbacks, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:             registry,
		handler:              handler,
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		cacheLatency:         cacheLatency,
		cacheHits:            cacheHits,
		cacheMisses:          cacheMisses,
		approvalActions:      approvalActions,
		submissions:          submissions,
		staleRetries:         staleRetries,
		notificationFailures: notificationFailures,
		directoryFallbacks:   directoryFallbacks,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.cacheMisses.Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// RecordApprovalAction counts an approve or reject attempt and its outcome.
func (m *MetricsService) RecordApprovalAction(action, outcome string) {
	if m == nil {
		return
	}
	m.approvalActions.WithLabelValues(action, outcome).Inc()
	atomic.AddUint64(&m.actionCount, 1)
}

// RecordSubmission counts a submission attempt.
func (m *MetricsService) RecordSubmission(role, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(role, outcome).Inc()
}

// RecordStaleRetry counts a write that lost an optimistic concurrency race.
func (m *MetricsService) RecordStaleRetry() {
	if m == nil {
		return
	}
	m.staleRetries.Inc()
}

// RecordNotificationFailure counts a failed delivery to the named sink.
func (m *MetricsService) RecordNotificationFailure(sink string) {
	if m == nil {
		return
	}
	m.notificationFailures.WithLabelValues(sink).Inc()
}

// RecordDirectoryFallback counts directory loads served from cache or built-in defaults.
func (m *MetricsService) RecordDirectoryFallback(source string) {
	if m == nil {
		return
	}
	m.directoryFallbacks.WithLabelValues(source).Inc()
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		RequestsTotal:   atomic.LoadUint64(&m.requestCount),
		ApprovalActions: atomic.LoadUint64(&m.actionCount),
		CacheHits:       atomic.LoadUint64(&m.cacheHitCount),
		CacheMisses:     atomic.LoadUint64(&m.cacheMissCount),
		Goroutines:      runtime.NumGoroutine(),
		GeneratedAt:     time.Now().UTC(),
	}
}
