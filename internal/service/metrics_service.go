package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/clinic-scheduler-api/internal/scheduler"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer,
// the booking committer, the optimizer and the cache.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	commits         *prometheus.CounterVec
	lockWait        prometheus.Histogram
	candidates      prometheus.Histogram
	optimizerRuns   *prometheus.CounterVec
	optimizerMoves  prometheus.Counter
	cacheLookups    *prometheus.CounterVec
	auditDelivered  *prometheus.CounterVec
	indexSize       *prometheus.GaugeVec
}

var _ scheduler.CommitObserver = (*MetricsService)(nil)

// NewMetricsService registers the collectors on a private registry.
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

	commits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_commits_total",
		Help: "Booking commits by outcome",
	}, []string{"outcome"})

	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_lock_wait_seconds",
		Help:    "Time spent waiting for a provider lock",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2.5, 5},
	})

	candidates := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_slot_candidates",
		Help:    "Scored candidates per slot search",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	optimizerRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "optimizer_runs_total",
		Help: "Optimizer runs by trigger",
	}, []string{"trigger"})

	optimizerMoves := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "optimizer_moves_applied_total",
		Help: "Proposal moves committed",
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	auditDelivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_events_total",
		Help: "Audit events by delivery result",
	}, []string{"result"})

	indexSize := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scheduler_index_bookings",
		Help: "Committed bookings held in the conflict index",
	}, []string{"provider_id"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, commits, lockWait, candidates, optimizerRuns,
		optimizerMoves, cacheLookups, auditDelivered, indexSize, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		commits:         commits,
		lockWait:        lockWait,
		candidates:      candidates,
		optimizerRuns:   optimizerRuns,
		optimizerMoves:  optimizerMoves,
		cacheLookups:    cacheLookups,
		auditDelivered:  auditDelivered,
		indexSize:       indexSize,
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

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
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

// ObserveLockWait implements scheduler.CommitObserver.
func (m *MetricsService) ObserveLockWait(wait time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(wait.Seconds())
}

// ObserveCommit implements scheduler.CommitObserver.
func (m *MetricsService) ObserveCommit(outcome string) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(outcome).Inc()
}

// ObserveCandidates records how many candidates a slot search scored.
func (m *MetricsService) ObserveCandidates(n int) {
	if m == nil {
		return
	}
	m.candidates.Observe(float64(n))
}

// RecordOptimizerRun counts optimizer runs by trigger (api, cron, cli).
func (m *MetricsService) RecordOptimizerRun(trigger string) {
	if m == nil {
		return
	}
	m.optimizerRuns.WithLabelValues(trigger).Inc()
}

// RecordMovesApplied counts committed proposal moves.
func (m *MetricsService) RecordMovesApplied(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.optimizerMoves.Add(float64(n))
}

// RecordCacheLookup records a cache hit or miss.
func (m *MetricsService) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RecordAudit records an audit delivery result.
func (m *MetricsService) RecordAudit(result string) {
	if m == nil {
		return
	}
	m.auditDelivered.WithLabelValues(result).Inc()
}

// SetIndexSize publishes the number of committed bookings of a provider.
func (m *MetricsService) SetIndexSize(providerID string, n int) {
	if m == nil {
		return
	}
	m.indexSize.WithLabelValues(providerID).Set(float64(n))
}
