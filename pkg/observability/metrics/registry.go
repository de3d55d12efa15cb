// Package metrics provides Prometheus metrics for the polyglot orchestration layer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry manages Prometheus metrics registration and exposure for the
// orchestration layer. It tracks domain operation latency, the outcome of
// secondary (best-effort) steps per store, cache effectiveness, and the
// reconciliation outbox.
type Registry struct {
	registry *prometheus.Registry

	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec
	secondaryFailures *prometheus.CounterVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	outboxDepth       prometheus.Gauge
	outboxRetries     *prometheus.CounterVec
}

// NewRegistry creates a metrics registry with the orchestration metrics and
// default Go runtime collectors registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "connecthub_operation_duration_seconds",
				Help:    "Duration of orchestrated domain operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		operationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connecthub_operation_errors_total",
				Help: "Total number of domain operations that failed on their primary step",
			},
			[]string{"operation"},
		),
		secondaryFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connecthub_secondary_step_failures_total",
				Help: "Total number of contained secondary-step failures by store and operation",
			},
			[]string{"store", "operation"},
		),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "connecthub_cache_hits_total",
			Help: "Total number of cache hits on read paths",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "connecthub_cache_misses_total",
			Help: "Total number of cache misses on read paths",
		}),
		outboxDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "connecthub_outbox_depth",
			Help: "Current number of pending secondary-step records in the reconciliation outbox",
		}),
		outboxRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connecthub_outbox_retries_total",
				Help: "Total number of outbox retry attempts by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		r.operationDuration,
		r.operationErrors,
		r.secondaryFailures,
		r.cacheHits,
		r.cacheMisses,
		r.outboxDepth,
		r.outboxRetries,
	)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return r
}

// ObserveOperation records the duration of a domain operation.
func (r *Registry) ObserveOperation(operation string, d time.Duration) {
	r.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordOperationError counts a primary-step failure for an operation.
func (r *Registry) RecordOperationError(operation string) {
	r.operationErrors.WithLabelValues(operation).Inc()
}

// RecordSecondaryFailure counts a contained secondary-step failure.
func (r *Registry) RecordSecondaryFailure(store, operation string) {
	r.secondaryFailures.WithLabelValues(store, operation).Inc()
}

// RecordCacheHit counts a cache hit on a read path.
func (r *Registry) RecordCacheHit() {
	r.cacheHits.Inc()
}

// RecordCacheMiss counts a cache miss on a read path.
func (r *Registry) RecordCacheMiss() {
	r.cacheMisses.Inc()
}

// SetOutboxDepth records the current reconciliation outbox depth.
func (r *Registry) SetOutboxDepth(depth int) {
	r.outboxDepth.Set(float64(depth))
}

// RecordOutboxRetry counts an outbox retry attempt with its result
// ("success", "failure" or "dropped").
func (r *Registry) RecordOutboxRetry(result string) {
	r.outboxRetries.WithLabelValues(result).Inc()
}

// Register registers a custom Prometheus collector.
func (r *Registry) Register(collector prometheus.Collector) error {
	return r.registry.Register(collector)
}

// Handler returns an HTTP handler that exposes metrics in Prometheus format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Gatherer returns the underlying prometheus.Gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
