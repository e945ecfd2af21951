// Package metrics registers every Prometheus metric the pipeline emits.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service. Construct once in
// main and pass by reference; components treat a nil *Metrics as "metrics
// disabled" in tests.
type Metrics struct {
	providerCalls      *prometheus.CounterVec
	providerLatency    *prometheus.HistogramVec
	providerRetries    *prometheus.CounterVec
	providerRateLimit  *prometheus.CounterVec
	breakerTransitions *prometheus.CounterVec

	cacheHits      *prometheus.CounterVec
	cacheMisses    prometheus.Counter
	cacheEvictions prometheus.Counter

	mergeOutcomes *prometheus.CounterVec
	queryLatency  *prometheus.HistogramVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers on a caller-supplied registry so tests stay isolated.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		providerCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "venuehub_provider_calls_total",
			Help: "Provider calls by final outcome (success or error category)",
		}, []string{"provider", "outcome"}),
		providerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "venuehub_provider_call_duration_seconds",
			Help:    "Provider call latency including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		providerRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "venuehub_provider_retries_total",
			Help: "Transient provider failures that triggered a retry",
		}, []string{"provider"}),
		providerRateLimit: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "venuehub_provider_rate_limited_total",
			Help: "Calls rejected by the local sliding-window limiter",
		}, []string{"provider"}),
		breakerTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "venuehub_breaker_transitions_total",
			Help: "Circuit breaker transitions by resulting state",
		}, []string{"provider", "state"}),
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "venuehub_cache_hits_total",
			Help: "Cache hits by tier (memory or persistent)",
		}, []string{"tier"}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "venuehub_cache_misses_total",
			Help: "Cache lookups that missed both tiers",
		}),
		cacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "venuehub_cache_evictions_total",
			Help: "Memory-tier entries evicted under LRU pressure",
		}),
		mergeOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "venuehub_merge_outcomes_total",
			Help: "Normalization merges by outcome (merged or rejected)",
		}, []string{"outcome"}),
		queryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "venuehub_query_duration_seconds",
			Help:    "End to end aggregation query latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
	}
}

func (m *Metrics) ObserveProviderCall(provider, outcome string, elapsed time.Duration) {
	m.providerCalls.WithLabelValues(provider, outcome).Inc()
	m.providerLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (m *Metrics) IncRetries(provider string) {
	m.providerRetries.WithLabelValues(provider).Inc()
}

func (m *Metrics) IncRateLimited(provider string) {
	m.providerRateLimit.WithLabelValues(provider).Inc()
}

func (m *Metrics) IncBreakerTransition(provider, state string) {
	m.breakerTransitions.WithLabelValues(provider, state).Inc()
}

func (m *Metrics) IncCacheHit(tier string) {
	m.cacheHits.WithLabelValues(tier).Inc()
}

func (m *Metrics) IncCacheMiss() {
	m.cacheMisses.Inc()
}

func (m *Metrics) IncCacheEviction() {
	m.cacheEvictions.Inc()
}

func (m *Metrics) IncMergeOutcome(outcome string) {
	m.mergeOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveQuery(operation string, elapsed time.Duration) {
	m.queryLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}
