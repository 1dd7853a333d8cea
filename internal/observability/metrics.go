package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the prometheus collector set shared across a scan. It
// generalizes the teacher's in-memory request/duration/token counters
// into real exported series, since Treliq runs as both a one-shot CLI
// and a long-lived server.
type Metrics struct {
	Registry *prometheus.Registry

	HostRequests     *prometheus.CounterVec
	HostErrors       *prometheus.CounterVec
	ProviderRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	ProviderCostUSD  *prometheus.CounterVec
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	ScanDuration     prometheus.Histogram
	ActionsExecuted  *prometheus.CounterVec
}

// NewMetrics registers and returns the full metric set.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		HostRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "treliq_host_requests_total",
			Help: "Requests made to the git-hosting API, labeled by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		HostErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "treliq_host_errors_total",
			Help: "Host API errors labeled by classification.",
		}, []string{"kind"}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "treliq_provider_requests_total",
			Help: "LLM provider calls labeled by provider and operation.",
		}, []string{"provider", "operation", "outcome"}),
		ProviderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "treliq_provider_latency_seconds",
			Help:    "LLM provider call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "operation"}),
		ProviderCostUSD: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "treliq_provider_cost_usd_total",
			Help: "Accumulated provider spend in USD.",
		}, []string{"provider"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "treliq_cache_hits_total",
			Help: "Items skipped because the cache fingerprint matched.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "treliq_cache_misses_total",
			Help: "Items re-scored because the cache fingerprint missed.",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "treliq_scan_duration_seconds",
			Help:    "End-to-end scan duration.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		ActionsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "treliq_actions_executed_total",
			Help: "Actions executed labeled by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}

	reg.MustRegister(
		m.HostRequests, m.HostErrors, m.ProviderRequests, m.ProviderLatency,
		m.ProviderCostUSD, m.CacheHits, m.CacheMisses, m.ScanDuration, m.ActionsExecuted,
	)
	return m
}
