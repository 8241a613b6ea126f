package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for ProviderRequests
const (
	OutcomeOK          = "ok"
	OutcomeEmpty       = "empty"
	OutcomeUnavailable = "unavailable"
	OutcomeSchema      = "schema_mismatch"
	OutcomeUnsupported = "unsupported"
)

var (
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coin_analyze_provider_requests_total",
		Help: "Provider queries by provider, query kind and outcome",
	}, []string{"provider", "kind", "outcome"})

	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coin_analyze_provider_latency_seconds",
		Help:    "Latency of provider queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "kind"})

	Fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coin_analyze_fallbacks_total",
		Help: "Assets served by a provider other than the first in the list",
	}, []string{"provider"})

	AssetsWithoutData = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coin_analyze_assets_without_data_total",
		Help: "Assets for which every provider was exhausted",
	})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coin_analyze_run_duration_seconds",
		Help:    "Duration of complete pipeline runs",
		Buckets: prometheus.DefBuckets,
	})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coin_analyze_cache_lookups_total",
		Help: "Provider response cache lookups by result",
	}, []string{"result"})
)
