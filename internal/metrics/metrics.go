// Package metrics defines the routing engine's Prometheus
// instrumentation: quote latency, cache effectiveness, pathfinder
// fan-out, and graph freshness.
//
// The registration shape is grounded on defistate-client-go's
// differ/differ.go StateDifferConfig: a prometheus.Registerer is
// injected by the caller (never a package-level global registry), a
// constructor registers every collector once up front, and callers
// record durations on the exported collectors themselves (the router
// observes time.Since of each quote on QuoteLatency).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the routing engine exports. Fields
// are exported so callers can use prometheus.NewTimer(m.QuoteLatency)
// directly at call sites.
type Metrics struct {
	QuoteLatency         prometheus.Histogram
	QuoteErrors          *prometheus.CounterVec
	CacheHits            prometheus.Counter
	CacheMisses          prometheus.Counter
	CacheEvictions       prometheus.Counter
	PathsEnumerated      prometheus.Histogram
	RoutesEvaluated      prometheus.Histogram
	GraphTokenCount       prometheus.Gauge
	GraphPoolCount        prometheus.Gauge
	GraphLastUpdateSeconds prometheus.Gauge
}

// New registers every collector against reg and returns the bundle. reg
// must not be nil — StateDifferConfig.validate() rejects a nil
// Registry the same way, rather than silently falling back to the
// default global registry.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, errNilRegistry
	}

	m := &Metrics{
		QuoteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_latency_seconds",
			Help:      "Time to serve a /quote request end to end.",
			Buckets:   prometheus.DefBuckets,
		}),
		QuoteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_errors_total",
			Help:      "Quote requests that failed, labeled by failure reason.",
		}, []string{"reason"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Quote cache lookups that found a live entry.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Quote cache lookups that found no live entry.",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Quote cache entries evicted for exceeding capacity.",
		}),
		PathsEnumerated: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "paths_enumerated",
			Help:      "Candidate paths returned by the pathfinder per request.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
		RoutesEvaluated: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "routes_evaluated",
			Help:      "Candidate routes that survived simulation per request.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
		GraphTokenCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_token_count",
			Help:      "Number of tokens currently present in the pool graph.",
		}),
		GraphPoolCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_pool_count",
			Help:      "Number of pools currently present in the pool graph.",
		}),
		GraphLastUpdateSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_last_update_unix_seconds",
			Help:      "Unix timestamp of the last applied pool graph snapshot.",
		}),
	}

	collectors := []prometheus.Collector{
		m.QuoteLatency, m.QuoteErrors, m.CacheHits, m.CacheMisses, m.CacheEvictions,
		m.PathsEnumerated, m.RoutesEvaluated,
		m.GraphTokenCount, m.GraphPoolCount, m.GraphLastUpdateSeconds,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

const namespace = "routing_engine"

var errNilRegistry = registryError("metrics: registry must not be nil")

type registryError string

func (e registryError) Error() string { return string(e) }
