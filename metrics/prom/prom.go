// Package prom adapts the entity cache and load coordinator's observability
// hooks (boundedcache.Metrics, entitycache.Config.LoadWaitObserver) to
// Prometheus series.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/graphkit/entitycache/boundedcache"
)

// CacheAdapter implements boundedcache.Metrics and exports Prometheus
// counters/gauges for one BoundedCache instance, distinguished by the
// "cache" const label (e.g. "node" or "relationship").
type CacheAdapter struct {
	hits   prometheus.Counter
	misses prometheus.Counter
	evicts *prometheus.CounterVec
	size   prometheus.Gauge
}

// NewCacheAdapter constructs a Prometheus metrics adapter for one cache
// instance.
//   - reg:   registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub: Prometheus namespace and subsystem
//   - cache: which cache this adapter reports for ("node" or "relationship")
func NewCacheAdapter(reg prometheus.Registerer, ns, sub, cache string) *CacheAdapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	constLabels := prometheus.Labels{"cache": cache}
	a := &CacheAdapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Cache hits",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Cache misses",
			ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "evictions_total",
				Help:        "Cache evictions by reason",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Number of resident entries",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.size)
	return a
}

// Hit increments the hit counter.
func (a *CacheAdapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *CacheAdapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *CacheAdapter) Evict(r boundedcache.EvictReason) {
	a.evicts.WithLabelValues(reason(r)).Inc()
}

// Size updates the resident-entry gauge.
func (a *CacheAdapter) Size(entries int) {
	a.size.Set(float64(entries))
}

func reason(r boundedcache.EvictReason) string {
	switch r {
	case boundedcache.EvictCapacity:
		return "capacity"
	case boundedcache.EvictManual:
		return "manual"
	default:
		return "policy"
	}
}

// Compile-time check: ensure CacheAdapter implements boundedcache.Metrics.
var _ boundedcache.Metrics = (*CacheAdapter)(nil)

// LoadWaitHistogram times how long GetNodeOrNull/GetRelationshipOrNull spend
// inside their striped-lock-guarded load path, split by the "kind" label
// ("node" or "relationship") — this is what striped-lock contention and
// record-loader latency actually show up as.
type LoadWaitHistogram struct {
	hist *prometheus.HistogramVec
}

// NewLoadWaitHistogram constructs the histogram and registers it.
func NewLoadWaitHistogram(reg prometheus.Registerer, ns, sub string) *LoadWaitHistogram {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	h := &LoadWaitHistogram{
		hist: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "load_wait_seconds",
			Help:      "Time spent waiting on the striped load lock and, on a miss, the record loader",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	reg.MustRegister(h.hist)
	return h
}

// Observe matches entitycache.Config.LoadWaitObserver's signature.
func (h *LoadWaitHistogram) Observe(kind string, d time.Duration) {
	h.hist.WithLabelValues(kind).Observe(d.Seconds())
}
