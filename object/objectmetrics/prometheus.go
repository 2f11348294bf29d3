// Package objectmetrics exports provider cache activity as prometheus
// counters.
package objectmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cachemesh/objprovider/object/objectprovider"
)

// PromCacheMetrics implements objectprovider.CacheMetrics on top of a
// prometheus registerer. One instance can serve every provider in the process;
// series are labeled by object type and index.
type PromCacheMetrics struct {
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	negatives *prometheus.CounterVec
	loads     *prometheus.CounterVec
	clears    *prometheus.CounterVec
}

func NewPromCacheMetrics(reg prometheus.Registerer) (*PromCacheMetrics, error) {
	m := &PromCacheMetrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "objprovider_cache_hits_total",
			Help: "Cache lookups answered from memory.",
		}, []string{"object_type", "index"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "objprovider_cache_misses_total",
			Help: "Cache lookups that fell through to the store.",
		}, []string{"object_type", "index"}),
		negatives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "objprovider_cache_negative_hits_total",
			Help: "Cache lookups answered by a confirmed-absent sentinel.",
		}, []string{"object_type", "index"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "objprovider_cache_loads_total",
			Help: "Full cache populations per object type.",
		}, []string{"object_type"}),
		clears: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "objprovider_cache_clears_total",
			Help: "Whole-cache invalidations per object type.",
		}, []string{"object_type"}),
	}
	for _, c := range []prometheus.Collector{m.hits, m.misses, m.negatives, m.loads, m.clears} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PromCacheMetrics) CacheHit(objectType, index string) {
	m.hits.WithLabelValues(objectType, index).Inc()
}

func (m *PromCacheMetrics) CacheMiss(objectType, index string) {
	m.misses.WithLabelValues(objectType, index).Inc()
}

func (m *PromCacheMetrics) NegativeHit(objectType, index string) {
	m.negatives.WithLabelValues(objectType, index).Inc()
}

func (m *PromCacheMetrics) CacheLoad(objectType string) {
	m.loads.WithLabelValues(objectType).Inc()
}

func (m *PromCacheMetrics) CacheClear(objectType string) {
	m.clears.WithLabelValues(objectType).Inc()
}

var _ objectprovider.CacheMetrics = new(PromCacheMetrics)
