// Package prom adapts the cache and registry packages' observability
// hooks to Prometheus collectors.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/objectfs/storagecache/cache"
)

// CacheAdapter implements cache.Metrics and exports per-tier
// hit/miss/eviction counters plus gauges fed from periodic
// StatsSnapshot scrapes. Safe for concurrent use; all Prometheus
// metric types are goroutine-safe.
type CacheAdapter struct {
	hits       *prometheus.CounterVec
	misses     *prometheus.CounterVec
	evicts     *prometheus.CounterVec
	entryCount *prometheus.GaugeVec
	bytesUsed  *prometheus.GaugeVec
}

// NewCacheAdapter constructs a Prometheus metrics adapter for a
// MultiTierCache.
//   - reg:         registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func NewCacheAdapter(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *CacheAdapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &CacheAdapter{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Cache hits by tier",
			ConstLabels: constLabels,
		}, []string{"tier"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Cache misses by tier",
			ConstLabels: constLabels,
		}, []string{"tier"}),
		evicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "evictions_total",
			Help:        "Cache evictions by tier and reason",
			ConstLabels: constLabels,
		}, []string{"tier", "reason"}),
		entryCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "entries",
			Help:        "Resident entry count by tier",
			ConstLabels: constLabels,
		}, []string{"tier"}),
		bytesUsed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "bytes_used",
			Help:        "Resident bytes by tier",
			ConstLabels: constLabels,
		}, []string{"tier"}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.entryCount, a.bytesUsed)
	return a
}

// Hit implements cache.Metrics.
func (a *CacheAdapter) Hit(tier cache.Tier) { a.hits.WithLabelValues(tier.String()).Inc() }

// Miss implements cache.Metrics.
func (a *CacheAdapter) Miss(tier cache.Tier) { a.misses.WithLabelValues(tier.String()).Inc() }

// Evict implements cache.Metrics.
func (a *CacheAdapter) Evict(tier cache.Tier, reason cache.EvictReason) {
	a.evicts.WithLabelValues(tier.String(), reason.String()).Inc()
}

// Observe updates the gauge vectors from a StatsSnapshot, typically
// called from a periodic scrape loop alongside the push-based
// Hit/Miss/Evict counters.
func (a *CacheAdapter) Observe(snap cache.StatsSnapshot) {
	for tier, ts := range snap.PerTier {
		label := tier.String()
		a.entryCount.WithLabelValues(label).Set(float64(ts.EntryCount))
		a.bytesUsed.WithLabelValues(label).Set(float64(ts.BytesStored))
	}
}

var _ cache.Metrics = (*CacheAdapter)(nil)
