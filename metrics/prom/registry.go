package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/objectfs/storagecache/registry"
)

// RegistryAdapter exports node-registry gauges and counters to
// Prometheus. Unlike CacheAdapter it has no push-side interface to
// implement — registry.NodeRegistry has no Metrics hook, so the
// adapter polls Stats()/ShardStats() and subscribes to the event bus
// for lifecycle and alert counters.
type RegistryAdapter struct {
	totalNodes    prometheus.Gauge
	onlineNodes   prometheus.Gauge
	totalDrives   prometheus.Gauge
	capacityBytes prometheus.Gauge
	availBytes    prometheus.Gauge
	registrations prometheus.Counter
	dereg         prometheus.Counter
	alerts        *prometheus.CounterVec
	shardContend  prometheus.Gauge
}

// NewRegistryAdapter constructs a Prometheus adapter for a NodeRegistry.
func NewRegistryAdapter(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *RegistryAdapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &RegistryAdapter{
		totalNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "nodes_total", Help: "Registered node count", ConstLabels: constLabels,
		}),
		onlineNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "nodes_online", Help: "Online node count", ConstLabels: constLabels,
		}),
		totalDrives: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "drives_total", Help: "Reported drive count", ConstLabels: constLabels,
		}),
		capacityBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "capacity_bytes", Help: "Total reported capacity", ConstLabels: constLabels,
		}),
		availBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "available_bytes", Help: "Total reported available capacity", ConstLabels: constLabels,
		}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "registrations_total", Help: "Cumulative node registrations", ConstLabels: constLabels,
		}),
		dereg: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "deregistrations_total", Help: "Cumulative node deregistrations", ConstLabels: constLabels,
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "drive_alerts_total", Help: "Drive metric threshold alerts by type", ConstLabels: constLabels,
		}, []string{"alert"}),
		shardContend: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "shard_contention_total", Help: "Summed write-lock contention across all shards", ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.totalNodes, a.onlineNodes, a.totalDrives, a.capacityBytes, a.availBytes,
		a.registrations, a.dereg, a.alerts, a.shardContend)
	return a
}

// Observe updates the gauge set from a point-in-time Stats snapshot.
func (a *RegistryAdapter) Observe(s registry.Stats) {
	a.totalNodes.Set(float64(s.TotalNodes))
	a.onlineNodes.Set(float64(s.OnlineNodes))
	a.totalDrives.Set(float64(s.TotalDrives))
	a.capacityBytes.Set(float64(s.TotalCapacityBytes))
	a.availBytes.Set(float64(s.AvailableCapacityBytes))
}

// ObserveShards sums per-shard write-lock contention into a single gauge.
func (a *RegistryAdapter) ObserveShards(snaps []registry.ShardSnapshot) {
	var total uint64
	for _, s := range snaps {
		total += s.ContentionCount
	}
	a.shardContend.Set(float64(total))
}

// Watch drains ev until it's closed (or the unsubscribe func passed by
// the caller is invoked from elsewhere), counting lifecycle and alert
// events. Intended to be run in its own goroutine for the lifetime of
// the registry.
func (a *RegistryAdapter) Watch(ev <-chan registry.RegistryEvent) {
	for e := range ev {
		switch e.Kind {
		case registry.NodeRegistered:
			a.registrations.Inc()
		case registry.NodeDeregistered:
			a.dereg.Inc()
		case registry.DriveMetricsAlert:
			a.alerts.WithLabelValues(e.Alert.String()).Inc()
		}
	}
}
