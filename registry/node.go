// Package registry implements a 256-way sharded node registry tracking
// storage node status and per-drive metrics for the multi-tier cache's
// placement and health decisions.
package registry

import (
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/objectfs/storagecache/internal/crd"
	"github.com/objectfs/storagecache/internal/util"
)

// NodeID identifies a storage node, typically a Kubernetes object name
// or a stable UUID assigned by the node's bootstrap agent.
type NodeID string

// registryShardCount is the fixed shard width of the node registry.
// 256 gives enough parallelism for clusters well beyond any single
// shard becoming a hot spot under the registry's update-heavy workload
// (heartbeats and drive metric updates dominate over registrations).
const registryShardCount = 256

func (id NodeID) shardIndex() int {
	h := xxhash.Sum64String(string(id))
	return util.ShardIndex(h, registryShardCount)
}

// DriveMetrics is a cache-line-aligned block of atomic counters for one
// drive. Every field but LastUpdateMs is a relaxed atomic store;
// LastUpdateMs is stored last in each update so IsStale observes a
// value no newer than the metrics it gates.
type DriveMetrics struct {
	iops                  util.PaddedAtomicInt64
	throughputBps         util.PaddedAtomicInt64
	latencyUs99           util.PaddedAtomicInt64
	utilizationPermille   util.PaddedAtomicInt64
	temperatureDecidegrees util.PaddedAtomicInt64
	wearLevelPermille     util.PaddedAtomicInt64
	lastUpdateMs          util.PaddedAtomicInt64
}

// NewDriveMetrics returns a zeroed metrics block.
func NewDriveMetrics() *DriveMetrics { return &DriveMetrics{} }

// Update atomically replaces every field in the block with a fresh
// reading, in the order specified, then stores the update timestamp last.
func (m *DriveMetrics) Update(iops, throughputBps, latencyUs99P, utilizationPermille, temperatureDecidegrees, wearLevelPermille int64) {
	m.iops.Store(iops)
	m.throughputBps.Store(throughputBps)
	m.latencyUs99.Store(latencyUs99P)
	m.utilizationPermille.Store(utilizationPermille)
	m.temperatureDecidegrees.Store(temperatureDecidegrees)
	m.wearLevelPermille.Store(wearLevelPermille)
	m.lastUpdateMs.Store(time.Now().UnixMilli())
}

// DriveMetricsSnapshot is a point-in-time read of a DriveMetrics block.
type DriveMetricsSnapshot struct {
	IOPS                   int64
	ThroughputBps          int64
	LatencyUs99P           int64
	UtilizationPermille    int64
	TemperatureDecidegrees int64
	WearLevelPermille      int64
	LastUpdate             time.Time
}

// Snapshot reads every field in the block independently.
func (m *DriveMetrics) Snapshot() DriveMetricsSnapshot {
	return DriveMetricsSnapshot{
		IOPS:                   m.iops.Load(),
		ThroughputBps:          m.throughputBps.Load(),
		LatencyUs99P:           m.latencyUs99.Load(),
		UtilizationPermille:    m.utilizationPermille.Load(),
		TemperatureDecidegrees: m.temperatureDecidegrees.Load(),
		WearLevelPermille:      m.wearLevelPermille.Load(),
		LastUpdate:             time.UnixMilli(m.lastUpdateMs.Load()),
	}
}

// IsStale reports whether this block hasn't been updated within maxAge.
func (m *DriveMetrics) IsStale(maxAge time.Duration) bool {
	last := time.UnixMilli(m.lastUpdateMs.Load())
	return time.Since(last) > maxAge
}

// NodeEntry is the registry's per-node record: its last-reported status
// plus one DriveMetrics block per drive currently listed in that
// status. Invariant: the key set of DriveMetrics is always exactly the
// set of Status.Drives[*].ID after a call to UpdateStatus returns; a
// drive removed from Status is removed from DriveMetrics in the same
// call, and a newly listed drive gets a fresh zeroed block.
type NodeEntry struct {
	ID            NodeID
	Hostname      string
	Status        crd.StorageNodeStatus
	DriveMetrics  map[string]*DriveMetrics
	RegisteredAt  time.Time
	LastHeartbeat time.Time
	// Labels and FaultDomain are topology metadata reported alongside
	// status; the cache core never reads them.
	Labels      map[string]string
	FaultDomain string
}

func newNodeEntry(id NodeID, hostname string, status crd.StorageNodeStatus) *NodeEntry {
	now := time.Now()
	e := &NodeEntry{
		ID:            id,
		Hostname:      hostname,
		Status:        status,
		DriveMetrics:  make(map[string]*DriveMetrics, len(status.Drives)),
		RegisteredAt:  now,
		LastHeartbeat: now,
	}
	for _, d := range status.Drives {
		e.DriveMetrics[d.ID] = NewDriveMetrics()
	}
	return e
}

// applyStatus replaces e's status and reconciles DriveMetrics so its
// key set matches the new status's drives exactly.
func (e *NodeEntry) applyStatus(status crd.StorageNodeStatus) (added, removed []string) {
	e.Status = status
	seen := make(map[string]struct{}, len(status.Drives))
	for _, d := range status.Drives {
		seen[d.ID] = struct{}{}
		if _, ok := e.DriveMetrics[d.ID]; !ok {
			e.DriveMetrics[d.ID] = NewDriveMetrics()
			added = append(added, d.ID)
		}
	}
	for id := range e.DriveMetrics {
		if _, ok := seen[id]; !ok {
			delete(e.DriveMetrics, id)
			removed = append(removed, id)
		}
	}
	return added, removed
}
