package registry

import (
	"errors"
	"time"

	"github.com/objectfs/storagecache/internal/crd"
)

// Sentinel errors returned at the registry's external boundary.
var (
	ErrNodeNotFound   = errors.New("registry: node not found")
	ErrNodeExists     = errors.New("registry: node already registered")
	ErrDriveNotFound  = errors.New("registry: drive not found on node")
)

// Alert thresholds applied by UpdateDriveMetrics. These mirror typical
// NVMe/SATA operating ranges; a deployment wanting different bounds
// wraps NodeRegistry rather than reconfiguring these constants, since
// the spec ties them to the DriveMetricsAlert event taxonomy directly.
const (
	highTemperatureDecidegrees = 700 // 70.0 C
	highWearLevelPermille      = 900 // 90.0%
	highLatencyUs              = 50_000
	highUtilizationPermille    = 950 // 95.0%
	lowIopsThreshold           = 10
)

// NodeRegistry is a 256-way sharded registry of storage node status and
// drive metrics. All methods are safe for concurrent use.
type NodeRegistry struct {
	shards [registryShardCount]*shard
	stats  globalStats
	events *Broadcaster
}

// New constructs an empty registry. eventBufferSize configures the
// per-subscriber broadcast buffer depth (see internal/broadcast).
func New(eventBufferSize int) *NodeRegistry {
	r := &NodeRegistry{events: NewBroadcaster(eventBufferSize)}
	for i := range r.shards {
		r.shards[i] = newShard()
	}
	return r
}

// Events subscribes to the registry's broadcast bus.
func (r *NodeRegistry) Events() (<-chan RegistryEvent, func()) { return r.events.Subscribe() }

func (r *NodeRegistry) shardFor(id NodeID) *shard { return r.shards[id.shardIndex()] }

// Register adds a new node. Returns ErrNodeExists if id is already registered.
func (r *NodeRegistry) Register(id NodeID, hostname string, status crd.StorageNodeStatus) error {
	s := r.shardFor(id)
	s.lockForWrite()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; ok {
		return ErrNodeExists
	}
	s.nodes[id] = newNodeEntry(id, hostname, status)
	s.nodeCount.Add(1)
	s.updates.Add(1)
	r.stats.registrations.Add(1)

	r.events.publish(RegistryEvent{Kind: NodeRegistered, Node: id})
	if status.Online {
		r.events.publish(RegistryEvent{Kind: NodeCameOnline, Node: id})
	}
	for _, d := range status.Drives {
		r.events.publish(RegistryEvent{Kind: DriveAdded, Node: id, DriveID: d.ID, Healthy: d.Healthy})
	}
	return nil
}

// Deregister removes a node entirely. Returns ErrNodeNotFound if absent.
func (r *NodeRegistry) Deregister(id NodeID) error {
	s := r.shardFor(id)
	s.lockForWrite()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return ErrNodeNotFound
	}
	delete(s.nodes, id)
	s.nodeCount.Add(-1)
	s.updates.Add(1)
	r.stats.deregistrations.Add(1)

	r.events.publish(RegistryEvent{Kind: NodeDeregistered, Node: id})
	return nil
}

// UpdateStatus replaces a node's reported status, reconciling its
// DriveMetrics key set to match status.Drives exactly and emitting
// DriveAdded/DriveRemoved and NodeWentOffline/NodeCameOnline events for
// any transition this call causes.
func (r *NodeRegistry) UpdateStatus(id NodeID, status crd.StorageNodeStatus) error {
	s := r.shardFor(id)
	s.lockForWrite()

	entry, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return ErrNodeNotFound
	}
	wasOnline := entry.Status.Online
	healthBefore := make(map[string]bool, len(entry.Status.Drives))
	for _, d := range entry.Status.Drives {
		healthBefore[d.ID] = d.Healthy
	}

	added, removed := entry.applyStatus(status)
	entry.LastHeartbeat = time.Now()
	s.updates.Add(1)
	s.mu.Unlock()

	r.events.publish(RegistryEvent{Kind: NodeUpdated, Node: id})
	for _, id2 := range added {
		r.events.publish(RegistryEvent{Kind: DriveAdded, Node: id, DriveID: id2})
	}
	for _, id2 := range removed {
		r.events.publish(RegistryEvent{Kind: DriveRemoved, Node: id, DriveID: id2})
	}
	for _, d := range status.Drives {
		if before, ok := healthBefore[d.ID]; ok && before != d.Healthy {
			r.events.publish(RegistryEvent{Kind: DriveHealthChanged, Node: id, DriveID: d.ID, Healthy: d.Healthy})
		}
	}
	if !wasOnline && status.Online {
		r.events.publish(RegistryEvent{Kind: NodeCameOnline, Node: id})
	} else if wasOnline && !status.Online {
		r.events.publish(RegistryEvent{Kind: NodeWentOffline, Node: id})
	}
	return nil
}

// SetLabels replaces a node's topology labels. Labels are opaque to the
// registry; the cache core never reads them.
func (r *NodeRegistry) SetLabels(id NodeID, labels map[string]string) error {
	s := r.shardFor(id)
	s.lockForWrite()
	defer s.mu.Unlock()

	entry, ok := s.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	entry.Labels = labels
	s.updates.Add(1)
	return nil
}

// SetFaultDomain sets a node's fault-domain tag (rack/zone/region).
func (r *NodeRegistry) SetFaultDomain(id NodeID, domain string) error {
	s := r.shardFor(id)
	s.lockForWrite()
	defer s.mu.Unlock()

	entry, ok := s.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	entry.FaultDomain = domain
	s.updates.Add(1)
	return nil
}

// Heartbeat refreshes a node's LastHeartbeat without altering the rest
// of its status. A heartbeat from a node previously marked offline
// (e.g. by MarkStaleOffline) revives it, flipping Online back to true
// and emitting NodeCameOnline.
func (r *NodeRegistry) Heartbeat(id NodeID) error {
	s := r.shardFor(id)
	s.lockForWrite()

	entry, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return ErrNodeNotFound
	}
	entry.LastHeartbeat = time.Now()
	wasOnline := entry.Status.Online
	entry.Status.Online = true
	s.updates.Add(1)
	s.mu.Unlock()

	if !wasOnline {
		r.events.publish(RegistryEvent{Kind: NodeCameOnline, Node: id})
	}
	return nil
}

// UpdateDriveMetrics records a fresh metrics reading for one drive on
// one node, and emits DriveMetricsAlert for any threshold crossed.
func (r *NodeRegistry) UpdateDriveMetrics(id NodeID, driveID string, iops, throughputBps, latencyUs99P, utilizationPermille, temperatureDecidegrees, wearLevelPermille int64) error {
	s := r.shardFor(id)
	s.mu.RLock()
	entry, ok := s.nodes[id]
	var dm *DriveMetrics
	if ok {
		dm, ok = entry.DriveMetrics[driveID]
	}
	s.mu.RUnlock()
	if entry == nil {
		return ErrNodeNotFound
	}
	if !ok || dm == nil {
		return ErrDriveNotFound
	}

	dm.Update(iops, throughputBps, latencyUs99P, utilizationPermille, temperatureDecidegrees, wearLevelPermille)
	s.updates.Add(1)

	if temperatureDecidegrees >= highTemperatureDecidegrees {
		r.events.publish(RegistryEvent{Kind: DriveMetricsAlert, Node: id, DriveID: driveID, Alert: HighTemperature, Threshold: highTemperatureDecidegrees, Observed: temperatureDecidegrees})
	}
	if wearLevelPermille >= highWearLevelPermille {
		r.events.publish(RegistryEvent{Kind: DriveMetricsAlert, Node: id, DriveID: driveID, Alert: HighWearLevel, Threshold: highWearLevelPermille, Observed: wearLevelPermille})
	}
	if latencyUs99P >= highLatencyUs {
		r.events.publish(RegistryEvent{Kind: DriveMetricsAlert, Node: id, DriveID: driveID, Alert: HighLatency, Threshold: highLatencyUs, Observed: latencyUs99P})
	}
	if utilizationPermille >= highUtilizationPermille {
		r.events.publish(RegistryEvent{Kind: DriveMetricsAlert, Node: id, DriveID: driveID, Alert: HighUtilization, Threshold: highUtilizationPermille, Observed: utilizationPermille})
	}
	if iops <= lowIopsThreshold {
		r.events.publish(RegistryEvent{Kind: DriveMetricsAlert, Node: id, DriveID: driveID, Alert: LowIops, Threshold: lowIopsThreshold, Observed: iops})
	}
	return nil
}

// Get returns a copy of a node's entry, or ErrNodeNotFound.
func (r *NodeRegistry) Get(id NodeID) (*NodeEntry, error) {
	s := r.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	cp := *entry
	cp.DriveMetrics = make(map[string]*DriveMetrics, len(entry.DriveMetrics))
	for k, v := range entry.DriveMetrics {
		cp.DriveMetrics[k] = v
	}
	if entry.Labels != nil {
		cp.Labels = make(map[string]string, len(entry.Labels))
		for k, v := range entry.Labels {
			cp.Labels[k] = v
		}
	}
	return &cp, nil
}

// GetDriveMetrics returns a snapshot of one drive's metrics block.
func (r *NodeRegistry) GetDriveMetrics(id NodeID, driveID string) (DriveMetricsSnapshot, error) {
	s := r.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.nodes[id]
	if !ok {
		return DriveMetricsSnapshot{}, ErrNodeNotFound
	}
	dm, ok := entry.DriveMetrics[driveID]
	if !ok {
		return DriveMetricsSnapshot{}, ErrDriveNotFound
	}
	return dm.Snapshot(), nil
}

// AllNodeIDs returns every registered node ID, across all shards.
func (r *NodeRegistry) AllNodeIDs() []NodeID {
	var out []NodeID
	for _, s := range r.shards {
		s.mu.RLock()
		for id := range s.nodes {
			out = append(out, id)
		}
		s.mu.RUnlock()
	}
	return out
}

// OnlineNodeIDs returns every registered node ID whose last-reported
// status had Online set.
func (r *NodeRegistry) OnlineNodeIDs() []NodeID {
	var out []NodeID
	for _, s := range r.shards {
		s.mu.RLock()
		for id, entry := range s.nodes {
			if entry.Status.Online {
				out = append(out, id)
			}
		}
		s.mu.RUnlock()
	}
	return out
}

// MarkStaleOffline scans every node and marks offline any whose
// LastHeartbeat exceeds maxAge, emitting NodeWentOffline for each
// transition. Returns the node IDs it marked offline.
func (r *NodeRegistry) MarkStaleOffline(maxAge time.Duration) []NodeID {
	var marked []NodeID
	now := time.Now()
	for _, s := range r.shards {
		s.mu.Lock()
		for id, entry := range s.nodes {
			if entry.Status.Online && now.Sub(entry.LastHeartbeat) > maxAge {
				entry.Status.Online = false
				marked = append(marked, id)
			}
		}
		s.mu.Unlock()
	}
	for _, id := range marked {
		r.events.publish(RegistryEvent{Kind: NodeWentOffline, Node: id})
	}
	return marked
}

// ShardStats returns per-shard occupancy/activity counters, useful for
// diagnosing an unbalanced hash distribution.
func (r *NodeRegistry) ShardStats() []ShardSnapshot {
	out := make([]ShardSnapshot, len(r.shards))
	for i, s := range r.shards {
		out[i] = s.snapshot()
	}
	return out
}

// Stats returns a global snapshot of the registry.
func (r *NodeRegistry) Stats() Stats {
	var st Stats
	for _, s := range r.shards {
		s.mu.RLock()
		for _, entry := range s.nodes {
			st.TotalNodes++
			if entry.Status.Online {
				st.OnlineNodes++
			}
			st.TotalDrives += len(entry.Status.Drives)
			st.TotalCapacityBytes += entry.Status.TotalCapacityBytes
			st.AvailableCapacityBytes += entry.Status.AvailableBytes
		}
		s.mu.RUnlock()
	}
	st.Registrations = r.stats.registrations.Load()
	st.Deregistrations = r.stats.deregistrations.Load()
	return st
}
