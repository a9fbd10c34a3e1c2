package registry

import "github.com/objectfs/storagecache/internal/broadcast"

// MetricsAlertType classifies a DriveMetricsAlert event.
type MetricsAlertType int

const (
	HighTemperature MetricsAlertType = iota
	HighWearLevel
	HighLatency
	HighUtilization
	LowIops
)

func (t MetricsAlertType) String() string {
	switch t {
	case HighTemperature:
		return "high_temperature"
	case HighWearLevel:
		return "high_wear_level"
	case HighLatency:
		return "high_latency"
	case HighUtilization:
		return "high_utilization"
	case LowIops:
		return "low_iops"
	default:
		return "unknown"
	}
}

// EventKind discriminates the RegistryEvent union below.
type EventKind int

const (
	NodeRegistered EventKind = iota
	NodeDeregistered
	NodeUpdated
	NodeWentOffline
	NodeCameOnline
	DriveAdded
	DriveRemoved
	DriveHealthChanged
	DriveMetricsAlert
)

// RegistryEvent is a single broadcast event from the node registry.
// Only the fields relevant to Kind are populated.
type RegistryEvent struct {
	Kind EventKind
	Node NodeID

	// DriveAdded / DriveRemoved / DriveHealthChanged / DriveMetricsAlert
	DriveID string
	Healthy bool

	// DriveMetricsAlert
	Alert     MetricsAlertType
	Threshold int64
	Observed  int64
}

// Broadcaster wraps a broadcast.Bus[RegistryEvent] so the registry
// package doesn't expose the generic bus type directly to callers.
type Broadcaster struct {
	bus *broadcast.Bus[RegistryEvent]
}

// NewBroadcaster constructs a Broadcaster with the given per-subscriber buffer depth.
func NewBroadcaster(bufferSize int) *Broadcaster {
	return &Broadcaster{bus: broadcast.New[RegistryEvent](bufferSize)}
}

// Subscribe registers a new subscriber, returning its channel and an unsubscribe func.
func (b *Broadcaster) Subscribe() (<-chan RegistryEvent, func()) { return b.bus.Subscribe() }

func (b *Broadcaster) publish(ev RegistryEvent) { b.bus.Publish(ev) }
