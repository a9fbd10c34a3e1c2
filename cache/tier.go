package cache

import "fmt"

// Tier identifies one of the three cache tiers, ordered L1 < L2 < L3 by
// access speed descending and capacity ascending.
type Tier int

const (
	L1Memory Tier = iota
	L2Local
	L3Persistent
)

// String renders the tier's stable name, used in events and logs.
func (t Tier) String() string {
	switch t {
	case L1Memory:
		return "L1"
	case L2Local:
		return "L2"
	case L3Persistent:
		return "L3"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

const (
	// L1MaxObjectSize is the largest single object L1 will hold.
	L1MaxObjectSize = 100 * 1024 * 1024
	// L2MaxObjectSize is the largest single object L2 will hold.
	L2MaxObjectSize = 1024 * 1024 * 1024
	// L3MaxObjectSize is the largest single object L3 will hold; larger
	// objects bypass the cache entirely.
	L3MaxObjectSize = 10 * 1024 * 1024 * 1024
	// CacheBypassSize is an alias for L3MaxObjectSize used at the put
	// boundary, matching the spec's "cache bypass threshold" wording.
	CacheBypassSize = L3MaxObjectSize
)

// tierInfo is the static, per-tier metadata the size-placement policy and
// the manager's demotion/promotion cascade consult.
type tierInfo struct {
	maxObjectSize   int64
	demotionTarget  *Tier
	promotionTarget *Tier
	priority        int
}

func ptr(t Tier) *Tier { return &t }

var tierTable = map[Tier]tierInfo{
	L1Memory: {
		maxObjectSize:   L1MaxObjectSize,
		demotionTarget:  ptr(L2Local),
		promotionTarget: nil,
		priority:        0,
	},
	L2Local: {
		maxObjectSize:   L2MaxObjectSize,
		demotionTarget:  ptr(L3Persistent),
		promotionTarget: ptr(L1Memory),
		priority:        1,
	},
	L3Persistent: {
		maxObjectSize:   L3MaxObjectSize,
		demotionTarget:  nil,
		promotionTarget: ptr(L2Local),
		priority:        2,
	},
}

// MaxObjectSize returns the largest single object this tier will hold.
func (t Tier) MaxObjectSize() int64 { return tierTable[t].maxObjectSize }

// DemotionTarget returns the tier an evicted-but-retained entry moves to,
// or nil if this tier has no demotion target (L3).
func (t Tier) DemotionTarget() *Tier { return tierTable[t].demotionTarget }

// PromotionTarget returns the tier a hit may be copied up to, or nil if
// this tier has no promotion target (L1).
func (t Tier) PromotionTarget() *Tier { return tierTable[t].promotionTarget }

// Priority returns the tier's priority (0=fastest).
func (t Tier) Priority() int { return tierTable[t].priority }

// LookupOrder is the fixed order the manager searches tiers on a Get.
var LookupOrder = []Tier{L1Memory, L2Local, L3Persistent}

// SelectTier implements the size-based placement rule of spec §4.1.
// It returns ErrSizeExceeded when the object cannot be placed in any tier.
func SelectTier(size int64) (Tier, error) {
	switch {
	case size > L3MaxObjectSize:
		return 0, ErrSizeExceeded
	case size <= L1MaxObjectSize:
		return L1Memory, nil
	case size <= L2MaxObjectSize:
		return L2Local, nil
	default:
		return L3Persistent, nil
	}
}

// TierConfig is the per-tier capacity/compression/demotion policy the
// manager enforces.
type TierConfig struct {
	CapacityBytes          int64
	EvictionThreshold      float64 // in (0, 1]
	EnableDemotion         bool
	EnableCompression      bool
	TargetCompressionRatio float64
}

// EvictionWatermark is the byte threshold above which capacity
// maintenance triggers for this tier: floor(capacity * threshold).
func (c TierConfig) EvictionWatermark() int64 {
	return int64(float64(c.CapacityBytes) * c.EvictionThreshold)
}

// DefaultTierConfigs returns a reasonable default configuration for all
// three tiers: compression enabled on L2/L3 (not L1, where the CPU cost
// rarely pays for itself), demotion enabled everywhere it has a target.
func DefaultTierConfigs() map[Tier]TierConfig {
	return map[Tier]TierConfig{
		L1Memory: {
			CapacityBytes:     1 << 30, // 1 GiB
			EvictionThreshold: 0.9,
			EnableDemotion:    true,
			EnableCompression: false,
		},
		L2Local: {
			CapacityBytes:          10 << 30, // 10 GiB
			EvictionThreshold:      0.85,
			EnableDemotion:         true,
			EnableCompression:      true,
			TargetCompressionRatio: 0.5,
		},
		L3Persistent: {
			CapacityBytes:          100 << 30, // 100 GiB
			EvictionThreshold:      0.9,
			EnableDemotion:         false,
			EnableCompression:      true,
			TargetCompressionRatio: 0.5,
		},
	}
}
