package cache

import (
	"errors"
	"testing"
)

func TestSelectTierBoundaries(t *testing.T) {
	cases := []struct {
		size int64
		want Tier
	}{
		{0, L1Memory},
		{L1MaxObjectSize, L1Memory},
		{L1MaxObjectSize + 1, L2Local},
		{L2MaxObjectSize, L2Local},
		{L2MaxObjectSize + 1, L3Persistent},
		{L3MaxObjectSize, L3Persistent},
	}
	for _, c := range cases {
		got, err := SelectTier(c.size)
		if err != nil {
			t.Fatalf("SelectTier(%d): unexpected error %v", c.size, err)
		}
		if got != c.want {
			t.Errorf("SelectTier(%d) = %v, want %v", c.size, got, c.want)
		}
	}
}

func TestSelectTierBypassesOversized(t *testing.T) {
	_, err := SelectTier(L3MaxObjectSize + 1)
	if !errors.Is(err, ErrSizeExceeded) {
		t.Fatalf("expected ErrSizeExceeded, got %v", err)
	}
}

func TestTierConfigEvictionWatermark(t *testing.T) {
	cfg := TierConfig{CapacityBytes: 1000, EvictionThreshold: 0.9}
	if got, want := cfg.EvictionWatermark(), int64(900); got != want {
		t.Fatalf("EvictionWatermark() = %d, want %d", got, want)
	}
}

func TestDemotionAndPromotionTargets(t *testing.T) {
	if *L1Memory.DemotionTarget() != L2Local {
		t.Error("L1 should demote to L2")
	}
	if L1Memory.PromotionTarget() != nil {
		t.Error("L1 should have no promotion target")
	}
	if *L2Local.PromotionTarget() != L1Memory {
		t.Error("L2 should promote to L1")
	}
	if L3Persistent.DemotionTarget() != nil {
		t.Error("L3 should have no demotion target")
	}
}
