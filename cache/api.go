package cache

import (
	"context"
	"time"
)

// Cache is the external interface to a multi-tier cache. All methods
// are safe for concurrent use by multiple goroutines.
type Cache interface {
	// Get returns the decompressed payload for key, searching tiers in
	// LookupOrder. A hit below L1 is promoted to its tier's promotion
	// target on a best-effort basis: promotion failure never fails Get.
	Get(ctx context.Context, key Key) (*Data, error)

	// Put stores data at the tier SelectTier chooses for its size, with
	// no expiry. Returns ErrSizeExceeded if the payload exceeds CacheBypassSize.
	Put(ctx context.Context, key Key, data *Data) error

	// PutWithTTL behaves like Put but expires the entry once its age
	// exceeds ttl; a zero ttl means no expiry (equivalent to Put).
	PutWithTTL(ctx context.Context, key Key, data *Data, ttl time.Duration) error

	// PutWithTier stores data at an explicit tier, bypassing size-based
	// placement. Returns ErrObjectTooLargeForTier if data exceeds that
	// tier's MaxObjectSize.
	PutWithTier(ctx context.Context, key Key, data *Data, tier Tier) error

	// Delete removes key from every tier it's resident in.
	Delete(ctx context.Context, key Key) error

	// Prefetch submits a batch prefetch request; it returns immediately.
	// Completion shows up only in the Prefetch counters of Stats; no
	// EventPrefetchComplete event is published.
	Prefetch(req PrefetchRequest)

	// Evict runs one round of capacity maintenance against tier,
	// evicting (and, if enabled, demoting) entries until the tier is at
	// or under its eviction watermark. Returns the number of entries
	// and bytes removed.
	Evict(ctx context.Context, tier Tier) (entries int, bytesFreed int64, err error)

	// ClearTier removes every entry from tier and resets its live
	// occupancy counters.
	ClearTier(ctx context.Context, tier Tier) error

	// ClearAll clears every tier.
	ClearAll(ctx context.Context) error

	// Stats returns a point-in-time snapshot of all cache counters.
	Stats() StatsSnapshot

	// HealthCheck reports the health of every tier backend, returning a
	// map of tier to error (nil entry = healthy).
	HealthCheck(ctx context.Context) map[Tier]error

	// Events returns a channel of broadcast events and an unsubscribe
	// function; the channel is lossy under backpressure (see
	// internal/broadcast).
	Events() (<-chan Event, func())

	// Close stops background workers (prefetch) and releases resources.
	Close() error
}
