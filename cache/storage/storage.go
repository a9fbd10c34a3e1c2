// Package storage implements the per-tier backends the cache manager
// drives: an in-memory map for L1, a sidecar-metadata on-disk layout for
// L2, and a persistent-store facade for L3.
package storage

import (
	"context"
	"time"

	"github.com/objectfs/storagecache/cache"
)

// Record is the unit a TierStorage backend persists: the entry's
// payload plus enough metadata to rebuild a cache.Entry on read without
// a round trip through the manager.
type Record struct {
	Key          cache.Key
	Data         *cache.Data
	CreatedAt    time.Time
	LastAccessed time.Time
	AccessCount  uint64
	TTL          *time.Duration
	ContentType  string
	ETag         string
}

// TierStorage is the contract every tier backend implements. All
// methods are context-aware since L3 backends may cross a network.
type TierStorage interface {
	// Tier reports which tier this backend serves.
	Tier() cache.Tier

	// Get returns the stored record for key, or cache.ErrNotFound.
	Get(ctx context.Context, key cache.Key) (*Record, error)

	// Put stores or overwrites rec.
	Put(ctx context.Context, rec *Record) error

	// Delete removes key. It is not an error to delete an absent key.
	Delete(ctx context.Context, key cache.Key) error

	// Contains reports whether key is resident without reading its value.
	Contains(ctx context.Context, key cache.Key) (bool, error)

	// SizeBytes returns the current total stored payload size.
	SizeBytes(ctx context.Context) (int64, error)

	// EntryCount returns the current number of resident entries.
	EntryCount(ctx context.Context) (int64, error)

	// Keys returns every resident key. Backends with large populations
	// may page internally, but the interface returns the full set; the
	// manager uses this only for the ClearTier maintenance path, never
	// the request hot path.
	Keys(ctx context.Context) ([]cache.Key, error)

	// Clear removes every entry and resets SizeBytes/EntryCount to zero.
	Clear(ctx context.Context) error

	// HealthCheck reports whether the backend can currently serve
	// requests. A persistent-tier backend that's down returns a non-nil
	// error wrapping cache.ErrTierUnavailable; memory and local-disk
	// backends are expected to always be healthy once constructed.
	HealthCheck(ctx context.Context) error
}
