package cache

import (
	"time"

	"github.com/objectfs/storagecache/internal/util"
)

// TierMetrics is a per-tier block of cache-line-padded atomic counters.
// Every field is a relaxed atomic add except lastUpdateMs, which is
// stored after every other mutation in the same call so a reader
// observing a fresh lastUpdateMs usually also observes the counters
// that produced it; Snapshot still accepts that a read can straddle two
// concurrent updates, since no single atomic covers the whole block.
type TierMetrics struct {
	hits        util.PaddedAtomicUint64
	misses      util.PaddedAtomicUint64
	bytesStored util.PaddedAtomicInt64
	entryCount  util.PaddedAtomicInt64
	evictions   util.PaddedAtomicUint64
	demotions   util.PaddedAtomicUint64
	lastUpdate  util.PaddedAtomicInt64
}

func newTierMetrics() *TierMetrics { return &TierMetrics{} }

func (m *TierMetrics) touch() { m.lastUpdate.Store(time.Now().UnixMilli()) }

// RecordHit increments the hit counter for this tier.
func (m *TierMetrics) RecordHit() { m.hits.Add(1); m.touch() }

// RecordMiss increments the miss counter for this tier.
func (m *TierMetrics) RecordMiss() { m.misses.Add(1); m.touch() }

// RecordInsert accounts a newly stored entry of size bytes.
func (m *TierMetrics) RecordInsert(size int64) {
	m.bytesStored.Add(size)
	m.entryCount.Add(1)
	m.touch()
}

// RecordUpdate accounts an overwrite of an existing entry whose size
// changed from oldSize to newSize; entry count is unaffected.
func (m *TierMetrics) RecordUpdate(oldSize, newSize int64) {
	m.bytesStored.Add(newSize - oldSize)
	m.touch()
}

// RecordRemove accounts an entry leaving the tier outside of eviction,
// e.g. an explicit Delete or a demotion's source-side removal.
func (m *TierMetrics) RecordRemove(size int64) {
	m.bytesStored.Add(-size)
	m.entryCount.Add(-1)
	m.touch()
}

// RecordEviction accounts an entry evicted under capacity pressure.
func (m *TierMetrics) RecordEviction(size int64) {
	m.bytesStored.Add(-size)
	m.entryCount.Add(-1)
	m.evictions.Add(1)
	m.touch()
}

// RecordDemotion increments the demotion counter. The corresponding
// byte/entry accounting happens via RecordRemove on the source tier and
// RecordInsert on the target tier.
func (m *TierMetrics) RecordDemotion() {
	m.demotions.Add(1)
	m.touch()
}

// ResetCounts zeroes the live bytes-stored and entry-count fields, used
// by ClearTier. Cumulative hits/misses/evictions/demotions survive a
// clear; they describe history, not current occupancy.
func (m *TierMetrics) ResetCounts() {
	m.bytesStored.Store(0)
	m.entryCount.Store(0)
	m.touch()
}

// TierSnapshot is a point-in-time, eventually-consistent read of a
// TierMetrics block: each field is loaded independently.
type TierSnapshot struct {
	Hits        uint64
	Misses      uint64
	BytesStored int64
	EntryCount  int64
	Evictions   uint64
	Demotions   uint64
	LastUpdate  time.Time
}

// Snapshot reads every counter in the block.
func (m *TierMetrics) Snapshot() TierSnapshot {
	return TierSnapshot{
		Hits:        m.hits.Load(),
		Misses:      m.misses.Load(),
		BytesStored: m.bytesStored.Load(),
		EntryCount:  m.entryCount.Load(),
		Evictions:   m.evictions.Load(),
		Demotions:   m.demotions.Load(),
		LastUpdate:  time.UnixMilli(m.lastUpdate.Load()),
	}
}

// PrefetchSnapshot is the set of global prefetch counters reported
// alongside per-tier stats.
type PrefetchSnapshot struct {
	Requested  uint64
	Completed  uint64
	KeysAdded  uint64
	BytesAdded int64
}

// StatsSnapshot is the whole-cache statistics view returned by
// Cache.Stats and carried on EventStatsSnapshot events.
//
// TotalMisses counts only L3 misses. L1 and L2 misses fall through to
// the next tier in the lookup order and are not independently "cache
// misses" from the caller's perspective; only a miss at the last tier
// in LookupOrder means the key was absent from the cache entirely.
// Summing misses across all three tiers would double- and triple-count
// the same logical miss.
type StatsSnapshot struct {
	TotalHits    uint64
	TotalMisses  uint64
	TotalBytes   int64
	TotalEntries int64
	PerTier      map[Tier]TierSnapshot
	Prefetch     PrefetchSnapshot
}

func buildStatsSnapshot(perTier map[Tier]TierSnapshot, prefetch PrefetchSnapshot) StatsSnapshot {
	s := StatsSnapshot{PerTier: perTier, Prefetch: prefetch}
	for tier, ts := range perTier {
		s.TotalHits += ts.Hits
		s.TotalBytes += ts.BytesStored
		s.TotalEntries += ts.EntryCount
		if tier == L3Persistent {
			s.TotalMisses = ts.Misses
		}
	}
	return s
}
