package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/objectfs/storagecache/cache/storage"
	"github.com/objectfs/storagecache/internal/broadcast"
)

// tierState bundles everything the manager needs per tier: its storage
// backend, recency tracker, config, and metrics block.
type tierState struct {
	tier    Tier
	backend storage.TierStorage
	lru     *ShardedLruTracker
	cfg     TierConfig
	metrics *TierMetrics

	mu        sync.Mutex // serializes capacity maintenance for this tier
	available atomic.Bool
}

// MultiTierCache implements Cache across L1/L2/L3, coordinating
// placement, compression, eviction, demotion, promotion, and
// prefetching. The zero value is not usable; construct with NewMultiTierCache.
type MultiTierCache struct {
	tiers map[Tier]*tierState
	comp  *Manager
	opt   Options

	bus        *broadcast.Bus[Event]
	prefetcher *Prefetcher

	closed atomic.Bool
}

// NewMultiTierCache wires the three tier backends into a running cache.
// backends must contain exactly one storage.TierStorage per cache.Tier.
func NewMultiTierCache(backends map[Tier]storage.TierStorage, opt Options) *MultiTierCache {
	if opt.Compression == (CompressionConfig{}) {
		opt.Compression = DefaultCompressionConfig()
	}
	if opt.EventBufferSize <= 0 {
		opt.EventBufferSize = 256
	}

	m := &MultiTierCache{
		tiers: make(map[Tier]*tierState, len(backends)),
		comp:  NewManager(opt.Compression),
		opt:   opt,
		bus:   broadcast.New[Event](opt.EventBufferSize),
	}
	for _, t := range LookupOrder {
		backend, ok := backends[t]
		if !ok {
			continue
		}
		ts := &tierState{
			tier:    t,
			backend: backend,
			lru:     NewShardedLruTracker(opt.EvictionPolicy),
			cfg:     opt.tierConfig(t),
			metrics: newTierMetrics(),
		}
		ts.available.Store(true)
		m.tiers[t] = ts
	}

	if opt.PrefetchWorkers > 0 {
		ctx := context.Background()
		m.prefetcher = NewPrefetcher(ctx, opt.PrefetchWorkers, m.prefetchPut, m.anyTierHas)
	}
	return m
}

func (m *MultiTierCache) publish(ev Event) { m.bus.Publish(ev) }

// Events subscribes to the manager's broadcast bus.
func (m *MultiTierCache) Events() (<-chan Event, func()) { return m.bus.Subscribe() }

// Get implements Cache.
func (m *MultiTierCache) Get(ctx context.Context, key Key) (*Data, error) {
	for _, t := range LookupOrder {
		ts, ok := m.tiers[t]
		if !ok {
			continue
		}
		rec, err := ts.backend.Get(ctx, key)
		if err != nil {
			ts.metrics.RecordMiss()
			m.opt.metrics().Miss(t)
			continue
		}
		if rec.TTL != nil && timeFromMillis(m.opt.now()).Sub(rec.CreatedAt) > *rec.TTL {
			m.expireFromTier(ctx, ts, key, rec)
			ts.metrics.RecordMiss()
			m.opt.metrics().Miss(t)
			continue
		}

		data, derr := m.comp.Decompress(rec.Data.Bytes, rec.Data.Algorithm)
		if derr != nil {
			return nil, &BackendOpError{Backend: t.String(), Operation: "decompress", Reason: derr}
		}
		out := &Data{Bytes: data, OriginalSize: rec.Data.OriginalSize, Compressed: false, Algorithm: AlgoNone}

		ts.metrics.RecordHit()
		ts.lru.Touch(key)
		m.opt.metrics().Hit(t)

		promoted := m.tryPromote(ctx, t, key, rec)
		m.publish(Event{Kind: EventHit, Key: key, Tier: t, Promoted: promoted})
		return out, nil
	}
	m.publish(Event{Kind: EventMiss, Key: key})
	return nil, ErrNotFound
}

// tryPromote best-effort copies a hit entry up to its tier's promotion
// target. Failure (including a target tier being absent or unavailable)
// is swallowed: a failed promotion never fails the Get that triggered it.
func (m *MultiTierCache) tryPromote(ctx context.Context, from Tier, key Key, rec *storage.Record) bool {
	target := from.PromotionTarget()
	if target == nil {
		return false
	}
	ts, ok := m.tiers[*target]
	if !ok || !ts.available.Load() {
		return false
	}
	if err := ts.backend.Put(ctx, rec); err != nil {
		return false
	}
	ts.lru.Record(key, rec.Data.StoredSize())
	ts.metrics.RecordInsert(rec.Data.StoredSize())
	m.publish(Event{Kind: EventPromote, Key: key, FromTier: from, ToTier: *target})
	return true
}

// Put implements Cache.
func (m *MultiTierCache) Put(ctx context.Context, key Key, data *Data) error {
	return m.PutWithTTL(ctx, key, data, 0)
}

// PutWithTTL implements Cache. A ttl of 0 means the entry never
// expires on its own (it's still subject to capacity eviction).
func (m *MultiTierCache) PutWithTTL(ctx context.Context, key Key, data *Data, ttl time.Duration) error {
	tier, err := SelectTier(int64(len(data.Bytes)))
	if err != nil {
		return err
	}
	return m.putTier(ctx, key, data, tier, ttl)
}

// PutWithTier implements Cache.
func (m *MultiTierCache) PutWithTier(ctx context.Context, key Key, data *Data, tier Tier) error {
	if int64(len(data.Bytes)) > tier.MaxObjectSize() {
		return ErrObjectTooLargeForTier
	}
	return m.putTier(ctx, key, data, tier, 0)
}

func (m *MultiTierCache) putTier(ctx context.Context, key Key, data *Data, tier Tier, ttl time.Duration) error {
	ts, ok := m.tiers[tier]
	if !ok || !ts.available.Load() {
		return &BackendOpError{Backend: tier.String(), Operation: "put", Reason: ErrTierUnavailable}
	}

	stored := data.Bytes
	algo := AlgoNone
	if ts.cfg.EnableCompression {
		out, a, fallback, cerr := m.comp.Compress(data.Bytes)
		if cerr != nil {
			return &BackendOpError{Backend: tier.String(), Operation: "compress", Reason: cerr}
		}
		if fallback != nil {
			m.publish(Event{Kind: EventCompressionFailed, Key: key, Tier: tier, Algorithm: fallback.Algorithm, Err: fallback.Err})
		}
		stored, algo = out, a
	}

	now := m.opt.now()
	rec := &storage.Record{
		Key:          key,
		Data:         &Data{Bytes: stored, OriginalSize: int64(len(data.Bytes)), Compressed: algo != AlgoNone, Algorithm: algo},
		CreatedAt:    timeFromMillis(now),
		LastAccessed: timeFromMillis(now),
		AccessCount:  1,
	}
	if ttl > 0 {
		rec.TTL = &ttl
	}

	var oldSize int64 = -1
	if existing, err := ts.backend.Get(ctx, key); err == nil {
		oldSize = existing.Data.StoredSize()
	}
	if err := ts.backend.Put(ctx, rec); err != nil {
		return &BackendOpError{Backend: tier.String(), Operation: "put", Reason: err}
	}
	ts.lru.Record(key, rec.Data.StoredSize())
	if oldSize >= 0 {
		ts.metrics.RecordUpdate(oldSize, rec.Data.StoredSize())
	} else {
		ts.metrics.RecordInsert(rec.Data.StoredSize())
	}

	m.publish(Event{Kind: EventPut, Key: key, Tier: tier, SizeBytes: rec.Data.StoredSize(), Compressed: rec.Data.Compressed})

	m.maintainCapacity(ctx, ts, 0)
	return nil
}

// maintainCapacity implements the watermark formula: once bytes stored
// plus any pending incoming size exceeds the tier's eviction watermark,
// evict/demote until back under watermark minus a 10% hysteresis
// margin, so maintenance doesn't fire again on the very next put.
func (m *MultiTierCache) maintainCapacity(ctx context.Context, ts *tierState, needed int64) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	snap := ts.metrics.Snapshot()
	watermark := ts.cfg.EvictionWatermark()
	projected := snap.BytesStored + needed
	if projected <= watermark {
		return
	}
	toEvict := projected - watermark + watermark/10

	var freedBytes int64
	var freedEntries int64
	for freedBytes < toEvict {
		cands := ts.lru.Candidates(8)
		if len(cands) == 0 {
			break
		}
		progressed := false
		for _, c := range cands {
			if freedBytes >= toEvict {
				break
			}
			if m.evictOne(ctx, ts, c.Key, c.Size) {
				freedBytes += c.Size
				freedEntries++
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	if freedEntries > 0 {
		m.publish(Event{Kind: EventTierCleared, Tier: ts.tier, EntriesRemoved: freedEntries, BytesFreed: freedBytes})
	}
}

// evictOne removes key from ts. If demotion is enabled and the tier has
// a demotion target, the entry is re-read before removal and reinserted
// into the target tier via the normal put path; otherwise it is simply
// dropped. A successful demotion records only a demotion, never also an
// eviction on the source tier.
func (m *MultiTierCache) evictOne(ctx context.Context, ts *tierState, key Key, size int64) bool {
	var rec *storage.Record
	if ts.cfg.EnableDemotion && ts.tier.DemotionTarget() != nil {
		if r, err := ts.backend.Get(ctx, key); err == nil {
			rec = r
		}
	}

	if err := ts.backend.Delete(ctx, key); err != nil {
		return false
	}
	ts.lru.Forget(key)

	demoted := false
	if rec != nil {
		target := *ts.tier.DemotionTarget()
		decompressed, derr := m.comp.Decompress(rec.Data.Bytes, rec.Data.Algorithm)
		if derr == nil {
			var ttl time.Duration
			if rec.TTL != nil {
				ttl = *rec.TTL
			}
			if err := m.putTier(ctx, key, &Data{Bytes: decompressed}, target, ttl); err == nil {
				demoted = true
				ts.metrics.RecordRemove(size)
				ts.metrics.RecordDemotion()
				m.publish(Event{Kind: EventDemote, Key: key, FromTier: ts.tier, ToTier: target})
			}
		}
	}

	if !demoted {
		ts.metrics.RecordEviction(size)
		m.opt.metrics().Evict(ts.tier, EvictCapacity)
		m.publish(Event{Kind: EventEvict, Key: key, Tier: ts.tier, Reason: EvictCapacity})
	}
	return true
}

// Delete implements Cache.
func (m *MultiTierCache) Delete(ctx context.Context, key Key) error {
	var any bool
	for _, t := range LookupOrder {
		ts, ok := m.tiers[t]
		if !ok {
			continue
		}
		if err := m.deleteFromTier(ctx, ts, key); err == nil {
			any = true
		}
	}
	if any {
		m.publish(Event{Kind: EventDelete, Key: key})
	}
	return nil
}

// expireFromTier removes a TTL-expired entry found during Get. Unlike
// evictOne this never demotes: an expired entry has no business living
// on in a colder tier.
func (m *MultiTierCache) expireFromTier(ctx context.Context, ts *tierState, key Key, rec *storage.Record) {
	if err := ts.backend.Delete(ctx, key); err != nil {
		return
	}
	ts.lru.Forget(key)
	ts.metrics.RecordEviction(rec.Data.StoredSize())
	m.opt.metrics().Evict(ts.tier, EvictExpired)
	m.publish(Event{Kind: EventEvict, Key: key, Tier: ts.tier, Reason: EvictExpired})
}

func (m *MultiTierCache) deleteFromTier(ctx context.Context, ts *tierState, key Key) error {
	rec, err := ts.backend.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := ts.backend.Delete(ctx, key); err != nil {
		return err
	}
	ts.lru.Forget(key)
	ts.metrics.RecordRemove(rec.Data.StoredSize())
	return nil
}

// Evict implements Cache: one explicit maintenance round against tier.
func (m *MultiTierCache) Evict(ctx context.Context, tier Tier) (int, int64, error) {
	ts, ok := m.tiers[tier]
	if !ok {
		return 0, 0, &BackendOpError{Backend: tier.String(), Operation: "evict", Reason: ErrTierUnavailable}
	}
	before := ts.metrics.Snapshot()
	m.maintainCapacity(ctx, ts, 0)
	after := ts.metrics.Snapshot()
	return int(before.EntryCount - after.EntryCount), before.BytesStored - after.BytesStored, nil
}

// ClearTier implements Cache.
func (m *MultiTierCache) ClearTier(ctx context.Context, tier Tier) error {
	ts, ok := m.tiers[tier]
	if !ok {
		return &BackendOpError{Backend: tier.String(), Operation: "clear", Reason: ErrTierUnavailable}
	}
	snap := ts.metrics.Snapshot()
	keys, err := ts.backend.Keys(ctx)
	if err != nil {
		return err
	}
	if err := ts.backend.Clear(ctx); err != nil {
		return err
	}
	for _, k := range keys {
		ts.lru.Forget(k)
	}
	ts.metrics.ResetCounts()
	m.publish(Event{Kind: EventTierCleared, Tier: tier, EntriesRemoved: snap.EntryCount, BytesFreed: snap.BytesStored})
	return nil
}

// ClearAll implements Cache.
func (m *MultiTierCache) ClearAll(ctx context.Context) error {
	for _, t := range LookupOrder {
		if _, ok := m.tiers[t]; ok {
			if err := m.ClearTier(ctx, t); err != nil {
				return err
			}
		}
	}
	return nil
}

// Stats implements Cache.
func (m *MultiTierCache) Stats() StatsSnapshot {
	perTier := make(map[Tier]TierSnapshot, len(m.tiers))
	for t, ts := range m.tiers {
		perTier[t] = ts.metrics.Snapshot()
	}
	var pf PrefetchSnapshot
	if m.prefetcher != nil {
		pf = m.prefetcher.Snapshot()
	}
	snap := buildStatsSnapshot(perTier, pf)
	m.publish(Event{Kind: EventStatsSnapshot, Stats: snap})
	return snap
}

// HealthCheck implements Cache.
func (m *MultiTierCache) HealthCheck(ctx context.Context) map[Tier]error {
	out := make(map[Tier]error, len(m.tiers))
	for t, ts := range m.tiers {
		err := ts.backend.HealthCheck(ctx)
		wasAvailable := ts.available.Load()
		ts.available.Store(err == nil)
		out[t] = err
		if wasAvailable && err != nil {
			m.publish(Event{Kind: EventTierUnavailable, Tier: t, UnavailableReason: err.Error()})
		} else if !wasAvailable && err == nil {
			m.publish(Event{Kind: EventTierRecovered, Tier: t})
		}
	}
	return out
}

// Prefetch implements Cache.
func (m *MultiTierCache) Prefetch(req PrefetchRequest) {
	if m.prefetcher == nil {
		return
	}
	m.prefetcher.Submit(req)
}

func (m *MultiTierCache) prefetchPut(ctx context.Context, key Key, data *Data) error {
	return m.Put(ctx, key, data)
}

func (m *MultiTierCache) anyTierHas(key Key) bool {
	ctx := context.Background()
	for _, ts := range m.tiers {
		if ok, err := ts.backend.Contains(ctx, key); err == nil && ok {
			return true
		}
	}
	return false
}

// Close implements Cache.
func (m *MultiTierCache) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.prefetcher != nil {
		m.prefetcher.Close()
	}
	return nil
}

var _ Cache = (*MultiTierCache)(nil)
