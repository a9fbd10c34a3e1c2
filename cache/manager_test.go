package cache

import (
	"context"
	"testing"
	"time"

	"github.com/objectfs/storagecache/cache/storage"
)

func newTestManager(t *testing.T) *MultiTierCache {
	t.Helper()
	l2, err := storage.NewLocalStorage(storage.LocalStorageConfig{RootDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	backends := map[Tier]storage.TierStorage{
		L1Memory:     storage.NewMemoryStorage(),
		L2Local:      l2,
		L3Persistent: storage.NewPersistentStorage(nil),
	}
	opt := Options{
		TierConfigs: map[Tier]TierConfig{
			L1Memory:     {CapacityBytes: 1024, EvictionThreshold: 0.5, EnableDemotion: true},
			L2Local:      {CapacityBytes: 4096, EvictionThreshold: 0.9, EnableDemotion: true},
			L3Persistent: {CapacityBytes: 1 << 20, EvictionThreshold: 0.9},
		},
		Compression: CompressionConfig{DefaultAlgorithm: AlgoNone, MinSizeBytes: 1 << 30},
	}
	return NewMultiTierCache(backends, opt)
}

func TestPutThenGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	k := NewKey("ns", "a")
	payload := NewData([]byte("hello world"))

	if err := m.Put(ctx, k, payload); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := m.Get(ctx, k)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Bytes) != "hello world" {
		t.Fatalf("Get returned %q", got.Bytes)
	}
}

func TestGetMissReturnsErrNotFound(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	_, err := m.Get(ctx, NewKey("ns", "absent"))
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutWithTTLExpires(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	key := NewKey("ns", "tmp")

	if err := m.PutWithTTL(ctx, key, &Data{Bytes: []byte("ephemeral")}, 10*time.Millisecond); err != nil {
		t.Fatalf("PutWithTTL: %v", err)
	}
	if _, err := m.Get(ctx, key); err != nil {
		t.Fatalf("expected immediate hit, got %v", err)
	}

	time.Sleep(25 * time.Millisecond)

	before := m.Stats().PerTier[L1Memory].EntryCount
	if _, err := m.Get(ctx, key); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after TTL expiry, got %v", err)
	}
	after := m.Stats().PerTier[L1Memory].EntryCount
	if after != before-1 {
		t.Fatalf("expected entry count to drop by one on expiry, before=%d after=%d", before, after)
	}
}

func TestPutOversizedObjectBypassesCache(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	oversized := make([]byte, L3MaxObjectSize+1)
	err := m.Put(ctx, NewKey("ns", "huge"), &Data{Bytes: oversized})
	if err != ErrSizeExceeded {
		t.Fatalf("expected ErrSizeExceeded, got %v", err)
	}
}

func TestPutWithTierRejectsTooLargeForTier(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	tooBig := make([]byte, L1MaxObjectSize+1)
	err := m.PutWithTier(ctx, NewKey("ns", "x"), &Data{Bytes: tooBig}, L1Memory)
	if err != ErrObjectTooLargeForTier {
		t.Fatalf("expected ErrObjectTooLargeForTier, got %v", err)
	}
}

func TestDeleteRemovesFromAllTiers(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	k := NewKey("ns", "a")
	if err := m.Put(ctx, k, NewData([]byte("x"))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	for _, tier := range []Tier{L2Local, L3Persistent} {
		if err := m.PutWithTier(ctx, k, NewData([]byte("x")), tier); err != nil {
			t.Fatalf("PutWithTier(%v): %v", tier, err)
		}
	}
	if err := m.Delete(ctx, k); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get(ctx, k); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after Delete, got %v", err)
	}
}

func TestClearTierResetsStats(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	for i := 0; i < 5; i++ {
		if err := m.Put(ctx, NewKey("ns", string(rune('a'+i))), NewData([]byte("payload"))); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if err := m.ClearTier(ctx, L1Memory); err != nil {
		t.Fatalf("ClearTier: %v", err)
	}
	stats := m.Stats()
	if stats.PerTier[L1Memory].EntryCount != 0 {
		t.Fatalf("expected 0 entries after ClearTier, got %d", stats.PerTier[L1Memory].EntryCount)
	}
}

func TestHealthCheckAllTiersHealthyByDefault(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	results := m.HealthCheck(ctx)
	for tier, err := range results {
		if err != nil {
			t.Errorf("tier %v reported unhealthy: %v", tier, err)
		}
	}
}

func TestCapacityPressureEvictsUnderWatermark(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	// L1 capacity is 1024 bytes at a 0.5 threshold: watermark is 512.
	for i := 0; i < 20; i++ {
		k := NewKey("ns", string(rune('a'+i)))
		if err := m.PutWithTier(ctx, k, &Data{Bytes: make([]byte, 64)}, L1Memory); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
	}
	stats := m.Stats()
	watermark := int64(512)
	if stats.PerTier[L1Memory].BytesStored > watermark+watermark/10+64 {
		t.Fatalf("L1 bytes stored %d exceeds watermark+hysteresis margin", stats.PerTier[L1Memory].BytesStored)
	}
}

func TestEventsEmittedOnPutAndGet(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	ch, unsub := m.Events()
	defer unsub()

	k := NewKey("ns", "a")
	if err := m.Put(ctx, k, NewData([]byte("x"))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := m.Get(ctx, k); err != nil {
		t.Fatalf("Get: %v", err)
	}

	var sawPut, sawHit bool
	for i := 0; i < 8; i++ {
		select {
		case ev := <-ch:
			switch ev.Kind {
			case EventPut:
				sawPut = true
			case EventHit:
				sawHit = true
			}
		default:
		}
	}
	if !sawPut || !sawHit {
		t.Fatalf("expected both EventPut and EventHit, got put=%v hit=%v", sawPut, sawHit)
	}
}
