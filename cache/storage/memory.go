package storage

import (
	"context"
	"sync"

	"github.com/objectfs/storagecache/cache"
)

// MemoryStorage is the L1 backend: a concurrent map guarded by a single
// RWMutex. L1's size ceiling (100 MiB objects, default 1 GiB capacity)
// keeps the map small enough that a single lock is not a bottleneck;
// the sharding that matters at this tier lives in the LRU tracker, not
// here.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[cache.Key]*Record
	bytes   int64
}

// NewMemoryStorage constructs an empty L1 backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[cache.Key]*Record)}
}

func (m *MemoryStorage) Tier() cache.Tier { return cache.L1Memory }

func (m *MemoryStorage) Get(_ context.Context, key cache.Key) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, cache.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStorage) Put(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.records[rec.Key]; ok {
		m.bytes -= old.Data.StoredSize()
	}
	cp := *rec
	m.records[rec.Key] = &cp
	m.bytes += rec.Data.StoredSize()
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, key cache.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.records[key]; ok {
		m.bytes -= old.Data.StoredSize()
		delete(m.records, key)
	}
	return nil
}

func (m *MemoryStorage) Contains(_ context.Context, key cache.Key) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[key]
	return ok, nil
}

func (m *MemoryStorage) SizeBytes(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bytes, nil
}

func (m *MemoryStorage) EntryCount(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.records)), nil
}

func (m *MemoryStorage) Keys(context.Context) ([]cache.Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]cache.Key, 0, len(m.records))
	for k := range m.records {
		out = append(out, k)
	}
	return out, nil
}

func (m *MemoryStorage) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[cache.Key]*Record)
	m.bytes = 0
	return nil
}

func (m *MemoryStorage) HealthCheck(context.Context) error { return nil }
