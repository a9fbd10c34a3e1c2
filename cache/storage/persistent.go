package storage

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/objectfs/storagecache/cache"
)

// PersistentStorage is the L3 backend facade. Every read and write is
// served by an in-memory mirror (so the cache remains fully functional
// in tests and in deployments without a real object store wired up);
// an optional external client is consulted only for its availability,
// by HealthCheck.
type PersistentStorage struct {
	mu      sync.RWMutex
	records map[cache.Key]*Record
	bytes   int64

	external ExternalClient
}

// ExternalClient is the narrow surface a real L3 backend (object
// storage, a distributed filesystem) must implement; PersistentStorage
// writes nothing to it and treats Available()==false as
// cache.ErrTierUnavailable for HealthCheck purposes only — reads and
// writes still succeed against the in-memory mirror so a flaky external
// store degrades observability, not correctness, of the mock tier.
type ExternalClient interface {
	Available() bool
	Name() string
}

// NewPersistentStorage constructs an L3 backend. external may be nil,
// in which case HealthCheck always succeeds against the in-memory
// mirror alone.
func NewPersistentStorage(external ExternalClient) *PersistentStorage {
	return &PersistentStorage{records: make(map[cache.Key]*Record), external: external}
}

func (p *PersistentStorage) Tier() cache.Tier { return cache.L3Persistent }

func (p *PersistentStorage) Get(_ context.Context, key cache.Key) (*Record, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec, ok := p.records[key]
	if !ok {
		return nil, cache.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (p *PersistentStorage) Put(_ context.Context, rec *Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.records[rec.Key]; ok {
		p.bytes -= old.Data.StoredSize()
	}
	cp := *rec
	p.records[rec.Key] = &cp
	p.bytes += rec.Data.StoredSize()
	return nil
}

func (p *PersistentStorage) Delete(_ context.Context, key cache.Key) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.records[key]; ok {
		p.bytes -= old.Data.StoredSize()
		delete(p.records, key)
	}
	return nil
}

func (p *PersistentStorage) Contains(_ context.Context, key cache.Key) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.records[key]
	return ok, nil
}

func (p *PersistentStorage) SizeBytes(context.Context) (int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.bytes, nil
}

func (p *PersistentStorage) EntryCount(context.Context) (int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return int64(len(p.records)), nil
}

func (p *PersistentStorage) Keys(context.Context) ([]cache.Key, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]cache.Key, 0, len(p.records))
	for k := range p.records {
		out = append(out, k)
	}
	return out, nil
}

func (p *PersistentStorage) Clear(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = make(map[cache.Key]*Record)
	p.bytes = 0
	return nil
}

func (p *PersistentStorage) HealthCheck(context.Context) error {
	if p.external != nil && !p.external.Available() {
		return &cache.BackendOpError{Backend: p.external.Name(), Operation: "health-check", Reason: cache.ErrTierUnavailable}
	}
	return nil
}

// ObjectStorageStub is a gated ExternalClient standing in for a real
// S3-compatible object store client. available starts true; call
// SetAvailable(false) to exercise the tier-unavailable path in tests
// without a real outage.
type ObjectStorageStub struct {
	name      string
	available atomic.Bool
}

// NewObjectStorageStub constructs a stub with the given display name,
// available by default.
func NewObjectStorageStub(name string) *ObjectStorageStub {
	s := &ObjectStorageStub{name: name}
	s.available.Store(true)
	return s
}

func (s *ObjectStorageStub) Available() bool      { return s.available.Load() }
func (s *ObjectStorageStub) Name() string         { return s.name }
func (s *ObjectStorageStub) SetAvailable(v bool)  { s.available.Store(v) }

// FilesystemStub is the distributed-filesystem counterpart to
// ObjectStorageStub, used when L3 is backed by a shared filesystem
// (e.g. a RustFS or SeaweedFS mount) rather than an object API.
type FilesystemStub struct {
	name      string
	available atomic.Bool
}

// NewFilesystemStub constructs a stub with the given display name,
// available by default.
func NewFilesystemStub(name string) *FilesystemStub {
	s := &FilesystemStub{name: name}
	s.available.Store(true)
	return s
}

func (s *FilesystemStub) Available() bool     { return s.available.Load() }
func (s *FilesystemStub) Name() string        { return s.name }
func (s *FilesystemStub) SetAvailable(v bool) { s.available.Store(v) }
