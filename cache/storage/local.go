package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/objectfs/storagecache/cache"
)

// localMetaKey is the nested key object in the sidecar JSON.
type localMetaKey struct {
	Namespace string  `json:"namespace"`
	ID        string  `json:"id"`
	Version   *uint64 `json:"version,omitempty"`
}

// localMeta is the sidecar JSON written alongside each data file. It
// carries everything needed to rebuild a Record without touching the
// data file itself, so stat-only maintenance scans never read payloads.
type localMeta struct {
	Key          localMetaKey `json:"key"`
	SizeBytes    int64        `json:"size_bytes"`
	OriginalSize int64        `json:"original_size"`
	Compressed   bool         `json:"compressed"`
	Algorithm    int          `json:"algorithm"`
	CreatedAt    int64        `json:"created_at"`
	LastAccessed int64        `json:"last_accessed"`
	AccessCount  uint64       `json:"access_count"`
	TTLSeconds   *int64       `json:"ttl_seconds,omitempty"`
	ContentType  string       `json:"content_type,omitempty"`
	ETag         string       `json:"etag,omitempty"`
}

// LocalStorageConfig configures the L2 on-disk backend.
type LocalStorageConfig struct {
	// RootDir holds the 64 shard subdirectories (one per cache.Key
	// shard index, shared with the LRU tracker's shard width).
	RootDir string
	// SyncWrites fsyncs every data file and its sidecar before Put
	// returns, trading latency for crash durability.
	SyncWrites bool
}

// LocalStorage is the L2 backend: one data file plus a ".meta" JSON
// sidecar per entry, grouped into shard subdirectories. A crash between
// writing the data file and its sidecar leaves an orphan data file,
// which the startup rescan silently ignores rather than treating as
// corruption — the entry is simply absent until rewritten.
type LocalStorage struct {
	cfg LocalStorageConfig

	mu      sync.RWMutex
	index   map[cache.Key]string // key -> data file path
	bytes   int64
}

// NewLocalStorage creates RootDir's shard directories if absent and
// rebuilds the in-memory index from whatever sidecars are found there.
func NewLocalStorage(cfg LocalStorageConfig) (*LocalStorage, error) {
	l := &LocalStorage{cfg: cfg, index: make(map[cache.Key]string)}
	for i := 0; i < 64; i++ {
		dir := l.shardDir(i)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("storage: create shard dir %s: %w", dir, err)
		}
	}
	if err := l.rescan(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *LocalStorage) shardDir(shard int) string {
	return filepath.Join(l.cfg.RootDir, fmt.Sprintf("%02x", shard))
}

// paths names both files by the key's 16-hex-char content hash rather
// than its raw namespace/id, so a namespace or id containing a path
// separator can never escape the shard directory.
func (l *LocalStorage) paths(key cache.Key) (dataPath, metaPath string) {
	dir := l.shardDir(key.ShardIndex())
	base := filepath.Join(dir, key.DataFileHash())
	return base + ".data", base + ".meta"
}

func (l *LocalStorage) rescan() error {
	for i := 0; i < 64; i++ {
		dir := l.shardDir(i)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, ent := range entries {
			if ent.IsDir() || filepath.Ext(ent.Name()) != ".meta" {
				continue
			}
			metaPath := filepath.Join(dir, ent.Name())
			dataPath := metaPath[:len(metaPath)-len(".meta")] + ".data"
			if _, err := os.Stat(dataPath); err != nil {
				// Orphan sidecar with no data file: ignore, don't error.
				continue
			}
			meta, err := readMeta(metaPath)
			if err != nil {
				continue
			}
			key := cache.Key{Namespace: meta.Key.Namespace, ID: meta.Key.ID, Version: meta.Key.Version}
			l.index[key] = dataPath
			l.bytes += meta.SizeBytes
		}
	}
	return nil
}

func readMeta(path string) (*localMeta, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m localMeta
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (l *LocalStorage) Tier() cache.Tier { return cache.L2Local }

func (l *LocalStorage) Get(_ context.Context, key cache.Key) (*Record, error) {
	l.mu.RLock()
	dataPath, ok := l.index[key]
	l.mu.RUnlock()
	if !ok {
		return nil, cache.ErrNotFound
	}
	_, metaPath := l.paths(key)

	meta, err := readMeta(metaPath)
	if err != nil {
		return nil, &cache.BackendOpError{Backend: "local", Operation: "get-meta", Reason: err}
	}
	raw, err := os.ReadFile(dataPath)
	if err != nil {
		return nil, &cache.BackendOpError{Backend: "local", Operation: "get-data", Reason: err}
	}

	var ttl *time.Duration
	if meta.TTLSeconds != nil {
		d := time.Duration(*meta.TTLSeconds) * time.Second
		ttl = &d
	}
	return &Record{
		Key: key,
		Data: &cache.Data{
			Bytes:        raw,
			OriginalSize: meta.OriginalSize,
			Compressed:   meta.Compressed,
			Algorithm:    cache.Algorithm(meta.Algorithm),
		},
		CreatedAt:    time.Unix(meta.CreatedAt, 0),
		LastAccessed: time.Unix(meta.LastAccessed, 0),
		AccessCount:  meta.AccessCount,
		TTL:          ttl,
		ContentType:  meta.ContentType,
		ETag:         meta.ETag,
	}, nil
}

func (l *LocalStorage) Put(_ context.Context, rec *Record) error {
	dataPath, metaPath := l.paths(rec.Key)

	var oldSize int64
	var hadOld bool
	if oldMeta, err := readMeta(metaPath); err == nil {
		oldSize = oldMeta.SizeBytes
		hadOld = true
	}

	if err := writeFileAtomic(dataPath, rec.Data.Bytes, l.cfg.SyncWrites); err != nil {
		return &cache.BackendOpError{Backend: "local", Operation: "put-data", Reason: err}
	}

	meta := localMeta{
		Key: localMetaKey{
			Namespace: rec.Key.Namespace,
			ID:        rec.Key.ID,
			Version:   rec.Key.Version,
		},
		SizeBytes:    rec.Data.StoredSize(),
		OriginalSize: rec.Data.OriginalSize,
		Compressed:   rec.Data.Compressed,
		Algorithm:    int(rec.Data.Algorithm),
		CreatedAt:    rec.CreatedAt.Unix(),
		LastAccessed: rec.LastAccessed.Unix(),
		AccessCount:  rec.AccessCount,
		ContentType:  rec.ContentType,
		ETag:         rec.ETag,
	}
	if rec.TTL != nil {
		secs := int64(rec.TTL.Seconds())
		meta.TTLSeconds = &secs
	}
	buf, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(metaPath, buf, l.cfg.SyncWrites); err != nil {
		return &cache.BackendOpError{Backend: "local", Operation: "put-meta", Reason: err}
	}

	l.mu.Lock()
	if hadOld {
		l.bytes -= oldSize
	}
	l.index[rec.Key] = dataPath
	l.bytes += meta.SizeBytes
	l.mu.Unlock()
	return nil
}

func writeFileAtomic(path string, data []byte, sync bool) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if sync {
		if err := f.Sync(); err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (l *LocalStorage) Delete(_ context.Context, key cache.Key) error {
	l.mu.Lock()
	dataPath, ok := l.index[key]
	if !ok {
		l.mu.Unlock()
		return nil
	}
	delete(l.index, key)
	l.mu.Unlock()

	_, metaPath := l.paths(key)
	_ = os.Remove(dataPath)
	if meta, err := readMeta(metaPath); err == nil {
		l.mu.Lock()
		l.bytes -= meta.SizeBytes
		l.mu.Unlock()
	}
	_ = os.Remove(metaPath)
	return nil
}

func (l *LocalStorage) Contains(_ context.Context, key cache.Key) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.index[key]
	return ok, nil
}

func (l *LocalStorage) SizeBytes(context.Context) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bytes, nil
}

func (l *LocalStorage) EntryCount(context.Context) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(len(l.index)), nil
}

func (l *LocalStorage) Keys(context.Context) ([]cache.Key, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]cache.Key, 0, len(l.index))
	for k := range l.index {
		out = append(out, k)
	}
	return out, nil
}

func (l *LocalStorage) Clear(ctx context.Context) error {
	l.mu.Lock()
	keys := make([]cache.Key, 0, len(l.index))
	for k := range l.index {
		keys = append(keys, k)
	}
	l.mu.Unlock()
	for _, k := range keys {
		if err := l.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (l *LocalStorage) HealthCheck(context.Context) error {
	if _, err := os.Stat(l.cfg.RootDir); err != nil {
		return &cache.BackendOpError{Backend: "local", Operation: "health-check", Reason: err}
	}
	return nil
}
