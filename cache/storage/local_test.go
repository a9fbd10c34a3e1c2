package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/objectfs/storagecache/cache"
)

func TestLocalStoragePutGetDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewLocalStorage(LocalStorageConfig{RootDir: dir})
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}

	key := cache.NewKey("ns", "a")
	rec := &Record{Key: key, Data: cache.NewData([]byte("on disk"))}
	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Data.Bytes) != "on disk" {
		t.Fatalf("got %q", got.Data.Bytes)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, key); err != cache.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalStorageRescanRebuildsIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s1, err := NewLocalStorage(LocalStorageConfig{RootDir: dir})
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	key := cache.NewKey("ns", "persisted")
	if err := s1.Put(ctx, &Record{Key: key, Data: cache.NewData([]byte("surviving restart"))}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	s2, err := NewLocalStorage(LocalStorageConfig{RootDir: dir})
	if err != nil {
		t.Fatalf("second NewLocalStorage: %v", err)
	}
	got, err := s2.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after rescan: %v", err)
	}
	if string(got.Data.Bytes) != "surviving restart" {
		t.Fatalf("got %q", got.Data.Bytes)
	}
}

func TestLocalStorageIgnoresOrphanDataFile(t *testing.T) {
	dir := t.TempDir()
	shardDir := filepath.Join(dir, "00")
	if err := os.MkdirAll(shardDir, 0o750); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	orphan := filepath.Join(shardDir, "orphan.data")
	if err := os.WriteFile(orphan, []byte("no sidecar"), 0o640); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := NewLocalStorage(LocalStorageConfig{RootDir: dir})
	if err != nil {
		t.Fatalf("NewLocalStorage with orphan data file: %v", err)
	}
	if n, _ := s.EntryCount(context.Background()); n != 0 {
		t.Fatalf("EntryCount = %d, want 0 for an orphaned data file with no sidecar", n)
	}
}
