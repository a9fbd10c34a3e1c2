package storage

import (
	"context"
	"testing"

	"github.com/objectfs/storagecache/cache"
)

func TestMemoryStoragePutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	key := cache.NewKey("ns", "a")
	rec := &Record{Key: key, Data: cache.NewData([]byte("payload"))}

	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Data.Bytes) != "payload" {
		t.Fatalf("got %q", got.Data.Bytes)
	}

	if n, _ := s.EntryCount(ctx); n != 1 {
		t.Fatalf("EntryCount = %d, want 1", n)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, key); err != cache.ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStorageSizeAccounting(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	key := cache.NewKey("ns", "a")

	_ = s.Put(ctx, &Record{Key: key, Data: cache.NewData([]byte("1234567890"))})
	if b, _ := s.SizeBytes(ctx); b != 10 {
		t.Fatalf("SizeBytes = %d, want 10", b)
	}
	_ = s.Put(ctx, &Record{Key: key, Data: cache.NewData([]byte("12345"))})
	if b, _ := s.SizeBytes(ctx); b != 5 {
		t.Fatalf("SizeBytes after overwrite = %d, want 5", b)
	}
}
