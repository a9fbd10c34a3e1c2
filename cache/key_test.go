package cache

import "testing"

func TestKeyStorageKeyRoundTrip(t *testing.T) {
	cases := []Key{
		NewKey("objects", "abc123"),
		NewVersionedKey("objects", "abc123", 7),
	}
	for _, k := range cases {
		s := k.StorageKey()
		parsed, err := ParseKey(s)
		if err != nil {
			t.Fatalf("ParseKey(%q): %v", s, err)
		}
		if !parsed.Equal(k) {
			t.Fatalf("round trip mismatch: got %+v, want %+v", parsed, k)
		}
	}
}

func TestParseKeyRejectsMalformed(t *testing.T) {
	bad := []string{"", "onlyns", ":id", "ns:", "ns:id:badversion", "ns:id:extra:segment"}
	for _, s := range bad {
		if _, err := ParseKey(s); err == nil {
			t.Errorf("ParseKey(%q): expected error, got nil", s)
		}
	}
}

func TestKeyEqual(t *testing.T) {
	a := NewKey("ns", "id")
	b := NewKey("ns", "id")
	c := NewKey("ns", "other")
	if !a.Equal(b) {
		t.Error("expected equal keys to compare equal")
	}
	if a.Equal(c) {
		t.Error("expected different ids to compare unequal")
	}
	v1 := NewVersionedKey("ns", "id", 1)
	v2 := NewVersionedKey("ns", "id", 2)
	if v1.Equal(v2) {
		t.Error("expected different versions to compare unequal")
	}
}

func TestShardIndexInRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		k := NewVersionedKey("ns", string(rune('a'+i%26)), uint64(i))
		idx := k.ShardIndex()
		if idx < 0 || idx >= lruShardCount {
			t.Fatalf("shard index %d out of range [0,%d)", idx, lruShardCount)
		}
	}
}
