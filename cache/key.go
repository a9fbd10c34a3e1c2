package cache

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/objectfs/storagecache/internal/util"
)

// lruShardCount is the fixed shard width of the LRU tracker and the
// on-disk local-storage layout. Both must agree since the storage key's
// shard index doubles as the shard subdirectory name.
const lruShardCount = 64

// Key is an immutable value object identifying a cache entry: a
// namespace, an id within that namespace, and an optional version.
// Two keys are equal iff all three fields match.
type Key struct {
	Namespace string
	ID        string
	Version   *uint64
}

// NewKey builds an unversioned key.
func NewKey(namespace, id string) Key {
	return Key{Namespace: namespace, ID: id}
}

// NewVersionedKey builds a key pinned to a specific version.
func NewVersionedKey(namespace, id string, version uint64) Key {
	return Key{Namespace: namespace, ID: id, Version: &version}
}

// StorageKey renders the canonical textual form: "ns:id" or "ns:id:v<n>".
func (k Key) StorageKey() string {
	if k.Version != nil {
		return k.Namespace + ":" + k.ID + ":v" + strconv.FormatUint(*k.Version, 10)
	}
	return k.Namespace + ":" + k.ID
}

// String implements fmt.Stringer so keys are readable in logs and events.
func (k Key) String() string { return k.StorageKey() }

// Equal reports whether two keys have identical namespace, id, and version.
func (k Key) Equal(other Key) bool {
	if k.Namespace != other.Namespace || k.ID != other.ID {
		return false
	}
	if (k.Version == nil) != (other.Version == nil) {
		return false
	}
	return k.Version == nil || *k.Version == *other.Version
}

// ParseKey parses the canonical textual form produced by StorageKey.
// The input splits on ':' into at most three parts; a present third
// segment must start with 'v' and parse as a non-negative integer.
func ParseKey(s string) (Key, error) {
	parts := strings.SplitN(s, ":", 3)
	switch len(parts) {
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return Key{}, fmt.Errorf("cache: invalid storage key %q: empty namespace or id", s)
		}
		return Key{Namespace: parts[0], ID: parts[1]}, nil
	case 3:
		if parts[0] == "" || parts[1] == "" {
			return Key{}, fmt.Errorf("cache: invalid storage key %q: empty namespace or id", s)
		}
		vs := parts[2]
		if len(vs) < 2 || vs[0] != 'v' {
			return Key{}, fmt.Errorf("cache: invalid storage key %q: version segment must start with 'v'", s)
		}
		v, err := strconv.ParseUint(vs[1:], 10, 64)
		if err != nil {
			return Key{}, fmt.Errorf("cache: invalid storage key %q: %w", s, err)
		}
		return Key{Namespace: parts[0], ID: parts[1], Version: &v}, nil
	default:
		return Key{}, fmt.Errorf("cache: invalid storage key %q: expected \"ns:id\" or \"ns:id:v<n>\"", s)
	}
}

// ShardIndex returns a stable shard index in [0, lruShardCount) derived
// from the full key, used by both the LRU tracker and the local-disk
// backend's shard subdirectory layout.
func (k Key) ShardIndex() int {
	h := xxhash.Sum64String(k.StorageKey())
	return util.ShardIndex(h, lruShardCount)
}

// DataFileHash returns the 16-hex-char data-file name for a key, used by
// the local-disk backend.
func (k Key) DataFileHash() string {
	h := xxhash.Sum64String(k.StorageKey())
	return fmt.Sprintf("%016x", h)
}
