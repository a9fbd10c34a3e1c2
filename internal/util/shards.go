package util

// ShardIndex maps a 64-bit hash to a shard index in [0, shards).
// Both the LRU tracker (64 shards) and the node registry (256 shards)
// use power-of-two counts, so the fast mask path is the common case;
// the modulo fallback keeps the function correct for any shard count.
func ShardIndex(hash uint64, shards int) int {
	if shards <= 1 {
		return 0
	}
	if IsPowerOfTwo(uint64(shards)) {
		return int(hash & uint64(shards-1))
	}
	return int(hash % uint64(shards))
}
