package registry

import (
	"sync"

	"github.com/objectfs/storagecache/internal/util"
)

// shard is one of registryShardCount independent partitions of the
// node registry, each with its own lock and atomic stat counters so a
// heartbeat storm against one shard never serializes behind another.
type shard struct {
	mu    sync.RWMutex
	nodes map[NodeID]*NodeEntry

	_          util.CacheLinePad
	nodeCount  util.PaddedAtomicInt64
	updates    util.PaddedAtomicUint64
	contention util.PaddedAtomicUint64
}

func newShard() *shard {
	return &shard{nodes: make(map[NodeID]*NodeEntry)}
}

// lockForWrite takes the write lock, first trying a non-blocking
// TryLock and recording a contention event when it has to fall back to
// a blocking Lock; the count only surfaces in ShardStats, never changes
// correctness.
func (s *shard) lockForWrite() {
	if !s.mu.TryLock() {
		s.contention.Add(1)
		s.mu.Lock()
	}
}

// ShardSnapshot reports one shard's occupancy and activity counters.
type ShardSnapshot struct {
	NodeCount         int64
	UpdateCount       uint64
	ContentionCount   uint64
}

func (s *shard) snapshot() ShardSnapshot {
	return ShardSnapshot{
		NodeCount:       s.nodeCount.Load(),
		UpdateCount:     s.updates.Load(),
		ContentionCount: s.contention.Load(),
	}
}
