package cache

import (
	"math"
	"sync"
	"time"

	"github.com/objectfs/storagecache/internal/util"
)

// EvictionPolicy selects how ShardedLruTracker scores candidates for
// removal under capacity pressure. The tracker always maintains true
// LRU order internally (needed for O(1) recency updates); the other
// policies re-rank the tail of each shard's list rather than replacing
// the list structure, trading a little accuracy for keeping promotion
// and removal both O(1).
type EvictionPolicy int

const (
	// PolicyLRU evicts the least recently used entry: highest idle time.
	PolicyLRU EvictionPolicy = iota
	// PolicyLFU evicts the least frequently used entry: lowest access count.
	PolicyLFU
	// PolicyLargestFirst evicts the largest entry regardless of recency.
	PolicyLargestFirst
	// PolicyAdaptive blends idle time, access frequency, and size so a
	// large, cold, rarely-used entry outranks a small, merely-idle one.
	PolicyAdaptive
)

// node is an intrusive doubly-linked list element; head is MRU, tail is
// LRU. size and accessCount are maintained by the tracker so eviction
// scoring never has to consult the storage backend.
type node struct {
	key          Key
	size         int64
	accessCount  uint64
	lastAccessed time.Time
	prev, next   *node
}

type lruShard struct {
	mu   sync.Mutex
	m    map[Key]*node
	head *node
	tail *node
	len  int

	_     util.CacheLinePad
	touch util.PaddedAtomicUint64
}

// ShardedLruTracker tracks recency and access-frequency metadata for one
// tier's resident keys across lruShardCount independent shards, so a
// high-concurrency Get never contends with a Get for a key in a
// different shard. It holds no entry data, only the bookkeeping needed
// to pick eviction candidates.
type ShardedLruTracker struct {
	shards [lruShardCount]*lruShard
	policy EvictionPolicy
}

// NewShardedLruTracker constructs a tracker using the given scoring policy.
func NewShardedLruTracker(policy EvictionPolicy) *ShardedLruTracker {
	t := &ShardedLruTracker{policy: policy}
	for i := range t.shards {
		t.shards[i] = &lruShard{m: make(map[Key]*node)}
	}
	return t
}

func (t *ShardedLruTracker) shardFor(k Key) *lruShard { return t.shards[k.ShardIndex()] }

// Record inserts a brand-new key at MRU, or refreshes an existing one's
// recency and size if already tracked (an upsert via Put).
func (t *ShardedLruTracker) Record(k Key, size int64) {
	s := t.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.m[k]; ok {
		n.size = size
		n.accessCount++
		n.lastAccessed = time.Now()
		s.moveToFront(n)
		s.touch.Add(1)
		return
	}
	n := &node{key: k, size: size, accessCount: 1, lastAccessed: time.Now()}
	s.m[k] = n
	s.insertFront(n)
	s.touch.Add(1)
}

// Touch promotes k to MRU and increments its access count, called on a
// cache hit. It is a no-op if k is not tracked.
func (t *ShardedLruTracker) Touch(k Key) {
	s := t.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	if !ok {
		return
	}
	n.accessCount++
	n.lastAccessed = time.Now()
	s.moveToFront(n)
	s.touch.Add(1)
}

// Forget removes k from tracking, called on Delete or eviction.
func (t *ShardedLruTracker) Forget(k Key) {
	s := t.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	if !ok {
		return
	}
	s.removeNode(n)
	delete(s.m, k)
}

// Len returns the total number of tracked keys across all shards.
func (t *ShardedLruTracker) Len() int {
	total := 0
	for _, s := range t.shards {
		s.mu.Lock()
		total += s.len
		s.mu.Unlock()
	}
	return total
}

// EvictionCandidate names a key the tracker proposes for removal, along
// with the size the manager needs to subtract from the tier's occupancy.
type EvictionCandidate struct {
	Key   Key
	Size  int64
	Score float64
}

// Candidates returns up to n eviction candidates ordered worst-first
// (highest score = evict first), scanning each shard's tail region
// (the coldest entries under true LRU order) under the tracker's
// configured policy. It never walks past the tail of a shard, so a
// tracker with fewer than n total entries returns fewer than n.
func (t *ShardedLruTracker) Candidates(n int) []EvictionCandidate {
	if n <= 0 {
		return nil
	}
	now := time.Now()
	var pool []EvictionCandidate

	// Pull a bounded window from each shard's tail so a single hot
	// shard can't starve the others of consideration, then globally
	// rank by score.
	perShardWindow := n
	if perShardWindow < 4 {
		perShardWindow = 4
	}
	for _, s := range t.shards {
		s.mu.Lock()
		cur := s.tail
		for i := 0; cur != nil && i < perShardWindow; i++ {
			pool = append(pool, EvictionCandidate{
				Key:   cur.key,
				Size:  cur.size,
				Score: t.score(cur, now),
			})
			cur = cur.prev
		}
		s.mu.Unlock()
	}

	sortCandidatesDesc(pool)
	if len(pool) > n {
		pool = pool[:n]
	}
	return pool
}

// score implements the four eviction policies. LRU and LFU each use a
// single dimension; LargestFirst ranks purely by occupancy; Adaptive
// multiplies all three so a large, cold, rarely-touched entry always
// outranks a merely-idle small one, per age * 1/(access_count+1) *
// (1 + sqrt(size/1000)).
func (t *ShardedLruTracker) score(n *node, now time.Time) float64 {
	idleSeconds := now.Sub(n.lastAccessed).Seconds()
	if idleSeconds < 0 {
		idleSeconds = 0
	}
	frequencyPenalty := 1.0 / float64(n.accessCount+1)
	sizeMB := float64(n.size) / (1024 * 1024)

	switch t.policy {
	case PolicyLFU:
		return frequencyPenalty
	case PolicyLargestFirst:
		return sizeMB
	case PolicyAdaptive:
		return idleSeconds * frequencyPenalty * (1 + math.Sqrt(float64(n.size)/1000))
	default: // PolicyLRU
		return idleSeconds
	}
}

func sortCandidatesDesc(c []EvictionCandidate) {
	// Small insertion sort: eviction windows are bounded by
	// perShardWindow*lruShardCount, which stays small in practice, and
	// avoids pulling in sort for a handful of comparisons per call.
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && c[j].Score > c[j-1].Score; j-- {
			c[j], c[j-1] = c[j-1], c[j]
		}
	}
}

func (s *lruShard) insertFront(n *node) {
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
	s.len++
}

func (s *lruShard) moveToFront(n *node) {
	if n == s.head {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
}

func (s *lruShard) removeNode(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.head == n {
		s.head = n.next
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev, n.next = nil, nil
	s.len--
}
