package cache

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
)

// PrefetchPriority orders queued prefetch requests; higher runs first.
type PrefetchPriority int

const (
	PrefetchLow PrefetchPriority = iota
	PrefetchNormal
	PrefetchHigh
)

// PrefetchRequest names a batch of keys a caller expects to need soon,
// plus a loader the Prefetcher calls to materialize any key missing
// from every tier.
type PrefetchRequest struct {
	Keys     []Key
	Priority PrefetchPriority
	Loader   func(ctx context.Context, key Key) (*Data, error)
}

// prefetchItem is the heap element; seq breaks priority ties FIFO.
type prefetchItem struct {
	req PrefetchRequest
	seq uint64
}

type prefetchHeap []*prefetchItem

func (h prefetchHeap) Len() int { return len(h) }
func (h prefetchHeap) Less(i, j int) bool {
	if h[i].req.Priority != h[j].req.Priority {
		return h[i].req.Priority > h[j].req.Priority
	}
	return h[i].seq < h[j].seq
}
func (h prefetchHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *prefetchHeap) Push(x any)         { *h = append(*h, x.(*prefetchItem)) }
func (h *prefetchHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Prefetcher runs a bounded-concurrency worker pool that pulls the
// highest-priority queued request and, for each key not already
// resident in any tier, invokes the request's loader and hands the
// result to put. A disabled prefetcher drops submissions immediately
// rather than queuing them, so toggling it off under load sheds work
// instead of building backlog.
type Prefetcher struct {
	put     func(ctx context.Context, key Key, data *Data) error
	present func(key Key) bool

	mu      sync.Mutex
	cond    *sync.Cond
	queue   prefetchHeap
	nextSeq uint64
	enabled atomic.Bool
	closed  bool

	requested atomic.Uint64
	completed atomic.Uint64
	keysAdded atomic.Uint64
	bytesAdded atomic.Int64

	wg sync.WaitGroup
}

// NewPrefetcher starts workerCount background workers. put stores a
// loaded key at its natural size-selected tier; present reports whether
// a key is already resident anywhere, so the prefetcher skips loads for
// keys a concurrent Get already satisfied.
func NewPrefetcher(ctx context.Context, workerCount int, put func(ctx context.Context, key Key, data *Data) error, present func(key Key) bool) *Prefetcher {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Prefetcher{put: put, present: present}
	p.cond = sync.NewCond(&p.mu)
	p.enabled.Store(true)

	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	go func() {
		<-ctx.Done()
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		p.cond.Broadcast()
	}()
	return p
}

// Enable turns the prefetcher on or off. Submit silently drops requests
// while disabled.
func (p *Prefetcher) Enable(on bool) { p.enabled.Store(on) }

// Submit queues a prefetch request. It returns immediately; completion
// is reflected only in the Snapshot counters (no event is published).
// Requests submitted after Close are dropped.
func (p *Prefetcher) Submit(req PrefetchRequest) {
	if !p.enabled.Load() || len(req.Keys) == 0 {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.requested.Add(1)
	p.nextSeq++
	heap.Push(&p.queue, &prefetchItem{req: req, seq: p.nextSeq})
	p.mu.Unlock()
	p.cond.Signal()
}

func (p *Prefetcher) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed && len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		item := heap.Pop(&p.queue).(*prefetchItem)
		p.mu.Unlock()

		p.run(ctx, item.req)
	}
}

func (p *Prefetcher) run(ctx context.Context, req PrefetchRequest) {
	var loaded int
	var bytesLoaded int64
	for _, k := range req.Keys {
		if ctx.Err() != nil {
			break
		}
		if p.present(k) {
			continue
		}
		data, err := req.Loader(ctx, k)
		if err != nil || data == nil {
			continue
		}
		if err := p.put(ctx, k, data); err != nil {
			continue
		}
		loaded++
		bytesLoaded += int64(len(data.Bytes))
	}
	p.completed.Add(1)
	p.keysAdded.Add(uint64(loaded))
	p.bytesAdded.Add(bytesLoaded)
}

// Close stops accepting work and waits for in-flight requests to drain.
func (p *Prefetcher) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
}

// Snapshot reports cumulative prefetch counters.
func (p *Prefetcher) Snapshot() PrefetchSnapshot {
	return PrefetchSnapshot{
		Requested:  p.requested.Load(),
		Completed:  p.completed.Load(),
		KeysAdded:  p.keysAdded.Load(),
		BytesAdded: p.bytesAdded.Load(),
	}
}
