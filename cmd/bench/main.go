// Command bench runs synthetic cache and registry workloads and
// exposes a Prometheus metrics endpoint plus an optional pprof endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/objectfs/storagecache/cache"
	"github.com/objectfs/storagecache/cache/storage"
	"github.com/objectfs/storagecache/internal/crd"
	"github.com/objectfs/storagecache/metrics/prom"
	"github.com/objectfs/storagecache/registry"
)

func main() {
	// ---- Flags ----
	var (
		evictPolicy = flag.String("evict", "lru", "eviction policy: lru | lfu | largest | adaptive")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines per phase")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration per phase")
		readPct  = flag.Int("reads", 80, "cache read percentage [0..100]")

		keys    = flag.Int("keys", 1_000_000, "keyspace size")
		zipfS   = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV   = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload = flag.Int("preload", 10_000, "cache preload entry count")

		nodes = flag.Int("nodes", 5_000, "registry node count")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	cacheMetrics := prom.NewCacheAdapter(nil, "storagecache", "bench", nil)
	registryMetrics := prom.NewRegistryAdapter(nil, "storagecache", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics: serving at %s", *metricsAddr)
		log.Println(http.ListenAndServe(*metricsAddr, nil))
	}()

	policy, err := parsePolicy(*evictPolicy)
	if err != nil {
		log.Fatal(err)
	}

	// ---- Build cache ----
	c := cache.NewMultiTierCache(map[cache.Tier]storage.TierStorage{
		cache.L1Memory:     storage.NewMemoryStorage(),
		cache.L3Persistent: storage.NewPersistentStorage(nil),
	}, cache.Options{EvictionPolicy: policy, Metrics: cacheMetrics})
	defer func() { _ = c.Close() }()

	// ---- Preload ----
	ctx := context.Background()
	for i := 0; i < *preload; i++ {
		k := cache.NewKey("bench", "k:"+strconv.Itoa(i))
		_ = c.Put(ctx, k, cache.NewData([]byte("v"+strconv.Itoa(i))))
	}

	runCacheBench(ctx, c, cacheBenchConfig{
		workers: *workers, duration: *duration, readPct: *readPct,
		keys: *keys, zipfS: *zipfS, zipfV: *zipfV, seed: *seed,
	})

	// ---- Registry phase ----
	r := registry.New(256)
	runRegistryBench(r, *workers, *duration, *nodes, *seed)
	registryMetrics.Observe(r.Stats())
	registryMetrics.ObserveShards(r.ShardStats())

	fmt.Printf("cache entries(L1)=%d  registry nodes=%d\n",
		c.Stats().PerTier[cache.L1Memory].EntryCount, r.Stats().TotalNodes)
}

func parsePolicy(s string) (cache.EvictionPolicy, error) {
	switch s {
	case "lru":
		return cache.PolicyLRU, nil
	case "lfu":
		return cache.PolicyLFU, nil
	case "largest":
		return cache.PolicyLargestFirst, nil
	case "adaptive":
		return cache.PolicyAdaptive, nil
	default:
		return 0, fmt.Errorf("unknown eviction policy: %q (use lru, lfu, largest, or adaptive)", s)
	}
}

type cacheBenchConfig struct {
	workers  int
	duration time.Duration
	readPct  int
	keys     int
	zipfS    float64
	zipfV    float64
	seed     int64
}

func runCacheBench(ctx context.Context, c *cache.MultiTierCache, cfg cacheBenchConfig) {
	var reads, writes, hits, misses, total uint64
	runCtx, cancel := context.WithTimeout(ctx, cfg.duration)
	defer cancel()

	keysMax := uint64(cfg.keys - 1)
	workersN := cfg.workers
	if workersN <= 0 {
		workersN = 1
	}

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(cfg.seed + int64(id)*9973))
			localZipf := rand.NewZipf(localR, cfg.zipfS, cfg.zipfV, keysMax)
			keyByZipf := func() cache.Key {
				return cache.NewKey("bench", "k:"+strconv.FormatUint(localZipf.Uint64(), 10))
			}

			for {
				select {
				case <-runCtx.Done():
					return
				default:
				}

				atomic.AddUint64(&total, 1)
				if int(localR.Int31n(100)) < cfg.readPct {
					atomic.AddUint64(&reads, 1)
					if _, err := c.Get(runCtx, keyByZipf()); err == nil {
						atomic.AddUint64(&hits, 1)
					} else {
						atomic.AddUint64(&misses, 1)
					}
				} else {
					atomic.AddUint64(&writes, 1)
					_ = c.Put(runCtx, keyByZipf(), cache.NewData([]byte("v"+strconv.Itoa(localR.Int()))))
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	ops := atomic.LoadUint64(&total)
	readsN := atomic.LoadUint64(&reads)
	writesN := atomic.LoadUint64(&writes)
	hitsN := atomic.LoadUint64(&hits)
	missesN := atomic.LoadUint64(&misses)

	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hitsN) / float64(readsN) * 100
	}

	fmt.Printf("[cache] workers=%d keys=%d dur=%v seed=%d\n", workersN, cfg.keys, elapsed, cfg.seed)
	fmt.Printf("[cache] ops=%d (%.0f ops/s)  reads=%d  writes=%d\n",
		ops, float64(ops)/elapsed.Seconds(), readsN, writesN)
	fmt.Printf("[cache] hits=%d  misses=%d  hit-rate=%.2f%%\n", hitsN, missesN, hitRate)
}

func runRegistryBench(r *registry.NodeRegistry, workers int, duration time.Duration, nodeCount int, seed int64) {
	if workers <= 0 {
		workers = 1
	}

	status := crd.StorageNodeStatus{
		Online:             true,
		TotalCapacityBytes: 1 << 40,
		AvailableBytes:     1 << 39,
		Drives:             []crd.DriveStatus{{ID: "nvme0", DevicePath: "/dev/nvme0n1", CapacityBytes: 1 << 40, Healthy: true}},
	}

	var registrations, heartbeats uint64
	start := time.Now()
	runCtx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			localR := rand.New(rand.NewSource(seed + int64(id)*7919))
			for i := id; i < nodeCount; i += workers {
				nodeID := registry.NodeID("node-" + strconv.Itoa(i))
				if err := r.Register(nodeID, "bench-host", status); err == nil {
					atomic.AddUint64(&registrations, 1)
				}
			}

			span := nodeCount/workers + 1
			for {
				select {
				case <-runCtx.Done():
					return
				default:
				}
				nodeID := registry.NodeID("node-" + strconv.Itoa(id+localR.Intn(span)*workers))
				if r.Heartbeat(nodeID) == nil {
					atomic.AddUint64(&heartbeats, 1)
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("[registry] workers=%d nodes=%d dur=%v registrations=%d heartbeats=%d (%.0f hb/s)\n",
		workers, nodeCount, elapsed, atomic.LoadUint64(&registrations), atomic.LoadUint64(&heartbeats),
		float64(atomic.LoadUint64(&heartbeats))/elapsed.Seconds())
}
