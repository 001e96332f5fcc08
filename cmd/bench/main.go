// Command bench runs a synthetic node creation and lookup workload against
// the entity cache and load coordinator, and optionally exposes
// pprof/Prometheus endpoints.
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
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/graphkit/entitycache/boundedcache"
	"github.com/graphkit/entitycache/config"
	"github.com/graphkit/entitycache/entitycache"
	"github.com/graphkit/entitycache/manager"
	pmet "github.com/graphkit/entitycache/metrics/prom"
	"github.com/graphkit/entitycache/memstore"
	"github.com/graphkit/entitycache/nameholder"
	"github.com/graphkit/entitycache/storeapi"
)

func variantFor(t config.CacheType) boundedcache.Variant {
	switch t {
	case config.CacheWeak:
		return boundedcache.VariantWeak
	case config.CacheSoft:
		return boundedcache.VariantSoft
	case config.CacheNone:
		return boundedcache.VariantNone
	case config.CacheStrong:
		return boundedcache.VariantStrong
	default:
		return boundedcache.VariantLRU
	}
}

func main() {
	var (
		manifest = flag.String("config", "", "optional YAML config manifest")
		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]")
		preload  = flag.Int("preload", 10_000, "nodes to preload before the timed run")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	cfg, err := config.Load(*manifest)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	nodeMetrics := pmet.NewCacheAdapter(nil, "entitycache", "bench", "node")
	relMetrics := pmet.NewCacheAdapter(nil, "entitycache", "bench", "relationship")
	loadWait := pmet.NewLoadWaitHistogram(nil, "entitycache", "bench")
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics: serving at %s", *metricsAddr)
		log.Println(http.ListenAndServe(*metricsAddr, nil))
	}()

	store := memstore.New()
	locks := memstore.NewLocks()
	variant := variantFor(cfg.CacheType)

	cache, err := entitycache.New(store, entitycache.Config{
		Nodes: entitycache.CacheConfig{
			Capacity: cfg.MaxNodeCacheSize,
			Variant:  variant,
			Metrics:  nodeMetrics,
		},
		Relationships: entitycache.CacheConfig{
			Capacity: cfg.MaxRelationshipSize,
			Variant:  variant,
			Metrics:  relMetrics,
		},
		LoadLockStripes:  cfg.LoadLockStripes,
		LoadWaitObserver: loadWait.Observe,
	})
	if err != nil {
		log.Fatalf("entitycache.New: %v", err)
	}

	relTypes := nameholder.NewRelationshipTypeHolder(store, store.RecordRelationshipType)
	propKeys := nameholder.NewPropertyKeyHolder(store, store.RecordPropertyKey)

	m := manager.New(manager.Config{
		Cache:  cache,
		Loader: store,
		Locks:  locks,
		IDs:    store,
		TxProvider: func(ctx context.Context) (storeapi.TransactionContext, error) {
			return memstore.TxProvider(ctx)
		},
		RelTypes:  relTypes,
		PropKeys:  propKeys,
		CacheType: string(cfg.CacheType),
	})

	ctxBase := context.Background()

	preloaded := make([]int64, 0, *preload)
	for i := 0; i < *preload; i++ {
		tx := memstore.NewTx()
		ctx := memstore.WithTx(ctxBase, tx)
		proxy, err := m.CreateNode(ctx)
		if err != nil {
			log.Fatalf("preload CreateNode: %v", err)
		}
		_ = tx.Commit()
		preloaded = append(preloaded, proxy.ID())
	}

	var reads, writes, creates, hits, misses uint64
	ctx, cancel := context.WithTimeout(ctxBase, *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(*workers)
	for w := 0; w < *workers; w++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(*seed + int64(id)*9973))

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				tx := memstore.NewTx()
				txCtx := memstore.WithTx(ctx, tx)

				if len(preloaded) > 0 && int(r.Int31n(100)) < *readPct {
					atomic.AddUint64(&reads, 1)
					nodeID := preloaded[r.Intn(len(preloaded))]
					if _, err := m.GetNodeByID(txCtx, nodeID); err != nil {
						atomic.AddUint64(&misses, 1)
					} else {
						atomic.AddUint64(&hits, 1)
					}
				} else {
					atomic.AddUint64(&writes, 1)
					if _, err := m.CreateNode(txCtx); err == nil {
						atomic.AddUint64(&creates, 1)
					}
				}
				_ = tx.Commit()
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("cache_type=%s max_nodes=%d max_rels=%d workers=%d dur=%v seed=%d\n",
		cfg.CacheType, cfg.MaxNodeCacheSize, cfg.MaxRelationshipSize, *workers, elapsed, *seed)
	fmt.Printf("reads=%d writes=%d creates=%d hits=%d misses=%d\n", reads, writes, creates, hits, misses)
}
