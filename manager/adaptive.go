package manager

import (
	"time"

	"github.com/graphkit/entitycache/boundedcache"
)

// AdaptiveCacheOptions configures the background heap-pressure resizer for
// both underlying caches.
type AdaptiveCacheOptions struct {
	HeapRatio           float64
	Interval            time.Duration
	MinNodeCacheSize    int
	MaxNodeCacheSize    int
	MinRelationshipSize int
	MaxRelationshipSize int
	Sampler             boundedcache.PressureSampler
}

// ConfigureAdaptiveCache builds and starts an AdaptiveCacheManager registered
// against both of the EntityManager's entitycache caches. Callers own the
// returned manager's lifetime and should Stop it on shutdown.
func (m *EntityManager) ConfigureAdaptiveCache(opts AdaptiveCacheOptions) *boundedcache.AdaptiveCacheManager {
	mgr := boundedcache.NewAdaptiveCacheManager(opts.HeapRatio, opts.Interval, opts.Sampler)
	mgr.RegisterResizable("entitycache.nodes", m.cache.NodeCache(), opts.MinNodeCacheSize, opts.MaxNodeCacheSize)
	mgr.RegisterResizable("entitycache.relationships", m.cache.RelationshipCache(), opts.MinRelationshipSize, opts.MaxRelationshipSize)
	mgr.Start()
	return mgr
}
