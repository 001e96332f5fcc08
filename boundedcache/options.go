package boundedcache

import "github.com/graphkit/entitycache/policy"

// EvictReason explains why an entry left the cache.
type EvictReason int

const (
	// EvictPolicy — removed by the active eviction policy (Clock/LRU).
	EvictPolicy EvictReason = iota
	// EvictCapacity — removed to satisfy a Resize shrink.
	EvictCapacity
	// EvictManual — removed by an explicit Remove/Clear call. No variant
	// reports it: Remove and Clear emit no eviction metric or OnEvict call.
	EvictManual
)

// ReclaimKind tags the aggressiveness an LRU-backed variant would report to
// AdaptiveCacheManager, for VariantWeak/VariantSoft. Go has no runtime
// analogue of weak/soft references, so both variants run the same LRU
// machinery as VariantLRU today; the tag is recorded on Options but
// targetCapacity does not yet look at it, so setting Reclaim currently has
// no observable effect.
type ReclaimKind int

const (
	// ReclaimStrong is the zero value. Like the other tags it does not
	// change what AdaptiveCacheManager does: a registered cache is resized
	// under pressure whatever its Reclaim value.
	ReclaimStrong ReclaimKind = iota
	// ReclaimSoft is reserved for a shrink-toward-minSize policy that only
	// kicks in once pressure exceeds the configured heap ratio.
	ReclaimSoft
	// ReclaimWeak is reserved for a shrink-toward-minSize policy more eager
	// than ReclaimSoft.
	ReclaimWeak
)

// Metrics exposes cache-level observability hooks. NoopMetrics is used when
// Options.Metrics is nil.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int)
}

// Clock abstracts a time source (not to be confused with the Clock cache
// Variant). No cache variant reads Options.Clock; setting it has no effect.
type Clock interface{ NowUnixNano() int64 }

// Options configures a BoundedCache instance.
type Options[K comparable, V any] struct {
	// Name identifies the cache instance in logs/metrics; required.
	Name string

	// Capacity is the entry-count limit. Required (> 0) for every variant
	// except Strong and None.
	Capacity int

	// Variant selects the eviction-policy family. Zero value is
	// VariantLRU.
	Variant Variant

	// Shards controls internal sharding for LRU/Weak/Soft variants only
	// (Clock uses a single global ring — see clock.go). 0 picks an automatic
	// value.
	Shards int

	// Reclaim records the aggressiveness intended for Weak/Soft variants.
	// Not yet consulted by targetCapacity; see ReclaimKind.
	Reclaim ReclaimKind

	// Policy overrides the eviction policy for the LRU/Weak/Soft variants.
	// nil uses the built-in move-to-front LRU policy.
	Policy policy.Policy[K, V]

	// OnEvict is called synchronously under the relevant lock for every
	// eviction; keep callbacks lightweight.
	OnEvict func(k K, v V, reason EvictReason)

	Metrics Metrics
	Clock   Clock
}
