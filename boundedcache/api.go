// Package boundedcache implements five interchangeable bounded-cache
// variants — Clock, LRU (adaptive), WeakRef, SoftRef, Strong and None — all
// behind a single BoundedCache[K,V] contract.
//
// Concurrency: every method is safe for concurrent use by multiple
// goroutines. Get/Put/Remove run concurrently with each other; Resize/Clear
// serialize against all mutators of the same instance.
package boundedcache

import (
	"reflect"

	"github.com/graphkit/entitycache/errs"
)

// BoundedCache is a single-process map from K to V with a capacity and an
// eviction policy.
type BoundedCache[K comparable, V any] interface {
	// Put installs or replaces k -> v.
	Put(k K, v V) error
	// Get returns the current referent for k, or ok=false if absent.
	Get(k K) (v V, ok bool)
	// Remove evicts k on demand. Returns true if k was present.
	Remove(k K) bool
	// Resize changes capacity. Population is shrunk to <= n before Resize
	// returns (Strong is the one documented exception: see strong.go).
	Resize(n int) error
	// Clear empties the cache.
	Clear()
	// Size returns current population (best-effort for WeakRef/SoftRef).
	Size() int
}

// Variant selects one of the five eviction-policy families.
type Variant int

const (
	// VariantLRU is the default: sharded map + intrusive MRU/LRU list,
	// optionally resized by an AdaptiveCacheManager.
	VariantLRU Variant = iota
	// VariantClock is the second-chance clock algorithm over a circular
	// ring of referent pages.
	VariantClock
	// VariantWeak runs the same LRU machinery as VariantLRU. Go has no
	// runtime-managed weak references, so it behaves identically to
	// VariantLRU; New does not set Options.Reclaim for it.
	VariantWeak
	// VariantSoft runs the same LRU machinery as VariantLRU. Like
	// VariantWeak, it behaves identically to VariantLRU; New does not set
	// Options.Reclaim for it, and the Reclaim value has no effect on eviction
	// order or targetCapacity.
	VariantSoft
	// VariantStrong is unbounded; eviction is a no-op.
	VariantStrong
	// VariantNone is a pass-through; Put/Get are no-ops, always a miss.
	VariantNone
)

func isNilable[V any](v V) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}

// checkPutArgs enforces the InvalidArgument contract shared by every
// variant: neither k nor v may be a nil pointer/interface/map/slice/chan/func.
func checkPutArgs[K comparable, V any](k K, v V) error {
	if isNilable(k) {
		return errs.NewInvalidArgument("Put", "key must not be nil")
	}
	if isNilable(v) {
		return errs.NewInvalidArgument("Put", "value must not be nil")
	}
	return nil
}
