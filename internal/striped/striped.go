// Package striped implements the fixed-size striped mutex array used to
// serialize the "load from durable store" path per entity id.
//
// A pure function maps an id to one of N stripes (N fixed at construction,
// rounded to a power of two). Colliding ids serialize; disjoint ids proceed
// independently. Holders never acquire a second stripe lock, so there is no
// nested-striping deadlock cycle on this axis.
package striped

import (
	"sync"

	"github.com/graphkit/entitycache/internal/util"
)

// DefaultStripes is the default stripe-array length when a caller passes
// n <= 0. Not a contract — callers may configure a different count (e.g.
// via config.Config.LoadLockStripes).
const DefaultStripes = 32

// Locks is a fixed-size array of mutual-exclusion locks indexed by a pure
// function of entity id.
type Locks struct {
	mus []sync.Mutex
}

// New builds a Locks array of length n, rounded up to the next power of two
// (minimum 1). n <= 0 falls back to DefaultStripes.
func New(n int) *Locks {
	if n <= 0 {
		n = DefaultStripes
	}
	size := int(util.NextPow2(uint64(n)))
	if size < 1 {
		size = 1
	}
	return &Locks{mus: make([]sync.Mutex, size)}
}

// Len returns the stripe-array length (always a power of two).
func (l *Locks) Len() int { return len(l.mus) }

// stripeOf maps id to a stripe index. Negative or pathological ids are
// mapped correctly because Fnv64a hashes the bit pattern of id, not its
// signed numeric value.
func (l *Locks) stripeOf(id int64) int {
	h := util.Fnv64a(id)
	return util.ShardIndex(h, len(l.mus))
}

// Lock acquires the stripe lock owning id.
func (l *Locks) Lock(id int64) { l.mus[l.stripeOf(id)].Lock() }

// Unlock releases the stripe lock owning id.
func (l *Locks) Unlock(id int64) { l.mus[l.stripeOf(id)].Unlock() }

// WithLock runs fn with id's stripe lock held, implementing the
// acquire/re-check/load/install/release double-checked-locking idiom used
// by entitycache. The lock is always released, even if fn panics.
func WithLock(l *Locks, id int64, fn func() error) error {
	l.Lock(id)
	defer l.Unlock(id)
	return fn()
}
