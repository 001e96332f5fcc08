package boundedcache

import (
	"runtime"
	"sync"

	"github.com/graphkit/entitycache/internal/util"
	"github.com/graphkit/entitycache/policy"
)

// lruPolicy is the classic "move-to-front" Least-Recently-Used policy. It
// delegates list manipulation to policy.Hooks provided by the shard and
// never proposes an eviction of its own — the shard enforces the capacity
// limit and performs the actual eviction once a Put overflows it.
type lruPolicy[K comparable, V any] struct {
	h policy.Hooks[K, V]
}

type lruPolicyFactory[K comparable, V any] struct{}

func defaultLRUPolicy[K comparable, V any]() policy.Policy[K, V] {
	return lruPolicyFactory[K, V]{}
}

func (lruPolicyFactory[K, V]) New(h policy.Hooks[K, V]) policy.ShardPolicy[K, V] {
	return &lruPolicy[K, V]{h: h}
}

func (p *lruPolicy[K, V]) OnAdd(n policy.Node[K, V]) (evict policy.Node[K, V]) {
	p.h.PushFront(n)
	return nil
}

func (p *lruPolicy[K, V]) OnGet(n policy.Node[K, V])    { p.h.MoveToFront(n) }
func (p *lruPolicy[K, V]) OnUpdate(n policy.Node[K, V]) { p.h.MoveToFront(n) }
func (p *lruPolicy[K, V]) OnRemove(_ policy.Node[K, V]) {}

// lruShard is an independent partition of an lruCache with its own lock,
// map, and intrusive doubly linked list (head=MRU, tail=LRU). Adapted from
// the teacher's shard type, with TTL/cost accounting dropped — the entity
// cache has no notion of per-entry expiry or byte cost.
type lruShard[K comparable, V any] struct {
	mu   sync.RWMutex
	m    map[K]*node[K, V]
	head *node[K, V]
	tail *node[K, V]
	len  int
	cap  int

	pol policy.ShardPolicy[K, V]
	opt Options[K, V]

	hits   util.PaddedAtomicInt64
	misses util.PaddedAtomicInt64
	evicts util.PaddedAtomicUint64
}

func newLRUShard[K comparable, V any](capacity int, pol policy.Policy[K, V], opt Options[K, V]) *lruShard[K, V] {
	s := &lruShard[K, V]{
		m:   make(map[K]*node[K, V], capacity),
		cap: capacity,
		opt: opt,
	}
	s.pol = pol.New(shardHooks[K, V]{s: s})
	return s
}

func (s *lruShard[K, V]) put(k K, v V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.m[k]; ok {
		n.val = v
		s.pol.OnUpdate(n)
		s.enforceLimitLocked()
		return
	}

	n := &node[K, V]{key: k, val: v}
	s.m[k] = n
	if ev := s.pol.OnAdd(n); ev != nil {
		s.evictNode(ev.(*node[K, V]), EvictPolicy)
	}
	s.enforceLimitLocked()
}

func (s *lruShard[K, V]) get(k K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	if !ok {
		s.misses.Add(1)
		s.opt.Metrics.Miss()
		var zero V
		return zero, false
	}
	s.pol.OnGet(n)
	s.hits.Add(1)
	s.opt.Metrics.Hit()
	return n.val, true
}

func (s *lruShard[K, V]) remove(k K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	if !ok {
		return false
	}
	s.pol.OnRemove(n)
	s.removeNodeLocked(n)
	delete(s.m, k)
	return true
}

func (s *lruShard[K, V]) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.len
}

func (s *lruShard[K, V]) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = make(map[K]*node[K, V])
	s.head, s.tail = nil, nil
	s.len = 0
}

// resize changes the shard's capacity and evicts down to it if necessary.
func (s *lruShard[K, V]) resize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cap = n
	for s.len > s.cap {
		tail := s.tail
		if tail == nil {
			break
		}
		s.pol.OnRemove(tail)
		s.evictNode(tail, EvictCapacity)
	}
}

// evictOneIfNonEmpty evicts the current LRU tail, if any. Used by the
// cache-level Resize trim pass.
func (s *lruShard[K, V]) evictOneIfNonEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tail == nil {
		return false
	}
	s.pol.OnRemove(s.tail)
	s.evictNode(s.tail, EvictCapacity)
	return true
}

func (s *lruShard[K, V]) insertFrontLocked(n *node[K, V]) {
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

func (s *lruShard[K, V]) moveToFrontLocked(n *node[K, V]) {
	if n == s.head {
		return
	}
	s.detachLocked(n)
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

func (s *lruShard[K, V]) detachLocked(n *node[K, V]) {
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
}

func (s *lruShard[K, V]) removeNodeLocked(n *node[K, V]) {
	s.detachLocked(n)
	s.len--
}

func (s *lruShard[K, V]) evictNode(n *node[K, V], reason EvictReason) {
	s.removeNodeLocked(n)
	delete(s.m, n.key)
	s.evicts.Add(1)
	s.opt.Metrics.Evict(reason)
	if cb := s.opt.OnEvict; cb != nil {
		cb(n.key, n.val, reason)
	}
}

func (s *lruShard[K, V]) enforceLimitLocked() {
	for s.len > s.cap {
		if s.tail == nil {
			break
		}
		s.pol.OnRemove(s.tail)
		s.evictNode(s.tail, EvictPolicy)
	}
	s.opt.Metrics.Size(s.len)
}

// shardHooks adapts an lruShard's list operations to policy.Hooks.
type shardHooks[K comparable, V any] struct{ s *lruShard[K, V] }

func (h shardHooks[K, V]) MoveToFront(x policy.Node[K, V]) { h.s.moveToFrontLocked(x.(*node[K, V])) }
func (h shardHooks[K, V]) PushFront(x policy.Node[K, V])   { h.s.insertFrontLocked(x.(*node[K, V])) }
func (h shardHooks[K, V]) Remove(x policy.Node[K, V])      { h.s.removeNodeLocked(x.(*node[K, V])) }
func (h shardHooks[K, V]) Back() policy.Node[K, V] {
	if h.s.tail == nil {
		return nil
	}
	return h.s.tail
}
func (h shardHooks[K, V]) Len() int { return h.s.len }

// lruCache is the sharded LRU/Weak/Soft BoundedCache implementation.
type lruCache[K comparable, V any] struct {
	shards []*lruShard[K, V]
	hash   func(K) uint64
	opt    Options[K, V]
	mu     sync.Mutex // guards Resize/Clear against concurrent structural changes
}

func newLRUCache[K comparable, V any](opt Options[K, V]) (*lruCache[K, V], error) {
	if opt.Name == "" {
		return nil, errInvalidName
	}
	if opt.Capacity <= 0 {
		return nil, errInvalidCapacity
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	pol := opt.Policy
	if pol == nil {
		pol = defaultLRUPolicy[K, V]()
	}

	sh := opt.Shards
	if sh <= 0 {
		auto := 2 * runtime.GOMAXPROCS(0)
		sh = int(util.NextPow2(uint64(auto)))
	} else {
		sh = int(util.NextPow2(uint64(sh)))
	}
	if sh < 1 {
		sh = 1
	}

	shards := make([]*lruShard[K, V], sh)
	perShard := (opt.Capacity + sh - 1) / sh
	for i := range shards {
		shards[i] = newLRUShard[K, V](perShard, pol, opt)
	}

	return &lruCache[K, V]{
		shards: shards,
		hash:   util.Fnv64a[K],
		opt:    opt,
	}, nil
}

func (c *lruCache[K, V]) shardFor(k K) *lruShard[K, V] {
	h := c.hash(k)
	return c.shards[util.ShardIndex(h, len(c.shards))]
}

func (c *lruCache[K, V]) Put(k K, v V) error {
	if err := checkPutArgs(k, v); err != nil {
		return err
	}
	c.shardFor(k).put(k, v)
	return nil
}

func (c *lruCache[K, V]) Get(k K) (V, bool) { return c.shardFor(k).get(k) }

func (c *lruCache[K, V]) Remove(k K) bool { return c.shardFor(k).remove(k) }

func (c *lruCache[K, V]) Size() int {
	total := 0
	for _, s := range c.shards {
		total += s.size()
	}
	return total
}

func (c *lruCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.shards {
		s.clear()
	}
}

// Resize splits n evenly across shards and shrinks each shard to its new
// share, then runs a global round-robin trim pass so the contract —
// population <= n immediately on return — holds exactly, not just
// approximately (per-shard ceil division alone can overshoot n slightly).
func (c *lruCache[K, V]) Resize(n int) error {
	if n <= 0 {
		return errInvalidCapacity
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	base, rem := n/len(c.shards), n%len(c.shards)
	for i, s := range c.shards {
		perShard := base
		if i < rem {
			perShard++
		}
		if perShard < 1 {
			perShard = 1
		}
		s.resize(perShard)
	}

	for c.sizeLocked() > n {
		evicted := false
		for _, s := range c.shards {
			if s.evictOneIfNonEmpty() {
				evicted = true
				if c.sizeLocked() <= n {
					break
				}
			}
		}
		if !evicted {
			break
		}
	}
	return nil
}

func (c *lruCache[K, V]) sizeLocked() int { return c.Size() }
