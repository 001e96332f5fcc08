package boundedcache

import "sync"

// strongCache is the unbounded Strong variant: a plain map, eviction is a
// no-op. Resize only updates a reported capacity — it is advisory and never
// evicts, since an unbounded cache has no population ceiling to enforce.
type strongCache[K comparable, V any] struct {
	mu       sync.RWMutex
	m        map[K]V
	capacity int // advisory only; never enforced
	opt      Options[K, V]
}

func newStrongCache[K comparable, V any](opt Options[K, V]) (*strongCache[K, V], error) {
	if opt.Name == "" {
		return nil, errInvalidName
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	return &strongCache[K, V]{m: make(map[K]V), capacity: opt.Capacity, opt: opt}, nil
}

func (c *strongCache[K, V]) Put(k K, v V) error {
	if err := checkPutArgs(k, v); err != nil {
		return err
	}
	c.mu.Lock()
	c.m[k] = v
	n := len(c.m)
	c.mu.Unlock()
	c.opt.Metrics.Size(n)
	return nil
}

func (c *strongCache[K, V]) Get(k K) (V, bool) {
	c.mu.RLock()
	v, ok := c.m[k]
	c.mu.RUnlock()
	if ok {
		c.opt.Metrics.Hit()
	} else {
		c.opt.Metrics.Miss()
	}
	return v, ok
}

func (c *strongCache[K, V]) Remove(k K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.m[k]; !ok {
		return false
	}
	delete(c.m, k)
	return true
}

func (c *strongCache[K, V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

func (c *strongCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[K]V)
}

// Resize updates the advisory capacity only. Strong is unbounded with a
// no-op evictor, so there is nothing to shrink.
func (c *strongCache[K, V]) Resize(n int) error {
	if n <= 0 {
		return errInvalidCapacity
	}
	c.mu.Lock()
	c.capacity = n
	c.mu.Unlock()
	return nil
}
