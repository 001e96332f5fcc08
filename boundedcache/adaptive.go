package boundedcache

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/graphkit/entitycache/log"
)

// PressureSampler reports current heap pressure as a ratio in [0, 1+). Tests
// inject a fake to avoid depending on the real runtime's GC behavior.
type PressureSampler interface {
	CurrentRatio() float64
}

// runtimeSampler samples runtime.MemStats against the process's configured
// soft memory limit (GOMEMLIMIT, or debug.SetMemoryLimit). When no limit is
// configured, SetMemoryLimit(-1) returns math.MaxInt64 and the ratio is
// effectively always near zero — adaptive resizing is opt-in and expected
// to be paired with a configured memory limit in production.
type runtimeSampler struct{}

func (runtimeSampler) CurrentRatio() float64 {
	limit := debug.SetMemoryLimit(-1)
	if limit <= 0 {
		return 0
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapAlloc) / float64(limit)
}

// resizable is the subset of BoundedCache that AdaptiveCacheManager needs.
type resizable interface {
	Resize(n int) error
	Size() int
}

type registration struct {
	name    string
	cache   resizable
	minSize int
	maxSize int
}

// AdaptiveCacheManager periodically samples heap pressure and resizes every
// registered cache to a capacity derived from the configured heap ratio,
// clamped to [minSize, maxSize].
type AdaptiveCacheManager struct {
	mu        sync.Mutex
	regs      []registration
	heapRatio float64
	sampler   PressureSampler
	interval  time.Duration

	stop      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewAdaptiveCacheManager builds a manager targeting heapRatio (clamped to
// [0.1, 0.95]) sampled every interval. A nil sampler uses the real runtime.
func NewAdaptiveCacheManager(heapRatio float64, interval time.Duration, sampler PressureSampler) *AdaptiveCacheManager {
	if heapRatio < 0.1 {
		heapRatio = 0.1
	}
	if heapRatio > 0.95 {
		heapRatio = 0.95
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if sampler == nil {
		sampler = runtimeSampler{}
	}
	return &AdaptiveCacheManager{
		heapRatio: heapRatio,
		sampler:   sampler,
		interval:  interval,
		stop:      make(chan struct{}),
	}
}

// RegisterResizable adds a cache to the adaptive rotation. minSize/maxSize
// bound the capacities the manager will ever request. Cache is typed as the
// minimal resizable contract rather than BoundedCache[K,V] directly, since
// entitycache registers caches keyed by int64 but valued by
// *entity.InternalNode / *entity.InternalRelationship.
func (m *AdaptiveCacheManager) RegisterResizable(name string, cache resizable, minSize, maxSize int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs = append(m.regs, registration{name: name, cache: cache, minSize: minSize, maxSize: maxSize})
}

// Start launches the background sampling loop. Safe to call once; a second
// call is a no-op.
func (m *AdaptiveCacheManager) Start() {
	m.startOnce.Do(func() {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			ticker := time.NewTicker(m.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					m.tick()
				case <-m.stop:
					return
				}
			}
		}()
	})
}

// Stop halts the background loop and waits for it to exit.
func (m *AdaptiveCacheManager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}

// Tick runs one sampling-and-resize pass synchronously; exported for tests
// and for callers that prefer to drive resizing explicitly rather than via
// the background ticker.
func (m *AdaptiveCacheManager) Tick() { m.tick() }

func (m *AdaptiveCacheManager) tick() {
	ratio := m.sampler.CurrentRatio()
	logger := log.WithComponent("boundedcache.adaptive")

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.regs {
		target := targetCapacity(ratio, m.heapRatio, r.minSize, r.maxSize)
		if target == r.cache.Size() {
			continue
		}
		if err := r.cache.Resize(target); err != nil {
			logger.Warn().Str("cache", r.name).Err(err).Msg("adaptive resize failed")
			continue
		}
		logger.Debug().Str("cache", r.name).Float64("ratio", ratio).Int("target", target).Msg("adaptive resize")
	}
}

// targetCapacity maps the sampled ratio against the configured threshold
// into a capacity in [minSize, maxSize]: at or below the threshold the
// cache gets maxSize; above it, capacity shrinks linearly with how far past
// the threshold the ratio has gone, floored at minSize once the ratio
// reaches 1.0 (heap fully committed).
func targetCapacity(ratio, heapRatio float64, minSize, maxSize int) int {
	if maxSize <= minSize {
		return maxSize
	}
	if ratio <= heapRatio {
		return maxSize
	}
	overshoot := (ratio - heapRatio) / (1.0 - heapRatio)
	if overshoot > 1 {
		overshoot = 1
	}
	span := maxSize - minSize
	target := maxSize - int(float64(span)*overshoot)
	if target < minSize {
		target = minSize
	}
	return target
}
