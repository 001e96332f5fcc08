package boundedcache

import (
	"strconv"
	"testing"
	"time"
)

// fakeSampler reports a fixed ratio, letting tests drive AdaptiveCacheManager
// deterministically instead of depending on actual runtime memory pressure.
type fakeSampler struct{ ratio float64 }

func (f fakeSampler) CurrentRatio() float64 { return f.ratio }

// Adaptive resize scenario: an LRU cache starts at 1000 entries; once heap
// pressure crosses the configured ratio, a Tick() must shrink it toward
// minSize, and the population observed immediately afterward must not
// exceed the requested target.
func TestAdaptive_TickShrinksUnderPressure(t *testing.T) {
	t.Parallel()
	c := newLRU(t, 1000)
	for i := 0; i < 1000; i++ {
		_ = c.Put(strconv.Itoa(i), "v")
	}

	mgr := NewAdaptiveCacheManager(0.7, time.Hour, fakeSampler{ratio: 0.7})
	mgr.RegisterResizable("nodes", c, 100, 1000)
	mgr.Tick()
	if c.Size() != 1000 {
		t.Fatalf("population = %d, want unchanged 1000 at ratio == threshold", c.Size())
	}

	mgr.sampler = fakeSampler{ratio: 1.0}
	mgr.Tick()
	if c.Size() > 1000 {
		t.Fatalf("population = %d, want shrunk", c.Size())
	}
	if c.Size() < 100 {
		t.Fatalf("population = %d, want clamped at minSize 100", c.Size())
	}
}

func TestAdaptive_TargetCapacity(t *testing.T) {
	t.Parallel()
	cases := []struct {
		ratio, heapRatio float64
		min, max, want   int
	}{
		{ratio: 0.5, heapRatio: 0.8, min: 100, max: 1000, want: 1000},
		{ratio: 0.8, heapRatio: 0.8, min: 100, max: 1000, want: 1000},
		{ratio: 1.0, heapRatio: 0.8, min: 100, max: 1000, want: 100},
		{ratio: 0.9, heapRatio: 0.8, min: 0, max: 1000, want: 500},
	}
	for _, tc := range cases {
		got := targetCapacity(tc.ratio, tc.heapRatio, tc.min, tc.max)
		if got != tc.want {
			t.Errorf("targetCapacity(%v,%v,%d,%d) = %d, want %d", tc.ratio, tc.heapRatio, tc.min, tc.max, got, tc.want)
		}
	}
}

func TestAdaptive_StartStopIsIdempotentAndSafe(t *testing.T) {
	t.Parallel()
	mgr := NewAdaptiveCacheManager(0.8, 5*time.Millisecond, fakeSampler{ratio: 0.1})
	c := newLRU(t, 10)
	mgr.RegisterResizable("x", c, 1, 10)
	mgr.Start()
	mgr.Start()
	time.Sleep(20 * time.Millisecond)
	mgr.Stop()
	mgr.Stop()
}

func TestAdaptive_HeapRatioClamped(t *testing.T) {
	t.Parallel()
	mgr := NewAdaptiveCacheManager(1.5, time.Second, fakeSampler{ratio: 0})
	if mgr.heapRatio != 0.95 {
		t.Fatalf("heapRatio = %v, want clamped to 0.95", mgr.heapRatio)
	}
	mgr2 := NewAdaptiveCacheManager(-1, time.Second, fakeSampler{ratio: 0})
	if mgr2.heapRatio != 0.1 {
		t.Fatalf("heapRatio = %v, want clamped to 0.1", mgr2.heapRatio)
	}
}
