package boundedcache

import "testing"

func newClock(t *testing.T, capacity int) BoundedCache[string, string] {
	t.Helper()
	c, err := New[string, string](Options[string, string]{Name: "t", Capacity: capacity, Variant: VariantClock})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// Exercises the capacity-3 second-chance scenario: put A, B, C; read A
// (giving it a second chance); put D. D and A must both be resident
// afterward, and exactly one of {B, C} must have been evicted.
func TestClock_SecondChanceProtectsRecentlyRead(t *testing.T) {
	t.Parallel()
	c := newClock(t, 3)

	_ = c.Put("A", "a")
	_ = c.Put("B", "b")
	_ = c.Put("C", "c")
	if _, ok := c.Get("A"); !ok {
		t.Fatalf("A must be resident before eviction")
	}

	if err := c.Put("D", "d"); err != nil {
		t.Fatalf("Put(D): %v", err)
	}

	if c.Size() != 3 {
		t.Fatalf("population = %d, want 3", c.Size())
	}
	if _, ok := c.Get("D"); !ok {
		t.Fatalf("D must be resident")
	}
	if _, ok := c.Get("A"); !ok {
		t.Fatalf("A must survive (was read before the eviction)")
	}

	_, bOK := c.Get("B")
	_, cOK := c.Get("C")
	if bOK == cOK {
		t.Fatalf("exactly one of {B, C} must be evicted, got B=%v C=%v", bOK, cOK)
	}
}

func TestClock_PutUpdatesExistingKeyInPlace(t *testing.T) {
	t.Parallel()
	c := newClock(t, 4)
	_ = c.Put("k", "v1")
	_ = c.Put("k", "v2")
	if v, ok := c.Get("k"); !ok || v != "v2" {
		t.Fatalf("Get(k) = %q, %v, want v2", v, ok)
	}
	if c.Size() != 1 {
		t.Fatalf("population = %d, want 1", c.Size())
	}
}

func TestClock_RemoveFreesSlotForReuse(t *testing.T) {
	t.Parallel()
	c := newClock(t, 2)
	_ = c.Put("A", "a")
	_ = c.Put("B", "b")
	if !c.Remove("A") {
		t.Fatalf("Remove(A) must return true")
	}
	if c.Size() != 1 {
		t.Fatalf("population = %d, want 1", c.Size())
	}
	if err := c.Put("C", "c"); err != nil {
		t.Fatalf("Put(C): %v", err)
	}
	if c.Size() != 2 {
		t.Fatalf("population = %d, want 2", c.Size())
	}
	if _, ok := c.Get("B"); !ok {
		t.Fatalf("B must still be resident")
	}
	if _, ok := c.Get("C"); !ok {
		t.Fatalf("C must be resident")
	}
}

func TestClock_ResizeEvictsDownToTarget(t *testing.T) {
	t.Parallel()
	c := newClock(t, 8)
	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		_ = c.Put(k, k)
	}
	if err := c.Resize(3); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if c.Size() > 3 {
		t.Fatalf("population = %d, want <= 3 immediately after Resize", c.Size())
	}
}

func TestClock_InvalidCapacity(t *testing.T) {
	t.Parallel()
	if _, err := New[string, string](Options[string, string]{Name: "t", Capacity: 0, Variant: VariantClock}); err == nil {
		t.Fatalf("New with Capacity<=0 must fail")
	}
}
