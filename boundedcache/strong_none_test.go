package boundedcache

import "testing"

func TestStrong_NeverEvictsOnResize(t *testing.T) {
	t.Parallel()
	c, err := New[string, string](Options[string, string]{Name: "t", Capacity: 2, Variant: VariantStrong})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		_ = c.Put(k, k)
	}
	if err := c.Resize(1); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if c.Size() != 5 {
		t.Fatalf("population = %d, want unchanged 5 (Strong never evicts)", c.Size())
	}
}

func TestNone_NeverStoresAnything(t *testing.T) {
	t.Parallel()
	c, err := New[string, string](Options[string, string]{Name: "t", Capacity: 1, Variant: VariantNone})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Put("a", "1"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok := c.Get("a"); ok {
		t.Fatalf("None variant must always miss")
	}
	if c.Size() != 0 {
		t.Fatalf("population = %d, want 0", c.Size())
	}
}

func TestWeakAndSoft_BehaveAsLRU(t *testing.T) {
	t.Parallel()
	for _, variant := range []Variant{VariantWeak, VariantSoft} {
		c, err := New[string, string](Options[string, string]{Name: "t", Capacity: 2, Variant: variant})
		if err != nil {
			t.Fatalf("New(%v): %v", variant, err)
		}
		_ = c.Put("a", "1")
		if v, ok := c.Get("a"); !ok || v != "1" {
			t.Fatalf("Get(a) = %q, %v", v, ok)
		}
	}
}
