package nameholder

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

// Scenario S6: GetOrCreate("root") called from 32 goroutines returns equal
// ids; the allocator runs exactly once even under concurrent first use.
func TestGetOrCreate_Idempotent(t *testing.T) {
	t.Parallel()
	var calls int32
	h := New[int64](func(ctx context.Context, name string) (int64, error) {
		atomic.AddInt32(&calls, 1)
		return 42, nil
	})

	const n = 32
	ids := make([]int64, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			id, err := h.GetOrCreate(context.Background(), "root")
			if err != nil {
				t.Errorf("GetOrCreate: %v", err)
				return
			}
			ids[i] = id
		}()
	}
	wg.Wait()

	for _, id := range ids {
		if id != 42 {
			t.Fatalf("got id %d, want 42 for every caller", id)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("allocator called %d times, want exactly 1", got)
	}
	if h.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", h.Len())
	}
}

func TestGetOrCreate_RejectsEmptyName(t *testing.T) {
	t.Parallel()
	h := New[int64](func(ctx context.Context, name string) (int64, error) { return 1, nil })
	if _, err := h.GetOrCreate(context.Background(), ""); err == nil {
		t.Fatalf("empty name must be rejected")
	}
}

func TestLookup_MissesUntilCreated(t *testing.T) {
	t.Parallel()
	h := New[int64](func(ctx context.Context, name string) (int64, error) { return 7, nil })
	if _, ok := h.Lookup("x"); ok {
		t.Fatalf("Lookup must miss before creation")
	}
	if _, err := h.GetOrCreate(context.Background(), "x"); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if id, ok := h.Lookup("x"); !ok || id != 7 {
		t.Fatalf("Lookup after create = %d, %v, want 7, true", id, ok)
	}
}

func TestPreload_PublishesWithoutAllocating(t *testing.T) {
	t.Parallel()
	var calls int32
	h := New[int64](func(ctx context.Context, name string) (int64, error) {
		atomic.AddInt32(&calls, 1)
		return 0, nil
	})
	h.Preload("known", 99)
	id, err := h.GetOrCreate(context.Background(), "known")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if id != 99 {
		t.Fatalf("id = %d, want 99", id)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("allocator must not run for a preloaded name")
	}
}
