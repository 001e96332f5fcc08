package entitycache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/graphkit/entitycache/boundedcache"
	"github.com/graphkit/entitycache/entity"
	"github.com/graphkit/entitycache/storeapi"
)

// fakeLoader is a minimal storeapi.RecordLoader double for entitycache
// tests — only the methods entitycache actually calls are exercised.
type fakeLoader struct {
	mu sync.Mutex

	nodes map[int64]storeapi.NodeRecord
	rels  map[int64]storeapi.RelRecord

	nodeLoadCalls map[int64]*int32
	moreRelBatches map[int64][]map[storeapi.Direction][]storeapi.RelRecord
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		nodes:          make(map[int64]storeapi.NodeRecord),
		rels:           make(map[int64]storeapi.RelRecord),
		nodeLoadCalls:  make(map[int64]*int32),
		moreRelBatches: make(map[int64][]map[storeapi.Direction][]storeapi.RelRecord),
	}
}

func (f *fakeLoader) LoadLightNode(ctx context.Context, id int64) (*storeapi.NodeRecord, bool, error) {
	f.mu.Lock()
	counter, ok := f.nodeLoadCalls[id]
	if !ok {
		var c int32
		counter = &c
		f.nodeLoadCalls[id] = counter
	}
	atomic.AddInt32(counter, 1)
	rec, found := f.nodes[id]
	f.mu.Unlock()
	if !found {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (f *fakeLoader) LoadLightRelationship(ctx context.Context, id int64) (*storeapi.RelRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, found := f.rels[id]
	if !found {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (f *fakeLoader) GetMoreRelationships(ctx context.Context, nodeID int64, cursor storeapi.Cursor) (map[storeapi.Direction][]storeapi.RelRecord, storeapi.Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	batches := f.moreRelBatches[nodeID]
	idx := int(cursor.Offset)
	if idx >= len(batches) {
		return nil, storeapi.Cursor{Offset: cursor.Offset, Done: true}, nil
	}
	next := storeapi.Cursor{Offset: cursor.Offset + 1, Done: idx+1 >= len(batches)}
	return batches[idx], next, nil
}

func (f *fakeLoader) CreateNode(ctx context.Context, id int64) error                            { return nil }
func (f *fakeLoader) CreateRelationship(ctx context.Context, id int64, typeID int32, s, e int64) error { return nil }
func (f *fakeLoader) NodeAddProperty(ctx context.Context, id int64, key string, v any) error     { return nil }
func (f *fakeLoader) NodeChangeProperty(ctx context.Context, id int64, key string, v any) error  { return nil }
func (f *fakeLoader) NodeRemoveProperty(ctx context.Context, id int64, key string) error         { return nil }
func (f *fakeLoader) RelAddProperty(ctx context.Context, id int64, key string, v any) error      { return nil }
func (f *fakeLoader) RelChangeProperty(ctx context.Context, id int64, key string, v any) error   { return nil }
func (f *fakeLoader) RelRemoveProperty(ctx context.Context, id int64, key string) error          { return nil }
func (f *fakeLoader) GraphAddProperty(ctx context.Context, key string, v any) error              { return nil }
func (f *fakeLoader) GraphChangeProperty(ctx context.Context, key string, v any) error           { return nil }
func (f *fakeLoader) GraphRemoveProperty(ctx context.Context, key string) error                  { return nil }
func (f *fakeLoader) DeleteNode(ctx context.Context, id int64) (map[string]any, error)           { return nil, nil }
func (f *fakeLoader) DeleteRelationship(ctx context.Context, id int64) (map[string]any, error)   { return nil, nil }
func (f *fakeLoader) GetHighestIDInUse(ctx context.Context, kind storeapi.IdKind) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var max int64 = -1
	for id := range f.nodes {
		if id > max {
			max = id
		}
	}
	return max, nil
}
func (f *fakeLoader) IsCreated(ctx context.Context, id int64, kind storeapi.IdKind) (bool, error) {
	return true, nil
}

func newTestCache(t *testing.T, loader *fakeLoader) *EntityCache {
	t.Helper()
	c, err := New(loader, Config{
		Nodes:         CacheConfig{Capacity: 100, Variant: boundedcache.VariantLRU},
		Relationships: CacheConfig{Capacity: 100, Variant: boundedcache.VariantLRU},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// Scenario S1: two goroutines call GetNodeByID(42) simultaneously on an
// empty cache; the loader is invoked exactly once for id 42 and both
// goroutines receive a node with id 42.
func TestGetNodeByID_StripedLoaderCoalescesConcurrentMisses(t *testing.T) {
	t.Parallel()
	loader := newFakeLoader()
	loader.nodes[42] = storeapi.NodeRecord{ID: 42, FirstPropertyID: entity.NoID, FirstRelationshipID: entity.NoID}
	c := newTestCache(t, loader)

	var wg sync.WaitGroup
	results := make([]*entity.InternalNode, 2)
	errsOut := make([]error, 2)
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := c.GetNodeByID(context.Background(), 42)
			results[i] = n
			errsOut[i] = err
		}()
	}
	wg.Wait()

	for i, err := range errsOut {
		if err != nil {
			t.Fatalf("goroutine %d: GetNodeByID: %v", i, err)
		}
		if results[i].ID() != 42 {
			t.Fatalf("goroutine %d: ID() = %d, want 42", i, results[i].ID())
		}
	}

	loader.mu.Lock()
	calls := atomic.LoadInt32(loader.nodeLoadCalls[42])
	loader.mu.Unlock()
	if calls != 1 {
		t.Fatalf("loader called %d times for id 42, want exactly 1", calls)
	}
}

func TestGetNodeByID_NotFoundWhenLoaderMisses(t *testing.T) {
	t.Parallel()
	c := newTestCache(t, newFakeLoader())
	if _, err := c.GetNodeByID(context.Background(), 7); err == nil {
		t.Fatalf("GetNodeByID must fail for an id the loader doesn't know")
	}
}

// Evict-then-reload idempotence: EvictNode then GetNodeByID is
// equivalent to GetNodeByID alone, modulo one extra loader call.
func TestEvictNode_ThenGetNodeByID_ReloadsTransparently(t *testing.T) {
	t.Parallel()
	loader := newFakeLoader()
	loader.nodes[1] = storeapi.NodeRecord{ID: 1, FirstPropertyID: entity.NoID, FirstRelationshipID: entity.NoID}
	c := newTestCache(t, loader)

	if _, err := c.GetNodeByID(context.Background(), 1); err != nil {
		t.Fatalf("GetNodeByID (first): %v", err)
	}
	if !c.EvictNode(1) {
		t.Fatalf("EvictNode must report true for a resident node")
	}
	n, err := c.GetNodeByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetNodeByID (after evict): %v", err)
	}
	if n.ID() != 1 {
		t.Fatalf("ID() = %d, want 1", n.ID())
	}
}

func TestPageRelationships_MergesBatchAndInsertsIntoRelCache(t *testing.T) {
	t.Parallel()
	loader := newFakeLoader()
	loader.nodes[1] = storeapi.NodeRecord{ID: 1, FirstPropertyID: entity.NoID, FirstRelationshipID: entity.NoID}
	loader.rels[100] = storeapi.RelRecord{ID: 100, StartNodeID: 1, EndNodeID: 2, TypeID: 5, FirstPropertyID: entity.NoID}
	loader.moreRelBatches[1] = []map[storeapi.Direction][]storeapi.RelRecord{
		{storeapi.Outgoing: {loader.rels[100]}},
	}
	c := newTestCache(t, loader)

	n, err := c.GetNodeByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetNodeByID: %v", err)
	}

	if err := c.PageRelationships(context.Background(), n, "KNOWS"); err != nil {
		t.Fatalf("PageRelationships: %v", err)
	}

	ids := n.RelationshipIDs("KNOWS", entity.Outgoing)
	if len(ids) != 1 || ids[0] != 100 {
		t.Fatalf("RelationshipIDs(KNOWS, Outgoing) = %v, want [100]", ids)
	}

	r, err := c.GetRelationshipByID(context.Background(), 100)
	if err != nil {
		t.Fatalf("GetRelationshipByID: %v", err)
	}
	if r.ID() != 100 {
		t.Fatalf("relationship ID() = %d, want 100", r.ID())
	}

	cursor, ok := n.CursorFor("KNOWS")
	if !ok || !cursor.Done {
		t.Fatalf("cursor = %+v, ok=%v, want Done after the only batch", cursor, ok)
	}
}

func TestWalkAllNodes_SkipsAbsentIDs(t *testing.T) {
	t.Parallel()
	loader := newFakeLoader()
	loader.nodes[0] = storeapi.NodeRecord{ID: 0, FirstPropertyID: entity.NoID, FirstRelationshipID: entity.NoID}
	loader.nodes[2] = storeapi.NodeRecord{ID: 2, FirstPropertyID: entity.NoID, FirstRelationshipID: entity.NoID}
	c := newTestCache(t, loader)

	var seen []int64
	err := c.WalkAllNodes(context.Background(), func(n *entity.InternalNode) (bool, error) {
		seen = append(seen, n.ID())
		return true, nil
	})
	if err != nil {
		t.Fatalf("WalkAllNodes: %v", err)
	}
	if len(seen) != 2 || seen[0] != 0 || seen[1] != 2 {
		t.Fatalf("seen = %v, want [0 2]", seen)
	}
}
