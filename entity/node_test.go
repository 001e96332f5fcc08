package entity

import (
	"testing"

	"github.com/graphkit/entitycache/storeapi"
)

func TestInternalNode_MergeRelationshipBatchAccumulates(t *testing.T) {
	t.Parallel()
	n := NewInternalNode(1, NoID, NoID, Light)

	n.MergeRelationshipBatch("KNOWS", map[Direction][]int64{
		Outgoing: {10, 11},
		Incoming: {20},
	}, storeapi.Cursor{Offset: 3})

	if got := n.RelationshipIDs("KNOWS", Outgoing); len(got) != 2 {
		t.Fatalf("outgoing = %v, want 2 ids", got)
	}
	if got := n.RelationshipIDs("KNOWS", Incoming); len(got) != 1 {
		t.Fatalf("incoming = %v, want 1 id", got)
	}

	n.MergeRelationshipBatch("KNOWS", map[Direction][]int64{
		Outgoing: {12},
	}, storeapi.Cursor{Offset: 4, Done: true})

	if got := n.RelationshipIDs("KNOWS", Outgoing); len(got) != 3 {
		t.Fatalf("outgoing after second merge = %v, want 3 ids", got)
	}
	cursor, ok := n.CursorFor("KNOWS")
	if !ok || !cursor.Done {
		t.Fatalf("cursor = %+v, ok=%v, want Done after final page", cursor, ok)
	}
}

// Scenario S3: a self-loop is recorded exactly once, tagged "both".
func TestInternalNode_SelfLoopRecordedOnce(t *testing.T) {
	t.Parallel()
	n := NewInternalNode(1, NoID, NoID, FullyLoadedNew)
	n.AddRelationship("LIKES", 99, Both)

	if got := n.RelationshipIDs("LIKES", Both); len(got) != 1 || got[0] != 99 {
		t.Fatalf("loops = %v, want [99]", got)
	}
	if got := n.RelationshipIDs("LIKES", Outgoing); len(got) != 0 {
		t.Fatalf("outgoing = %v, want empty for a self-loop", got)
	}
	if got := n.RelationshipIDs("LIKES", Incoming); len(got) != 0 {
		t.Fatalf("incoming = %v, want empty for a self-loop", got)
	}
}

func TestInternalNode_IsFullyPaged(t *testing.T) {
	t.Parallel()
	n := NewInternalNode(1, NoID, NoID, Light)
	if !n.IsFullyPaged() {
		t.Fatalf("a node with no chains must report fully paged")
	}
	n.MergeRelationshipBatch("KNOWS", map[Direction][]int64{Outgoing: {1}}, storeapi.Cursor{Done: false})
	if n.IsFullyPaged() {
		t.Fatalf("must not be fully paged while a chain's cursor is not Done")
	}
	n.MergeRelationshipBatch("KNOWS", nil, storeapi.Cursor{Done: true})
	if !n.IsFullyPaged() {
		t.Fatalf("must be fully paged once the chain's cursor is Done")
	}
}

func TestInternalRelationship_IsSelfLoop(t *testing.T) {
	t.Parallel()
	loop := NewInternalRelationship(1, 5, 5, 1, NoID, FullyLoadedNew)
	if !loop.IsSelfLoop() {
		t.Fatalf("start==end must report IsSelfLoop")
	}
	notLoop := NewInternalRelationship(2, 5, 6, 1, NoID, FullyLoadedNew)
	if notLoop.IsSelfLoop() {
		t.Fatalf("start!=end must not report IsSelfLoop")
	}
}
