package entity

import (
	"sync"

	"github.com/graphkit/entitycache/storeapi"
)

// NoID marks an absent first-property/first-relationship id.
const NoID int64 = -1

// relChain is one relationship type's paged id arrays for a single node.
// Outgoing and Incoming hold ids where the node is respectively the start
// or end of the relationship; Loops holds self-loop ids (direction "both")
// and only exists once this node/type combination has actually produced a
// self-loop, so most nodes never pay for it.
type relChain struct {
	outgoing []int64
	incoming []int64
	loops    []int64 // nil until the first self-loop for this type appears
	cursor   storeapi.Cursor
}

func (c *relChain) ids(dir Direction) []int64 {
	switch dir {
	case Outgoing:
		return c.outgoing
	case Incoming:
		return c.incoming
	case Both:
		return c.loops
	default:
		return nil
	}
}

// remove drops relID from the dir slice in place, if present.
func (c *relChain) remove(dir Direction, relID int64) {
	var slice *[]int64
	switch dir {
	case Outgoing:
		slice = &c.outgoing
	case Incoming:
		slice = &c.incoming
	case Both:
		slice = &c.loops
	default:
		return
	}
	for i, id := range *slice {
		if id == relID {
			*slice = append((*slice)[:i], (*slice)[i+1:]...)
			return
		}
	}
}

// InternalNode is the cached, mutable representation of a node. It is the
// value type held inside the entitycache's node BoundedCache; NodeProxy
// never holds one directly, only a back-reference to the host that can
// fetch it.
type InternalNode struct {
	mu sync.RWMutex

	id                  int64
	firstPropertyID     int64
	firstRelationshipID int64
	state               LoadState

	chains map[RelationshipTypeName]*relChain
}

// NewInternalNode builds a node in the given load state. firstPropertyID and
// firstRelationshipID should be NoID when absent.
func NewInternalNode(id, firstPropertyID, firstRelationshipID int64, state LoadState) *InternalNode {
	return &InternalNode{
		id:                  id,
		firstPropertyID:     firstPropertyID,
		firstRelationshipID: firstRelationshipID,
		state:               state,
		chains:              make(map[RelationshipTypeName]*relChain),
	}
}

// NodeSnapshot is an immutable copy of a node's scalar fields, safe to read
// without holding the node's lock — grounded on the NornicDB reference's
// copyNode deep-copy helper (other_examples transaction.go), which takes the
// same "snapshot before releasing the lock" approach for its pending maps.
type NodeSnapshot struct {
	ID                  int64
	FirstPropertyID     int64
	FirstRelationshipID int64
	State               LoadState
}

func (n *InternalNode) ID() int64 { return n.id }

func (n *InternalNode) Snapshot() NodeSnapshot {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return NodeSnapshot{
		ID:                  n.id,
		FirstPropertyID:     n.firstPropertyID,
		FirstRelationshipID: n.firstRelationshipID,
		State:               n.state,
	}
}

func (n *InternalNode) SetState(s LoadState) {
	n.mu.Lock()
	n.state = s
	n.mu.Unlock()
}

func (n *InternalNode) SetFirstRelationshipID(id int64) {
	n.mu.Lock()
	n.firstRelationshipID = id
	n.mu.Unlock()
}

// CursorFor returns the paging cursor recorded for typeName, and whether
// this node has ever paged that type at all.
func (n *InternalNode) CursorFor(typeName RelationshipTypeName) (storeapi.Cursor, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	c, ok := n.chains[typeName]
	if !ok {
		return storeapi.Cursor{}, false
	}
	return c.cursor, true
}

// MergeRelationshipBatch atomically folds a freshly loaded page of
// relationship ids into the node's chain for typeName, advancing the
// cursor. The caller assembles the batch into a local map first and passes
// it here for the atomic-merge half of that protocol, so a concurrent
// reader never observes a partially-applied page.
func (n *InternalNode) MergeRelationshipBatch(typeName RelationshipTypeName, batch map[Direction][]int64, next storeapi.Cursor) {
	n.mu.Lock()
	defer n.mu.Unlock()

	c, ok := n.chains[typeName]
	if !ok {
		c = &relChain{}
		n.chains[typeName] = c
	}
	c.outgoing = append(c.outgoing, batch[Outgoing]...)
	c.incoming = append(c.incoming, batch[Incoming]...)
	if loops := batch[Both]; len(loops) > 0 {
		// Lazily switch this type to the loops-capable variant on first use.
		c.loops = append(c.loops, loops...)
	}
	c.cursor = next
}

// AddRelationship records a single newly created relationship in this
// node's in-memory chain (used by EntityManager.CreateRelationship, not the
// paging protocol). It records relID under dir as given; CreateRelationship
// calls it once, with Both, for a self-loop.
func (n *InternalNode) AddRelationship(typeName RelationshipTypeName, relID int64, dir Direction) {
	n.mu.Lock()
	defer n.mu.Unlock()
	c, ok := n.chains[typeName]
	if !ok {
		c = &relChain{}
		n.chains[typeName] = c
	}
	switch dir {
	case Outgoing:
		c.outgoing = append(c.outgoing, relID)
	case Incoming:
		c.incoming = append(c.incoming, relID)
	case Both:
		c.loops = append(c.loops, relID)
	}
}

// RemoveRelationship un-links relID from this node's chain for typeName,
// the inverse of AddRelationship. A no-op if the type or id was never
// resident (e.g. the chain was evicted, or this node was never loaded far
// enough to page it in).
func (n *InternalNode) RemoveRelationship(typeName RelationshipTypeName, relID int64, dir Direction) {
	n.mu.Lock()
	defer n.mu.Unlock()
	c, ok := n.chains[typeName]
	if !ok {
		return
	}
	c.remove(dir, relID)
}

// RelationshipIDs returns a snapshot slice of the ids currently resident for
// typeName (or all types if typeName is ""), filtered by dir. An empty
// result does not imply the chain is fully paged; check CursorFor.Done.
func (n *InternalNode) RelationshipIDs(typeName RelationshipTypeName, dir Direction) []int64 {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if typeName != "" {
		c, ok := n.chains[typeName]
		if !ok {
			return nil
		}
		return append([]int64(nil), c.ids(dir)...)
	}

	var out []int64
	for _, c := range n.chains {
		out = append(out, c.ids(dir)...)
	}
	return out
}

// IsFullyPaged reports whether every relationship type chain on this node
// has reached the end of its on-disk cursor.
func (n *InternalNode) IsFullyPaged() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, c := range n.chains {
		if !c.cursor.Done {
			return false
		}
	}
	return true
}
