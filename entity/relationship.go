package entity

import "sync"

// InternalRelationship is the cached, mutable representation of a
// relationship. Like InternalNode, it is the value type held inside the
// entitycache's relationship BoundedCache.
type InternalRelationship struct {
	mu sync.RWMutex

	id              int64
	startNodeID     int64
	endNodeID       int64
	typeID          int32
	firstPropertyID int64
	state           LoadState
}

func NewInternalRelationship(id, startNodeID, endNodeID int64, typeID int32, firstPropertyID int64, state LoadState) *InternalRelationship {
	return &InternalRelationship{
		id:              id,
		startNodeID:     startNodeID,
		endNodeID:       endNodeID,
		typeID:          typeID,
		firstPropertyID: firstPropertyID,
		state:           state,
	}
}

// RelationshipSnapshot is an immutable copy of a relationship's fields.
type RelationshipSnapshot struct {
	ID              int64
	StartNodeID     int64
	EndNodeID       int64
	TypeID          int32
	FirstPropertyID int64
	State           LoadState
}

func (r *InternalRelationship) ID() int64 { return r.id }

func (r *InternalRelationship) Snapshot() RelationshipSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RelationshipSnapshot{
		ID:              r.id,
		StartNodeID:     r.startNodeID,
		EndNodeID:       r.endNodeID,
		TypeID:          r.typeID,
		FirstPropertyID: r.firstPropertyID,
		State:           r.state,
	}
}

// IsSelfLoop reports whether this relationship's two endpoints are the same
// node. A self-loop is recorded once, in the node's Both-direction chain,
// rather than once per direction.
func (r *InternalRelationship) IsSelfLoop() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.startNodeID == r.endNodeID
}

func (r *InternalRelationship) SetState(s LoadState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}
