// Package txchangeset implements the per-transaction "copy-on-write" side
// maps: pending property adds/removes and pending relationship adds/removes
// for every entity a transaction has touched. EntityManager reads a
// transaction's pending properties from its change set; relationships it
// creates or deletes are applied to the cached nodes directly and only
// recorded here. When the transaction ends the change set is dropped: a
// commit writes nothing from it into the cache, and a rollback evicts every
// entity it lists as touched.
package txchangeset

import (
	"sync"

	"github.com/graphkit/entitycache/entity"
)

// EntityState is the five-state machine every entity a transaction touches
// moves through.
type EntityState int

const (
	Untouched EntityState = iota
	ReadThrough
	Modified
	Committed
	RolledBack
)

func (s EntityState) String() string {
	switch s {
	case Untouched:
		return "untouched"
	case ReadThrough:
		return "read_through"
	case Modified:
		return "modified"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// RelDelta is one pending relationship-id addition or removal, scoped to a
// relationship type name and direction: the same relationship id can be
// outgoing from one endpoint's perspective and incoming from the other's.
type RelDelta struct {
	TypeName entity.RelationshipTypeName
	Dir      entity.Direction
	RelID    int64
}

// NodeChanges is one node's side maps within a transaction.
type NodeChanges struct {
	State             EntityState
	Tombstoned        bool
	PendingProperties map[entity.PropertyKey]any
	RemovedProperties map[entity.PropertyKey]struct{}
	RelAdds           []RelDelta
	RelRemoves        []RelDelta
}

// RelationshipChanges is one relationship's side maps within a transaction.
type RelationshipChanges struct {
	State             EntityState
	Tombstoned        bool
	PendingProperties map[entity.PropertyKey]any
	RemovedProperties map[entity.PropertyKey]struct{}
}

// ChangeSet accumulates every node and relationship a single transaction
// has touched. EntityManager holds one per transaction id and drops it when
// that transaction commits or rolls back — it carries no reference back to
// the cache or record loader itself.
type ChangeSet struct {
	mu    sync.Mutex
	txID  string
	nodes map[int64]*NodeChanges
	rels  map[int64]*RelationshipChanges
}

func New(txID string) *ChangeSet {
	return &ChangeSet{
		txID:  txID,
		nodes: make(map[int64]*NodeChanges),
		rels:  make(map[int64]*RelationshipChanges),
	}
}

func (cs *ChangeSet) TxID() string { return cs.txID }

func (cs *ChangeSet) touchNode(id int64) *NodeChanges {
	nc, ok := cs.nodes[id]
	if !ok {
		nc = &NodeChanges{State: ReadThrough}
		cs.nodes[id] = nc
	}
	return nc
}

func (cs *ChangeSet) touchRelationship(id int64) *RelationshipChanges {
	rc, ok := cs.rels[id]
	if !ok {
		rc = &RelationshipChanges{State: ReadThrough}
		cs.rels[id] = rc
	}
	return rc
}

// NodeChanges returns the recorded side maps for id, or nil if the
// transaction has never touched it (state Untouched).
func (cs *ChangeSet) NodeChanges(id int64) *NodeChanges {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.nodes[id]
}

// RelationshipChanges returns the recorded side maps for id, or nil.
func (cs *ChangeSet) RelationshipChanges(id int64) *RelationshipChanges {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.rels[id]
}

// SetNodeProperty records a pending add/change of key on node id.
func (cs *ChangeSet) SetNodeProperty(id int64, key entity.PropertyKey, value any) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	nc := cs.touchNode(id)
	if nc.PendingProperties == nil {
		nc.PendingProperties = make(map[entity.PropertyKey]any)
	}
	nc.PendingProperties[key] = value
	if nc.RemovedProperties != nil {
		delete(nc.RemovedProperties, key)
	}
	nc.State = Modified
}

// RemoveNodeProperty records a pending removal of key on node id.
func (cs *ChangeSet) RemoveNodeProperty(id int64, key entity.PropertyKey) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	nc := cs.touchNode(id)
	if nc.PendingProperties != nil {
		delete(nc.PendingProperties, key)
	}
	if nc.RemovedProperties == nil {
		nc.RemovedProperties = make(map[entity.PropertyKey]struct{})
	}
	nc.RemovedProperties[key] = struct{}{}
	nc.State = Modified
}

// AddNodeRelationship records a pending relationship-id addition on node id.
func (cs *ChangeSet) AddNodeRelationship(id int64, typeName entity.RelationshipTypeName, dir entity.Direction, relID int64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	nc := cs.touchNode(id)
	nc.RelAdds = append(nc.RelAdds, RelDelta{TypeName: typeName, Dir: dir, RelID: relID})
	nc.State = Modified
}

// RemoveNodeRelationship records a pending relationship-id removal on node id.
func (cs *ChangeSet) RemoveNodeRelationship(id int64, typeName entity.RelationshipTypeName, dir entity.Direction, relID int64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	nc := cs.touchNode(id)
	nc.RelRemoves = append(nc.RelRemoves, RelDelta{TypeName: typeName, Dir: dir, RelID: relID})
	nc.State = Modified
}

// MarkNodeTouched registers id as touched by this transaction without
// recording any property/relationship delta — used wherever EntityManager
// mutates a node's cached state directly (creation, or an endpoint's
// relationship array on CreateRelationship) purely so the id participates in
// rollback eviction.
func (cs *ChangeSet) MarkNodeTouched(id int64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.touchNode(id)
}

// MarkRelationshipTouched is MarkNodeTouched's relationship-scoped twin.
func (cs *ChangeSet) MarkRelationshipTouched(id int64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.touchRelationship(id)
}

// TombstoneNode marks id as pending deletion.
func (cs *ChangeSet) TombstoneNode(id int64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	nc := cs.touchNode(id)
	nc.Tombstoned = true
	nc.State = Modified
}

// SetRelationshipProperty records a pending add/change of key on relationship id.
func (cs *ChangeSet) SetRelationshipProperty(id int64, key entity.PropertyKey, value any) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	rc := cs.touchRelationship(id)
	if rc.PendingProperties == nil {
		rc.PendingProperties = make(map[entity.PropertyKey]any)
	}
	rc.PendingProperties[key] = value
	if rc.RemovedProperties != nil {
		delete(rc.RemovedProperties, key)
	}
	rc.State = Modified
}

// RemoveRelationshipProperty records a pending removal of key on relationship id.
func (cs *ChangeSet) RemoveRelationshipProperty(id int64, key entity.PropertyKey) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	rc := cs.touchRelationship(id)
	if rc.PendingProperties != nil {
		delete(rc.PendingProperties, key)
	}
	if rc.RemovedProperties == nil {
		rc.RemovedProperties = make(map[entity.PropertyKey]struct{})
	}
	rc.RemovedProperties[key] = struct{}{}
	rc.State = Modified
}

// TombstoneRelationship marks id as pending deletion.
func (cs *ChangeSet) TombstoneRelationship(id int64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	rc := cs.touchRelationship(id)
	rc.Tombstoned = true
	rc.State = Modified
}

// TouchedNodeIDs returns the ids of every node this transaction has
// recorded changes for — consulted at rollback to know what to evict from
// the cache.
func (cs *ChangeSet) TouchedNodeIDs() []int64 {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	ids := make([]int64, 0, len(cs.nodes))
	for id := range cs.nodes {
		ids = append(ids, id)
	}
	return ids
}

// TouchedRelationshipIDs returns the ids of every relationship this
// transaction has recorded changes for.
func (cs *ChangeSet) TouchedRelationshipIDs() []int64 {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	ids := make([]int64, 0, len(cs.rels))
	for id := range cs.rels {
		ids = append(ids, id)
	}
	return ids
}

// MarkCommitted transitions every touched entity to Committed. The change
// set itself is still discarded by EntityManager right
// after — this only exists so tests and diagnostics can observe the final
// state transition.
func (cs *ChangeSet) MarkCommitted() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, nc := range cs.nodes {
		nc.State = Committed
	}
	for _, rc := range cs.rels {
		rc.State = Committed
	}
}

// MarkRolledBack transitions every touched entity to RolledBack.
func (cs *ChangeSet) MarkRolledBack() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, nc := range cs.nodes {
		nc.State = RolledBack
	}
	for _, rc := range cs.rels {
		rc.State = RolledBack
	}
}
