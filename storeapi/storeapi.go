// Package storeapi defines the interfaces the entity cache layer consumes
// from its collaborators: the durable record store, the lock manager, the
// transaction context, and the id generator. None of these are implemented
// here — durability, the write-ahead log, and lock scheduling all live
// outside this module's scope; package memstore provides a reference
// in-memory double for tests, benchmarks, and examples.
package storeapi

import "context"

// Direction tags which side(s) of a relationship a node sits on.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both // self-loop: the node is both endpoints
)

func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "outgoing"
	case Incoming:
		return "incoming"
	case Both:
		return "both"
	default:
		return "unknown"
	}
}

// IdKind selects which id space a generator or highest-id query refers to.
type IdKind int

const (
	NodeIdKind IdKind = iota
	RelationshipIdKind
	RelationshipTypeIdKind
	PropertyKeyIdKind
)

// LockMode is the granularity requested from the LockManager.
type LockMode int

const (
	ReadLock LockMode = iota
	WriteLock
)

// ResourceType names what a Resource identifies, for lock-manager bookkeeping.
type ResourceType int

const (
	NodeResource ResourceType = iota
	RelationshipResource
)

// Resource is a single lockable unit: one node or one relationship.
type Resource struct {
	Type ResourceType
	ID   int64
}

// NodeRecord is the durable shape of a node as the record loader returns it:
// light, meaning the relationship/property chains have not been paged in.
type NodeRecord struct {
	ID                  int64
	FirstPropertyID     int64 // -1 if none
	FirstRelationshipID int64 // -1 if none
}

// RelRecord is the durable shape of a relationship.
type RelRecord struct {
	ID              int64
	StartNodeID     int64
	EndNodeID       int64
	TypeID          int32
	FirstPropertyID int64 // -1 if none
}

// Cursor is an opaque position into a node's on-disk relationship list.
// A zero Cursor means "start from the beginning"; Done reports whether the
// chain has been fully paged.
type Cursor struct {
	Offset int64
	Done   bool
}

// RecordLoader is the durable record store's read/write surface. Its errors
// are wrapped by the caller: EntityCache and EntityManager turn a failed call
// into an errs.StoreError, and EntityManager's write paths mark the owning
// transaction rollback-only when one fails.
type RecordLoader interface {
	LoadLightNode(ctx context.Context, id int64) (rec *NodeRecord, found bool, err error)
	LoadLightRelationship(ctx context.Context, id int64) (rec *RelRecord, found bool, err error)

	// GetMoreRelationships returns the next batch of relationships for
	// nodeID starting at cursor, grouped by the direction they present to
	// nodeID, plus the cursor to resume from.
	GetMoreRelationships(ctx context.Context, nodeID int64, cursor Cursor) (batch map[Direction][]RelRecord, next Cursor, err error)

	CreateNode(ctx context.Context, id int64) error
	CreateRelationship(ctx context.Context, id int64, typeID int32, startID, endID int64) error

	NodeAddProperty(ctx context.Context, nodeID int64, key string, value any) error
	NodeChangeProperty(ctx context.Context, nodeID int64, key string, value any) error
	NodeRemoveProperty(ctx context.Context, nodeID int64, key string) error

	RelAddProperty(ctx context.Context, relID int64, key string, value any) error
	RelChangeProperty(ctx context.Context, relID int64, key string, value any) error
	RelRemoveProperty(ctx context.Context, relID int64, key string) error

	GraphAddProperty(ctx context.Context, key string, value any) error
	GraphChangeProperty(ctx context.Context, key string, value any) error
	GraphRemoveProperty(ctx context.Context, key string) error

	// DeleteNode and DeleteRelationship tombstone the id and return the
	// property map the entity carried at the moment of deletion (callers
	// may need it for post-delete bookkeeping, e.g. index cleanup upstream).
	DeleteNode(ctx context.Context, id int64) (properties map[string]any, err error)
	DeleteRelationship(ctx context.Context, id int64) (properties map[string]any, err error)

	GetHighestIDInUse(ctx context.Context, kind IdKind) (int64, error)
	IsCreated(ctx context.Context, id int64, kind IdKind) (bool, error)
}

// LockManager acquires and releases entity-level locks. Release always runs
// onRelease (even when release itself fails) so callers can unconditionally
// account for the attempt — this is what lets EntityManager aggregate
// independent release failures into a single errs.LockError instead of
// abandoning siblings' releases.
type LockManager interface {
	Acquire(ctx context.Context, resource Resource, mode LockMode) error
	Release(ctx context.Context, resource Resource, mode LockMode, onRelease func(err error)) error
}

// TransactionContext is the per-transaction handle threaded through
// EntityManager and TransactionChangeSet. RegisterSynchronization installs a
// hook invoked with committed=true/false at commit/rollback time — this is
// how deferred lock release and change-set materialization are wired
// without the caller needing ambient state (spec's "Deferred lock release"
// design note).
type TransactionContext interface {
	ID() string
	SetRollbackOnly()
	IsRollbackOnly() bool
	RegisterSynchronization(hook func(committed bool))

	// SetMetadata/Metadata attach small diagnostic key/value pairs to the
	// transaction (e.g. for audit logging). memstore.Tx caps all keys and
	// values together at 2048 bytes.
	SetMetadata(key, value string) error
	Metadata(key string) (string, bool)
}

// IdGenerator allocates fresh ids from the durable store's id space.
type IdGenerator interface {
	NextID(ctx context.Context, kind IdKind) (int64, error)
}
