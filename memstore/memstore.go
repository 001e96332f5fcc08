// Package memstore is an in-memory, non-durable reference implementation of
// every storeapi interface: RecordLoader, LockManager, IdGenerator, and a
// TransactionContext factory. It exists for tests, benchmarks and examples
// that need a working collaborator stack without a real database behind it —
// the write-ahead-log "buffer, then apply atomically" shape is grounded on
// the NornicDB reference engine's Transaction/MemoryEngine pair, simplified
// since this module's own txchangeset/EntityManager layer already does the
// buffering storeapi's caller needs; memstore only has to be a faithful,
// thread-safe record store plus lock table underneath it.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/graphkit/entitycache/errs"
	"github.com/graphkit/entitycache/storeapi"
)

// Store is the in-memory durable record store: nodes, relationships, graph
// properties, and the four id-space counters. All methods are safe for
// concurrent use.
type Store struct {
	mu sync.RWMutex

	nodes         map[int64]*nodeRecord
	rels          map[int64]*relRecord
	graphProps    map[string]any
	relTypeNames  map[int32]string
	propKeyNames  map[int32]string
	nextID        map[storeapi.IdKind]int64
}

type nodeRecord struct {
	rec        storeapi.NodeRecord
	properties map[string]any
	// outRels/inRels record every relationship id this node has ever
	// participated in, already split by direction, so GetMoreRelationships
	// can page through them deterministically.
	outRels []storeapi.RelRecord
	inRels  []storeapi.RelRecord
	deleted bool
}

type relRecord struct {
	rec        storeapi.RelRecord
	properties map[string]any
	deleted    bool
}

// New builds an empty Store.
func New() *Store {
	return &Store{
		nodes:        make(map[int64]*nodeRecord),
		rels:         make(map[int64]*relRecord),
		graphProps:   make(map[string]any),
		relTypeNames: make(map[int32]string),
		propKeyNames: make(map[int32]string),
		nextID:       make(map[storeapi.IdKind]int64),
	}
}

// --- storeapi.IdGenerator ---

func (s *Store) NextID(ctx context.Context, kind storeapi.IdKind) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID[kind]
	s.nextID[kind] = id + 1
	return id, nil
}

// --- storeapi.RecordLoader ---

func (s *Store) LoadLightNode(ctx context.Context, id int64) (*storeapi.NodeRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok || n.deleted {
		return nil, false, nil
	}
	rec := n.rec
	return &rec, true, nil
}

func (s *Store) LoadLightRelationship(ctx context.Context, id int64) (*storeapi.RelRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rels[id]
	if !ok || r.deleted {
		return nil, false, nil
	}
	rec := r.rec
	return &rec, true, nil
}

// GetMoreRelationships pages through a node's outgoing/incoming relationship
// lists in fixed-size pages, keyed by a monotonically increasing Cursor.Offset
// counting pages already delivered.
const pageSize = 64

func (s *Store) GetMoreRelationships(ctx context.Context, nodeID int64, cursor storeapi.Cursor) (map[storeapi.Direction][]storeapi.RelRecord, storeapi.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[nodeID]
	if !ok || n.deleted {
		return nil, storeapi.Cursor{Offset: cursor.Offset, Done: true}, nil
	}

	start := int(cursor.Offset) * pageSize
	batch := make(map[storeapi.Direction][]storeapi.RelRecord)

	if start < len(n.outRels) {
		end := start + pageSize
		if end > len(n.outRels) {
			end = len(n.outRels)
		}
		batch[storeapi.Outgoing] = append([]storeapi.RelRecord(nil), n.outRels[start:end]...)
	}
	if start < len(n.inRels) {
		end := start + pageSize
		if end > len(n.inRels) {
			end = len(n.inRels)
		}
		batch[storeapi.Incoming] = append([]storeapi.RelRecord(nil), n.inRels[start:end]...)
	}

	next := cursor.Offset + 1
	done := start+pageSize >= len(n.outRels) && start+pageSize >= len(n.inRels)
	return batch, storeapi.Cursor{Offset: next, Done: done}, nil
}

func (s *Store) CreateNode(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.nodes[id]; exists {
		return fmt.Errorf("node %d already exists", id)
	}
	s.nodes[id] = &nodeRecord{
		rec:        storeapi.NodeRecord{ID: id, FirstPropertyID: -1, FirstRelationshipID: -1},
		properties: make(map[string]any),
	}
	return nil
}

func (s *Store) CreateRelationship(ctx context.Context, id int64, typeID int32, startID, endID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rels[id]; exists {
		return fmt.Errorf("relationship %d already exists", id)
	}
	start, ok := s.nodes[startID]
	if !ok || start.deleted {
		return fmt.Errorf("start node %d does not exist", startID)
	}
	end, ok := s.nodes[endID]
	if !ok || end.deleted {
		return fmt.Errorf("end node %d does not exist", endID)
	}

	rec := storeapi.RelRecord{ID: id, StartNodeID: startID, EndNodeID: endID, TypeID: typeID, FirstPropertyID: -1}
	s.rels[id] = &relRecord{rec: rec, properties: make(map[string]any)}
	start.outRels = append(start.outRels, rec)
	if startID != endID {
		end.inRels = append(end.inRels, rec)
	}
	return nil
}

func (s *Store) NodeAddProperty(ctx context.Context, nodeID int64, key string, value any) error {
	return s.setNodeProperty(nodeID, key, value)
}
func (s *Store) NodeChangeProperty(ctx context.Context, nodeID int64, key string, value any) error {
	return s.setNodeProperty(nodeID, key, value)
}
func (s *Store) setNodeProperty(nodeID int64, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[nodeID]
	if !ok || n.deleted {
		return fmt.Errorf("node %d does not exist", nodeID)
	}
	n.properties[key] = value
	return nil
}

func (s *Store) NodeRemoveProperty(ctx context.Context, nodeID int64, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[nodeID]
	if !ok || n.deleted {
		return fmt.Errorf("node %d does not exist", nodeID)
	}
	delete(n.properties, key)
	return nil
}

func (s *Store) RelAddProperty(ctx context.Context, relID int64, key string, value any) error {
	return s.setRelProperty(relID, key, value)
}
func (s *Store) RelChangeProperty(ctx context.Context, relID int64, key string, value any) error {
	return s.setRelProperty(relID, key, value)
}
func (s *Store) setRelProperty(relID int64, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rels[relID]
	if !ok || r.deleted {
		return fmt.Errorf("relationship %d does not exist", relID)
	}
	r.properties[key] = value
	return nil
}

func (s *Store) RelRemoveProperty(ctx context.Context, relID int64, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rels[relID]
	if !ok || r.deleted {
		return fmt.Errorf("relationship %d does not exist", relID)
	}
	delete(r.properties, key)
	return nil
}

func (s *Store) GraphAddProperty(ctx context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphProps[key] = value
	return nil
}
func (s *Store) GraphChangeProperty(ctx context.Context, key string, value any) error {
	return s.GraphAddProperty(ctx, key, value)
}
func (s *Store) GraphRemoveProperty(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.graphProps, key)
	return nil
}

func (s *Store) DeleteNode(ctx context.Context, id int64) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok || n.deleted {
		return nil, fmt.Errorf("node %d does not exist", id)
	}
	n.deleted = true
	return n.properties, nil
}

func (s *Store) DeleteRelationship(ctx context.Context, id int64) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rels[id]
	if !ok || r.deleted {
		return nil, fmt.Errorf("relationship %d does not exist", id)
	}
	r.deleted = true
	return r.properties, nil
}

func (s *Store) GetHighestIDInUse(ctx context.Context, kind storeapi.IdKind) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var highest int64 = -1
	switch kind {
	case storeapi.NodeIdKind:
		for id := range s.nodes {
			if id > highest {
				highest = id
			}
		}
	case storeapi.RelationshipIdKind:
		for id := range s.rels {
			if id > highest {
				highest = id
			}
		}
	}
	return highest, nil
}

func (s *Store) IsCreated(ctx context.Context, id int64, kind storeapi.IdKind) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch kind {
	case storeapi.NodeIdKind:
		n, ok := s.nodes[id]
		return ok && !n.deleted, nil
	case storeapi.RelationshipIdKind:
		r, ok := s.rels[id]
		return ok && !r.deleted, nil
	default:
		return false, nil
	}
}

// RecordRelationshipType/RecordPropertyKey are the `record` callbacks
// nameholder.NewRelationshipTypeHolder/NewPropertyKeyHolder expect — they
// durably associate a freshly allocated id with its name.
func (s *Store) RecordRelationshipType(ctx context.Context, id int32, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relTypeNames[id] = name
	return nil
}

func (s *Store) RecordPropertyKey(ctx context.Context, id int32, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.propKeyNames[id] = name
	return nil
}

// --- storeapi.LockManager ---

// Locks is a process-wide, reentrant-free lock table keyed by storeapi.Resource.
// Acquire blocks until the resource is free; Release always invokes onRelease,
// even when the caller never held the lock (a programmer error it reports
// through onRelease rather than panicking on, since LockManager.Release's
// contract requires every attempt be accounted for).
type Locks struct {
	mu    sync.Mutex
	held  map[storeapi.Resource]chan struct{}
}

func NewLocks() *Locks {
	return &Locks{held: make(map[storeapi.Resource]chan struct{})}
}

func (l *Locks) Acquire(ctx context.Context, resource storeapi.Resource, mode storeapi.LockMode) error {
	for {
		l.mu.Lock()
		ch, busy := l.held[resource]
		if !busy {
			l.held[resource] = make(chan struct{})
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Locks) Release(ctx context.Context, resource storeapi.Resource, mode storeapi.LockMode, onRelease func(err error)) error {
	l.mu.Lock()
	ch, held := l.held[resource]
	if !held {
		l.mu.Unlock()
		err := errs.NewLockError("Release", fmt.Errorf("resource %+v not held", resource))
		onRelease(err)
		return err
	}
	delete(l.held, resource)
	l.mu.Unlock()
	close(ch)
	onRelease(nil)
	return nil
}

// --- storeapi.TransactionContext ---

// Tx is memstore's TransactionContext: little more than an id, a
// rollback-only flag, a small metadata map, and the synchronization hooks
// EntityManager registers against it.
type Tx struct {
	id string

	mu           sync.Mutex
	rollbackOnly bool
	metadata     map[string]string
	hooks        []func(committed bool)
}

// NewTx starts a fresh transaction with a random id.
func NewTx() *Tx {
	return &Tx{id: uuid.NewString(), metadata: make(map[string]string)}
}

func (t *Tx) ID() string { return t.id }

func (t *Tx) SetRollbackOnly() {
	t.mu.Lock()
	t.rollbackOnly = true
	t.mu.Unlock()
}

func (t *Tx) IsRollbackOnly() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rollbackOnly
}

func (t *Tx) RegisterSynchronization(hook func(committed bool)) {
	t.mu.Lock()
	t.hooks = append(t.hooks, hook)
	t.mu.Unlock()
}

const maxMetadataBytes = 2048

func (t *Tx) SetMetadata(key, value string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := len(key) + len(value)
	for k, v := range t.metadata {
		if k == key {
			continue
		}
		total += len(k) + len(v)
	}
	if total > maxMetadataBytes {
		return errs.NewInvalidArgument("SetMetadata", "transaction metadata exceeds 2048 bytes")
	}
	t.metadata[key] = value
	return nil
}

func (t *Tx) Metadata(key string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.metadata[key]
	return v, ok
}

// Commit marks the transaction committed and runs every registered
// synchronization hook with committed=true. A rollback-only transaction
// cannot be committed (mirrors the WAL engine's pre-commit validation gate).
func (t *Tx) Commit() error {
	if t.IsRollbackOnly() {
		return t.Rollback()
	}
	t.runHooks(true)
	return nil
}

// Rollback runs every registered synchronization hook with committed=false.
func (t *Tx) Rollback() error {
	t.runHooks(false)
	return errs.NewCacheStateError("transaction rolled back")
}

func (t *Tx) runHooks(committed bool) {
	t.mu.Lock()
	hooks := make([]func(bool), len(t.hooks))
	copy(hooks, t.hooks)
	t.mu.Unlock()
	for _, h := range hooks {
		h(committed)
	}
}
