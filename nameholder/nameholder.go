// Package nameholder implements the small process-wide name-to-id
// registries backing relationship type names, property keys, and named
// reference nodes. Unknown names are created lazily under a single-writer
// path; reads never block on writes after first publication.
package nameholder

import (
	"context"
	"sync"

	"github.com/graphkit/entitycache/errs"
	"github.com/graphkit/entitycache/internal/singleflight"
	"github.com/graphkit/entitycache/storeapi"
)

// Allocator mints a fresh id and durably records the name->id mapping
// through the record loader, or reports an id a concurrent writer already
// assigned: an id collision during lazy registration is recoverable by
// re-reading and reusing the winning id, which the record loader handles by
// re-checking before it writes.
type Allocator[ID comparable] func(ctx context.Context, name string) (ID, error)

// NameHolder is a generic name <-> ID registry. Lazy creation for a given
// name is coalesced with internal/singleflight (the same call-coalescing
// primitive the teacher uses for GetOrLoad) so that concurrent first-use of
// an unknown name triggers exactly one Allocator call rather than racing a
// double-checked-locking variant.
type NameHolder[ID comparable] struct {
	mu     sync.RWMutex
	byName map[string]ID
	byID   map[ID]string

	group    singleflight.Group[string, ID]
	allocate Allocator[ID]
}

func New[ID comparable](allocate Allocator[ID]) *NameHolder[ID] {
	return &NameHolder[ID]{
		byName:   make(map[string]ID),
		byID:     make(map[ID]string),
		allocate: allocate,
	}
}

// Lookup returns the id for name without allocating one.
func (h *NameHolder[ID]) Lookup(name string) (ID, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.byName[name]
	return id, ok
}

// Name returns the name registered against id, the reverse of Lookup.
func (h *NameHolder[ID]) Name(id ID) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	name, ok := h.byID[id]
	return name, ok
}

// GetOrCreate returns name's id, allocating and durably recording one via
// Allocator on first use. Concurrent callers for the same unknown name
// share one Allocator call and one resulting id.
func (h *NameHolder[ID]) GetOrCreate(ctx context.Context, name string) (ID, error) {
	if name == "" {
		var zero ID
		return zero, errs.NewInvalidArgument("GetOrCreate", "name must not be empty")
	}

	h.mu.RLock()
	id, ok := h.byName[name]
	h.mu.RUnlock()
	if ok {
		return id, nil
	}

	id, err := h.group.Do(ctx, name, func() (ID, error) {
		h.mu.RLock()
		id, ok := h.byName[name]
		h.mu.RUnlock()
		if ok {
			return id, nil
		}

		id, err := h.allocate(ctx, name)
		if err != nil {
			var zero ID
			return zero, errs.NewStoreError("GetOrCreate", err)
		}

		h.mu.Lock()
		h.byName[name] = id
		h.byID[id] = name
		h.mu.Unlock()
		return id, nil
	})
	return id, err
}

// Preload publishes a name->id mapping already known from the store (e.g.
// during warm-up), without going through Allocator.
func (h *NameHolder[ID]) Preload(name string, id ID) {
	h.mu.Lock()
	h.byName[name] = id
	h.byID[id] = name
	h.mu.Unlock()
}

// Len returns the number of registered names.
func (h *NameHolder[ID]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byName)
}

// RelationshipTypeHolder registers relationship type names against
// int32 ids allocated via storeapi.IdGenerator/RecordLoader.
type RelationshipTypeHolder = NameHolder[int32]

// NewRelationshipTypeHolder wires an IdGenerator/RecordLoader pair into a
// RelationshipTypeHolder: allocate a fresh RelationshipTypeIdKind id, then
// record the name against it.
func NewRelationshipTypeHolder(ids storeapi.IdGenerator, record func(ctx context.Context, id int32, name string) error) *RelationshipTypeHolder {
	return New[int32](func(ctx context.Context, name string) (int32, error) {
		id, err := ids.NextID(ctx, storeapi.RelationshipTypeIdKind)
		if err != nil {
			return 0, err
		}
		if err := record(ctx, int32(id), name); err != nil {
			return 0, err
		}
		return int32(id), nil
	})
}

// PropertyKeyHolder registers property key names against int32 ids.
type PropertyKeyHolder = NameHolder[int32]

func NewPropertyKeyHolder(ids storeapi.IdGenerator, record func(ctx context.Context, id int32, name string) error) *PropertyKeyHolder {
	return New[int32](func(ctx context.Context, name string) (int32, error) {
		id, err := ids.NextID(ctx, storeapi.PropertyKeyIdKind)
		if err != nil {
			return 0, err
		}
		if err := record(ctx, int32(id), name); err != nil {
			return 0, err
		}
		return int32(id), nil
	})
}

// ReferenceNodeHolder registers named reference-node roots against the
// int64 id of the node they point at.
type ReferenceNodeHolder = NameHolder[int64]

// NewReferenceNodeHolder wires a node-creation callback (typically
// EntityManager.CreateNode) into a ReferenceNodeHolder: an unknown
// reference-node name gets a brand new node created for it, and that node's
// id becomes the reference's target.
func NewReferenceNodeHolder(createNode func(ctx context.Context, name string) (int64, error)) *ReferenceNodeHolder {
	return New[int64](createNode)
}
