package manager

import (
	"context"

	"github.com/graphkit/entitycache/entity"
	"github.com/graphkit/entitycache/errs"
	"github.com/graphkit/entitycache/log"
	"github.com/graphkit/entitycache/storeapi"
	"github.com/graphkit/entitycache/txchangeset"
)

// CreateNode allocates a fresh node id, durably records it, and installs a
// FullyLoadedNew node into the cache.
func (m *EntityManager) CreateNode(ctx context.Context) (entity.NodeProxy, error) {
	tx, err := m.tx(ctx)
	if err != nil {
		return entity.NodeProxy{}, err
	}

	id, err := m.ids.NextID(ctx, storeapi.NodeIdKind)
	if err != nil {
		tx.SetRollbackOnly()
		return entity.NodeProxy{}, errs.NewStoreError("CreateNode", err)
	}

	resource := storeapi.Resource{Type: storeapi.NodeResource, ID: id}
	if err := m.locks.Acquire(ctx, resource, storeapi.WriteLock); err != nil {
		tx.SetRollbackOnly()
		return entity.NodeProxy{}, errs.NewLockError("CreateNode", err)
	}

	if err := m.loader.CreateNode(ctx, id); err != nil {
		m.locks.Release(ctx, resource, storeapi.WriteLock, func(error) {})
		tx.SetRollbackOnly()
		return entity.NodeProxy{}, errs.NewStoreError("CreateNode", err)
	}

	n := entity.NewInternalNode(id, entity.NoID, entity.NoID, entity.FullyLoadedNew)
	if err := m.cache.PutNode(n); err != nil {
		tx.SetRollbackOnly()
		return entity.NodeProxy{}, err
	}

	m.changeSetFor(tx).MarkNodeTouched(id)

	tx.RegisterSynchronization(func(committed bool) {
		var releaseErr error
		m.locks.Release(ctx, resource, storeapi.WriteLock, func(err error) { releaseErr = err })
		if releaseErr != nil {
			log.WithComponent("manager").Warn().Int64("node_id", id).Err(releaseErr).Msg("failed to release node lock after transaction end")
		}
	})

	return entity.NewNodeProxy(id, m), nil
}

// CreateRelationship allocates a fresh relationship id, registers typeName in
// the relationship-type holder if it is new, and links start/end under the
// fixed lock order (relationship, then the two endpoints by ascending id) to
// avoid deadlocking against a symmetric concurrent create.
func (m *EntityManager) CreateRelationship(ctx context.Context, start entity.NodeProxy, typeName entity.RelationshipTypeName, end entity.NodeProxy) (entity.RelationshipProxy, error) {
	tx, err := m.tx(ctx)
	if err != nil {
		return entity.RelationshipProxy{}, err
	}

	typeID, err := m.relTypes.GetOrCreate(ctx, string(typeName))
	if err != nil {
		tx.SetRollbackOnly()
		return entity.RelationshipProxy{}, err
	}

	if _, err := m.cache.GetNodeByID(ctx, end.ID()); err != nil {
		tx.SetRollbackOnly()
		return entity.RelationshipProxy{}, err
	}

	relID, err := m.ids.NextID(ctx, storeapi.RelationshipIdKind)
	if err != nil {
		tx.SetRollbackOnly()
		return entity.RelationshipProxy{}, errs.NewStoreError("CreateRelationship", err)
	}

	relResource := storeapi.Resource{Type: storeapi.RelationshipResource, ID: relID}
	loID, hiID := sortedInt64(start.ID(), end.ID())
	loResource := storeapi.Resource{Type: storeapi.NodeResource, ID: loID}
	hiResource := storeapi.Resource{Type: storeapi.NodeResource, ID: hiID}

	acquired := make([]storeapi.Resource, 0, 3)
	release := func() error {
		var causes []error
		for i := len(acquired) - 1; i >= 0; i-- {
			res := acquired[i]
			if err := m.locks.Release(ctx, res, storeapi.WriteLock, func(error) {}); err != nil {
				causes = append(causes, err)
			}
		}
		if len(causes) > 0 {
			return errs.NewLockError("CreateRelationship.release", causes...)
		}
		return nil
	}

	for _, res := range []storeapi.Resource{relResource, loResource, hiResource} {
		if err := m.locks.Acquire(ctx, res, storeapi.WriteLock); err != nil {
			release()
			tx.SetRollbackOnly()
			return entity.RelationshipProxy{}, errs.NewLockError("CreateRelationship.acquire", err)
		}
		acquired = append(acquired, res)
	}

	if err := m.loader.CreateRelationship(ctx, relID, typeID, start.ID(), end.ID()); err != nil {
		release()
		tx.SetRollbackOnly()
		return entity.RelationshipProxy{}, errs.NewStoreError("CreateRelationship", err)
	}

	startNode, sErr := m.cache.GetNodeByID(ctx, start.ID())
	endNode, eErr := m.cache.GetNodeByID(ctx, end.ID())
	if sErr != nil || eErr != nil {
		release()
		tx.SetRollbackOnly()
		if sErr != nil {
			return entity.RelationshipProxy{}, sErr
		}
		return entity.RelationshipProxy{}, eErr
	}

	if start.ID() == end.ID() {
		startNode.AddRelationship(typeName, relID, entity.Both)
	} else {
		startNode.AddRelationship(typeName, relID, entity.Outgoing)
		endNode.AddRelationship(typeName, relID, entity.Incoming)
	}

	r := entity.NewInternalRelationship(relID, start.ID(), end.ID(), typeID, entity.NoID, entity.FullyLoadedNew)
	if err := m.cache.PutRelationship(r); err != nil {
		release()
		tx.SetRollbackOnly()
		return entity.RelationshipProxy{}, err
	}

	// The node chains and relationship cache were already mutated in place
	// above; the change set here only needs to remember which ids this
	// transaction touched, so a rollback can evict them and force a reload
	// that undoes the in-memory mutation.
	cs := m.changeSetFor(tx)
	cs.MarkRelationshipTouched(relID)
	cs.MarkNodeTouched(start.ID())
	if start.ID() != end.ID() {
		cs.MarkNodeTouched(end.ID())
	}

	if err := release(); err != nil {
		tx.SetRollbackOnly()
		log.WithComponent("manager").Warn().Int64("relationship_id", relID).Err(err).Msg("lock release failures after create")
		return entity.RelationshipProxy{}, err
	}

	return entity.NewRelationshipProxy(relID, m), nil
}

// DeleteNode tombstones id at the record loader and schedules its eviction
// from cache on commit.
func (m *EntityManager) DeleteNode(ctx context.Context, id int64) error {
	tx, err := m.tx(ctx)
	if err != nil {
		return err
	}
	cs := m.changeSetFor(tx)
	cs.TombstoneNode(id)

	if _, err := m.loader.DeleteNode(ctx, id); err != nil {
		tx.SetRollbackOnly()
		return errs.NewStoreError("DeleteNode", err)
	}

	tx.RegisterSynchronization(func(committed bool) {
		if committed {
			m.cache.EvictNode(id)
		}
	})
	return nil
}

// DeleteRelationship tombstones id at the record loader, un-links it from
// its endpoints' resident relationship chains, and schedules its eviction
// from cache on commit. The chain removal happens eagerly, not in the
// commit hook, mirroring how CreateRelationship links a new relationship
// into its endpoints' chains eagerly rather than deferring to commit.
func (m *EntityManager) DeleteRelationship(ctx context.Context, id int64) error {
	tx, err := m.tx(ctx)
	if err != nil {
		return err
	}
	cs := m.changeSetFor(tx)

	rel, err := m.cache.GetRelationshipOrNull(ctx, id)
	if err != nil {
		tx.SetRollbackOnly()
		return err
	}
	if rel != nil {
		snap := rel.Snapshot()
		typeName, _ := m.relTypes.Name(snap.TypeID)
		m.unlinkRelationship(ctx, cs, typeName, snap)
	}

	cs.TombstoneRelationship(id)

	if _, err := m.loader.DeleteRelationship(ctx, id); err != nil {
		tx.SetRollbackOnly()
		return errs.NewStoreError("DeleteRelationship", err)
	}

	tx.RegisterSynchronization(func(committed bool) {
		if committed {
			m.cache.EvictRelationship(id)
		}
	})
	return nil
}

// unlinkRelationship removes snap's id from the resident chains of both of
// its endpoints and records the removal in cs so a rollback can still
// evict the touched nodes. A node missing from cache (never loaded, or
// already evicted) is skipped: there is no chain to mutate.
func (m *EntityManager) unlinkRelationship(ctx context.Context, cs *txchangeset.ChangeSet, typeName entity.RelationshipTypeName, snap entity.RelationshipSnapshot) {
	if snap.StartNodeID == snap.EndNodeID {
		if n, _ := m.cache.GetNodeOrNull(ctx, snap.StartNodeID); n != nil {
			n.RemoveRelationship(typeName, snap.ID, entity.Both)
			cs.RemoveNodeRelationship(snap.StartNodeID, typeName, entity.Both, snap.ID)
			cs.MarkNodeTouched(snap.StartNodeID)
		}
		return
	}
	if n, _ := m.cache.GetNodeOrNull(ctx, snap.StartNodeID); n != nil {
		n.RemoveRelationship(typeName, snap.ID, entity.Outgoing)
		cs.RemoveNodeRelationship(snap.StartNodeID, typeName, entity.Outgoing, snap.ID)
		cs.MarkNodeTouched(snap.StartNodeID)
	}
	if n, _ := m.cache.GetNodeOrNull(ctx, snap.EndNodeID); n != nil {
		n.RemoveRelationship(typeName, snap.ID, entity.Incoming)
		cs.RemoveNodeRelationship(snap.EndNodeID, typeName, entity.Incoming, snap.ID)
		cs.MarkNodeTouched(snap.EndNodeID)
	}
}

// AddNodeProperty notifies registered node trackers, then records a fresh
// property on id. Trackers observe the add before any reader can observe
// the new value, since the change set is only updated after they return.
func (m *EntityManager) AddNodeProperty(ctx context.Context, id int64, key entity.PropertyKey, value any) error {
	tx, err := m.tx(ctx)
	if err != nil {
		return err
	}
	if err := m.notifyAdded(ctx, tx, NodeScope, id, key, value); err != nil {
		return err
	}
	if err := m.loader.NodeAddProperty(ctx, id, string(key), value); err != nil {
		tx.SetRollbackOnly()
		return errs.NewStoreError("AddNodeProperty", err)
	}
	m.changeSetFor(tx).SetNodeProperty(id, key, value)
	return nil
}

// ChangeNodeProperty notifies registered node trackers with the old and new
// value, then records the change.
func (m *EntityManager) ChangeNodeProperty(ctx context.Context, id int64, key entity.PropertyKey, oldValue, newValue any) error {
	tx, err := m.tx(ctx)
	if err != nil {
		return err
	}
	if err := m.notifyChanged(ctx, tx, NodeScope, id, key, oldValue, newValue); err != nil {
		return err
	}
	if err := m.loader.NodeChangeProperty(ctx, id, string(key), newValue); err != nil {
		tx.SetRollbackOnly()
		return errs.NewStoreError("ChangeNodeProperty", err)
	}
	m.changeSetFor(tx).SetNodeProperty(id, key, newValue)
	return nil
}

// RemoveNodeProperty notifies registered node trackers with the value being
// removed, then records the removal.
func (m *EntityManager) RemoveNodeProperty(ctx context.Context, id int64, key entity.PropertyKey, oldValue any) error {
	tx, err := m.tx(ctx)
	if err != nil {
		return err
	}
	if err := m.notifyRemoved(ctx, tx, NodeScope, id, key, oldValue); err != nil {
		return err
	}
	if err := m.loader.NodeRemoveProperty(ctx, id, string(key)); err != nil {
		tx.SetRollbackOnly()
		return errs.NewStoreError("RemoveNodeProperty", err)
	}
	m.changeSetFor(tx).RemoveNodeProperty(id, key)
	return nil
}

// AddRelationshipProperty is AddNodeProperty's relationship-scoped twin.
func (m *EntityManager) AddRelationshipProperty(ctx context.Context, id int64, key entity.PropertyKey, value any) error {
	tx, err := m.tx(ctx)
	if err != nil {
		return err
	}
	if err := m.notifyAdded(ctx, tx, RelationshipScope, id, key, value); err != nil {
		return err
	}
	if err := m.loader.RelAddProperty(ctx, id, string(key), value); err != nil {
		tx.SetRollbackOnly()
		return errs.NewStoreError("AddRelationshipProperty", err)
	}
	m.changeSetFor(tx).SetRelationshipProperty(id, key, value)
	return nil
}

// ChangeRelationshipProperty is ChangeNodeProperty's relationship-scoped twin.
func (m *EntityManager) ChangeRelationshipProperty(ctx context.Context, id int64, key entity.PropertyKey, oldValue, newValue any) error {
	tx, err := m.tx(ctx)
	if err != nil {
		return err
	}
	if err := m.notifyChanged(ctx, tx, RelationshipScope, id, key, oldValue, newValue); err != nil {
		return err
	}
	if err := m.loader.RelChangeProperty(ctx, id, string(key), newValue); err != nil {
		tx.SetRollbackOnly()
		return errs.NewStoreError("ChangeRelationshipProperty", err)
	}
	m.changeSetFor(tx).SetRelationshipProperty(id, key, newValue)
	return nil
}

// RemoveRelationshipProperty is RemoveNodeProperty's relationship-scoped twin.
func (m *EntityManager) RemoveRelationshipProperty(ctx context.Context, id int64, key entity.PropertyKey, oldValue any) error {
	tx, err := m.tx(ctx)
	if err != nil {
		return err
	}
	if err := m.notifyRemoved(ctx, tx, RelationshipScope, id, key, oldValue); err != nil {
		return err
	}
	if err := m.loader.RelRemoveProperty(ctx, id, string(key)); err != nil {
		tx.SetRollbackOnly()
		return errs.NewStoreError("RemoveRelationshipProperty", err)
	}
	m.changeSetFor(tx).RemoveRelationshipProperty(id, key)
	return nil
}

// AddGraphProperty, ChangeGraphProperty and RemoveGraphProperty mutate the
// single graph-wide property set. Graph properties are not entity-scoped so
// they have no txchangeset representation; trackers still fire in order and
// can still veto the mutation.
func (m *EntityManager) AddGraphProperty(ctx context.Context, key entity.PropertyKey, value any) error {
	tx, err := m.tx(ctx)
	if err != nil {
		return err
	}
	if err := m.notifyAdded(ctx, tx, GraphScope, 0, key, value); err != nil {
		return err
	}
	if err := m.loader.GraphAddProperty(ctx, string(key), value); err != nil {
		tx.SetRollbackOnly()
		return errs.NewStoreError("AddGraphProperty", err)
	}
	return nil
}

func (m *EntityManager) ChangeGraphProperty(ctx context.Context, key entity.PropertyKey, oldValue, newValue any) error {
	tx, err := m.tx(ctx)
	if err != nil {
		return err
	}
	if err := m.notifyChanged(ctx, tx, GraphScope, 0, key, oldValue, newValue); err != nil {
		return err
	}
	if err := m.loader.GraphChangeProperty(ctx, string(key), newValue); err != nil {
		tx.SetRollbackOnly()
		return errs.NewStoreError("ChangeGraphProperty", err)
	}
	return nil
}

func (m *EntityManager) RemoveGraphProperty(ctx context.Context, key entity.PropertyKey, oldValue any) error {
	tx, err := m.tx(ctx)
	if err != nil {
		return err
	}
	if err := m.notifyRemoved(ctx, tx, GraphScope, 0, key, oldValue); err != nil {
		return err
	}
	if err := m.loader.GraphRemoveProperty(ctx, string(key)); err != nil {
		tx.SetRollbackOnly()
		return errs.NewStoreError("RemoveGraphProperty", err)
	}
	return nil
}
