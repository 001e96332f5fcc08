package manager

import (
	"context"

	"github.com/graphkit/entitycache/entity"
)

// NodeByID implements entity.ProxyHost: it is what NodeProxy.Snapshot calls
// through.
func (m *EntityManager) NodeByID(ctx context.Context, id int64) (entity.NodeSnapshot, error) {
	n, err := m.cache.GetNodeByID(ctx, id)
	if err != nil {
		return entity.NodeSnapshot{}, err
	}
	return n.Snapshot(), nil
}

// RelationshipByID implements entity.ProxyHost.
func (m *EntityManager) RelationshipByID(ctx context.Context, id int64) (entity.RelationshipSnapshot, error) {
	r, err := m.cache.GetRelationshipByID(ctx, id)
	if err != nil {
		return entity.RelationshipSnapshot{}, err
	}
	return r.Snapshot(), nil
}

// NodeProperty implements entity.ProxyHost. A property pending in the
// caller's own transaction is visible immediately (read-your-writes); beyond
// that, property value storage and retrieval belongs to the durable record
// store's property-chain reader, which is outside this module's scope (spec
// §3 treats "first property id" as an opaque pointer into a chain owned by
// an external collaborator) — so a property never written by this
// transaction reports ok=false here rather than silently guessing.
func (m *EntityManager) NodeProperty(ctx context.Context, nodeID int64, key entity.PropertyKey) (any, bool, error) {
	tx, err := m.tx(ctx)
	if err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	cs, ok := m.changeSets[tx.ID()]
	m.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	nc := cs.NodeChanges(nodeID)
	if nc == nil {
		return nil, false, nil
	}
	if _, removed := nc.RemovedProperties[key]; removed {
		return nil, false, nil
	}
	v, ok := nc.PendingProperties[key]
	return v, ok, nil
}

// RelationshipProperty is NodeProperty's relationship-scoped twin.
func (m *EntityManager) RelationshipProperty(ctx context.Context, relID int64, key entity.PropertyKey) (any, bool, error) {
	tx, err := m.tx(ctx)
	if err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	cs, ok := m.changeSets[tx.ID()]
	m.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	rc := cs.RelationshipChanges(relID)
	if rc == nil {
		return nil, false, nil
	}
	if _, removed := rc.RemovedProperties[key]; removed {
		return nil, false, nil
	}
	v, ok := rc.PendingProperties[key]
	return v, ok, nil
}

// Relationships implements entity.ProxyHost and backs GetRelationships: it
// pages in the rest of typeFilter's chain if it isn't fully resident yet,
// then builds proxies from the node's resident ids. CreateRelationship
// mutates the node's chain in place rather than staging it in the change
// set, so a transaction's own in-flight relationship creations are already
// visible here without any separate merge step.
func (m *EntityManager) Relationships(ctx context.Context, nodeID int64, typeFilter entity.RelationshipTypeName, dir entity.Direction) ([]entity.RelationshipProxy, error) {
	n, err := m.cache.GetNodeByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	if typeFilter != "" {
		for {
			cursor, known := n.CursorFor(typeFilter)
			if known && cursor.Done {
				break
			}
			if err := m.cache.PageRelationships(ctx, n, typeFilter); err != nil {
				return nil, err
			}
			cursor, _ = n.CursorFor(typeFilter)
			if cursor.Done {
				break
			}
		}
	}

	ids := n.RelationshipIDs(typeFilter, dir)
	proxies := make([]entity.RelationshipProxy, len(ids))
	for i, id := range ids {
		proxies[i] = entity.NewRelationshipProxy(id, m)
	}
	return proxies, nil
}

// GetRelationships is the public, proxy-returning convenience entry point
// application code calls directly (NodeProxy.Relationships is the same call
// threaded through entity.ProxyHost).
func (m *EntityManager) GetRelationships(ctx context.Context, nodeID int64, typeFilter entity.RelationshipTypeName, dir entity.Direction) ([]entity.RelationshipProxy, error) {
	return m.Relationships(ctx, nodeID, typeFilter, dir)
}
