package entity

import "context"

// ProxyHost is the back-reference NodeProxy/RelationshipProxy hold instead
// of a pointer to *manager.EntityManager directly — manager imports entity
// (for InternalNode/InternalRelationship), so entity cannot import manager
// back without a cycle. manager.EntityManager implements this interface;
// proxies depend only on the interface.
type ProxyHost interface {
	NodeByID(ctx context.Context, id int64) (NodeSnapshot, error)
	RelationshipByID(ctx context.Context, id int64) (RelationshipSnapshot, error)

	NodeProperty(ctx context.Context, nodeID int64, key PropertyKey) (value any, ok bool, err error)
	RelationshipProperty(ctx context.Context, relID int64, key PropertyKey) (value any, ok bool, err error)

	// Relationships returns the proxies for nodeID's relationships,
	// optionally filtered by type name ("" = all) and direction.
	Relationships(ctx context.Context, nodeID int64, typeFilter RelationshipTypeName, dir Direction) ([]RelationshipProxy, error)
}

// NodeProxy is a lightweight handle: an id plus a non-owning reference to
// the host that can fault its data in. It holds no node state itself, so it
// is always cheap to copy and never goes stale in a way that matters — the
// next call just re-reads through the host.
type NodeProxy struct {
	id   int64
	host ProxyHost
}

func NewNodeProxy(id int64, host ProxyHost) NodeProxy {
	return NodeProxy{id: id, host: host}
}

func (p NodeProxy) ID() int64 { return p.id }

func (p NodeProxy) Snapshot(ctx context.Context) (NodeSnapshot, error) {
	return p.host.NodeByID(ctx, p.id)
}

func (p NodeProxy) Property(ctx context.Context, key PropertyKey) (any, bool, error) {
	return p.host.NodeProperty(ctx, p.id, key)
}

func (p NodeProxy) Relationships(ctx context.Context, typeFilter RelationshipTypeName, dir Direction) ([]RelationshipProxy, error) {
	return p.host.Relationships(ctx, p.id, typeFilter, dir)
}

// RelationshipProxy is the relationship-side equivalent of NodeProxy.
type RelationshipProxy struct {
	id   int64
	host ProxyHost
}

func NewRelationshipProxy(id int64, host ProxyHost) RelationshipProxy {
	return RelationshipProxy{id: id, host: host}
}

func (p RelationshipProxy) ID() int64 { return p.id }

func (p RelationshipProxy) Snapshot(ctx context.Context) (RelationshipSnapshot, error) {
	return p.host.RelationshipByID(ctx, p.id)
}

func (p RelationshipProxy) Property(ctx context.Context, key PropertyKey) (any, bool, error) {
	return p.host.RelationshipProperty(ctx, p.id, key)
}

func (p RelationshipProxy) StartNode(ctx context.Context) (NodeProxy, error) {
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return NodeProxy{}, err
	}
	return NewNodeProxy(snap.StartNodeID, p.host), nil
}

func (p RelationshipProxy) EndNode(ctx context.Context) (NodeProxy, error) {
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return NodeProxy{}, err
	}
	return NewNodeProxy(snap.EndNodeID, p.host), nil
}
