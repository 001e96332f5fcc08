package manager

import (
	"context"

	"github.com/graphkit/entitycache/entity"
)

// Scope selects which kind of entity a PropertyTracker is registered
// against: node, relationship, or the single graph-wide property set.
type Scope int

const (
	NodeScope Scope = iota
	RelationshipScope
	GraphScope
)

// PropertyTracker is notified before a property mutation is recorded, in
// registration order. Returning an error aborts the mutation and marks the
// owning transaction rollback-only.
type PropertyTracker interface {
	PropertyAdded(ctx context.Context, scope Scope, entityID int64, key entity.PropertyKey, value any) error
	PropertyChanged(ctx context.Context, scope Scope, entityID int64, key entity.PropertyKey, oldValue, newValue any) error
	PropertyRemoved(ctx context.Context, scope Scope, entityID int64, key entity.PropertyKey, oldValue any) error
}
