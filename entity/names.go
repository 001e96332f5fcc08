package entity

import "github.com/graphkit/entitycache/storeapi"

// Direction re-exports storeapi.Direction under the entity package: proxies
// and internal nodes reason about directions in these same terms, and a
// second independent enum would only invite the two to drift.
type Direction = storeapi.Direction

const (
	Outgoing = storeapi.Outgoing
	Incoming = storeapi.Incoming
	Both     = storeapi.Both
)

// RelationshipTypeName is a relationship type's human-readable name, the
// key nameholder.RelationshipTypeHolder maps to a small integer id.
type RelationshipTypeName string

// PropertyKey is a property's human-readable name, the key
// nameholder.PropertyKeyHolder maps to a small integer id.
type PropertyKey string

// ReferenceNode is a named, well-known root node used as an anchor for
// application data.
type ReferenceNode struct {
	Name         string
	TargetNodeID int64
}
