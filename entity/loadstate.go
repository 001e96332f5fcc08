package entity

// LoadState tracks how much of an entity has been materialized from the
// durable store. Property and relationship chains are paged in separately
// from the entity's core fields, so a node can be resident and usable for
// id-based lookups long before its full relationship chain is paged in.
type LoadState int

const (
	// NotLoaded is the zero value: a placeholder with no fields populated.
	NotLoaded LoadState = iota
	// Light means core fields (first-property/first-relationship id) are
	// populated but the property and relationship chains are not paged in.
	Light
	// FullyLoaded means the relationship chain has been paged in at least
	// once (it may still have more pages available from the store).
	FullyLoaded
	// FullyLoadedNew marks a node/relationship created in this transaction
	// and not yet committed — there is nothing to page in from the store.
	FullyLoadedNew
)

func (s LoadState) String() string {
	switch s {
	case NotLoaded:
		return "not_loaded"
	case Light:
		return "light"
	case FullyLoaded:
		return "fully_loaded"
	case FullyLoadedNew:
		return "fully_loaded_new"
	default:
		return "unknown"
	}
}
