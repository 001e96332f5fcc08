// Package errs defines the shared error-kind vocabulary used across the
// entity cache and load coordinator. Every layer (boundedcache, entitycache,
// txchangeset, nameholder, manager) reports failures through one of these
// five kinds so callers can branch on kind with errors.As instead of string
// matching.
package errs

import "fmt"

// InvalidArgument reports a null or out-of-range input at a public boundary.
// Fails fast; has no transaction effect.
type InvalidArgument struct {
	Op  string
	Msg string
}

func (e *InvalidArgument) Error() string {
	if e.Op == "" {
		return "invalid argument: " + e.Msg
	}
	return fmt.Sprintf("invalid argument: %s: %s", e.Op, e.Msg)
}

// NewInvalidArgument builds an InvalidArgument error for op.
func NewInvalidArgument(op, msg string) error {
	return &InvalidArgument{Op: op, Msg: msg}
}

// NotFound reports that a requested id has never existed or is tombstoned.
// Surfaced to the caller; does not roll back a transaction unless the caller
// is already mid multi-step write.
type NotFound struct {
	Kind string
	ID   int64
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// NewNotFound builds a NotFound error for the given entity kind and id.
func NewNotFound(kind string, id int64) error {
	return &NotFound{Kind: kind, ID: id}
}

// LockError reports failure to acquire or release a lock. Always marks the
// owning transaction rollback-only. When it wraps a release failure, Causes
// holds one error per lock whose release failed — every sibling release is
// still attempted before the aggregate is returned.
type LockError struct {
	Op     string
	Causes []error
}

func (e *LockError) Error() string {
	if len(e.Causes) == 0 {
		return "lock error: " + e.Op
	}
	return fmt.Sprintf("lock error: %s (%d release failures): %v", e.Op, len(e.Causes), e.Causes[0])
}

func (e *LockError) Unwrap() []error { return e.Causes }

// NewLockError builds a LockError for op, optionally wrapping causes.
func NewLockError(op string, causes ...error) error {
	return &LockError{Op: op, Causes: causes}
}

// StoreError reports an IO or corruption error surfaced by the record
// loader, and is propagated unchanged. EntityManager's write paths mark the
// owning transaction rollback-only when they return one; its read paths
// (GetNodeByID, GetRelationshipByID, GetRelationships and the ProxyHost
// methods) return it without marking the transaction.
type StoreError struct {
	Op    string
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: %s: %v", e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error { return e.Cause }

// NewStoreError wraps cause as a StoreError for op.
func NewStoreError(op string, cause error) error {
	return &StoreError{Op: op, Cause: cause}
}

// CacheStateError reports an internal assertion violated (e.g. size
// overflow). Fatal — callers should treat it as a programmer error.
type CacheStateError struct {
	Msg string
}

func (e *CacheStateError) Error() string { return "cache state error: " + e.Msg }

// NewCacheStateError builds a CacheStateError.
func NewCacheStateError(msg string) error {
	return &CacheStateError{Msg: msg}
}
