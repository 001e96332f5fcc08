// Package manager implements EntityManager: the single facade application
// code drives to create, read, mutate and delete nodes and relationships.
// It wires together entitycache (cached entities), nameholder
// (type/key/reference-node registries), txchangeset (per-transaction pending
// state) and the storeapi collaborators (record loader, lock manager, id
// generator, transaction context) into one coherent write/read protocol.
package manager

import (
	"context"
	"sync"

	"github.com/graphkit/entitycache/entity"
	"github.com/graphkit/entitycache/entitycache"
	"github.com/graphkit/entitycache/nameholder"
	"github.com/graphkit/entitycache/storeapi"
	"github.com/graphkit/entitycache/txchangeset"
)

// TxProvider resolves the caller's ambient transaction from ctx. Typically a
// thin wrapper over whatever carries the transaction through the caller's own
// context (e.g. a context value the surrounding request/transaction
// middleware installs).
type TxProvider func(ctx context.Context) (storeapi.TransactionContext, error)

// Config wires an EntityManager's collaborators.
type Config struct {
	Cache      *entitycache.EntityCache
	Loader     storeapi.RecordLoader
	Locks      storeapi.LockManager
	IDs        storeapi.IdGenerator
	TxProvider TxProvider

	RelTypes  *nameholder.RelationshipTypeHolder
	PropKeys  *nameholder.PropertyKeyHolder
	CacheType string // reported verbatim by CacheType(), e.g. "clock" or "lru"
}

// EntityManager is the load coordinator and mutation facade. It implements
// entity.ProxyHost so NodeProxy/RelationshipProxy values it hands out can
// fault their data back in through it.
type EntityManager struct {
	cache      *entitycache.EntityCache
	loader     storeapi.RecordLoader
	locks      storeapi.LockManager
	ids        storeapi.IdGenerator
	txProvider TxProvider
	cacheType  string

	relTypes *nameholder.RelationshipTypeHolder
	propKeys *nameholder.PropertyKeyHolder
	refNodes *nameholder.ReferenceNodeHolder

	mu         sync.Mutex
	changeSets map[string]*txchangeset.ChangeSet

	trackersMu    sync.RWMutex
	nodeTrackers  []PropertyTracker
	relTrackers   []PropertyTracker
	graphTrackers []PropertyTracker
}

func New(cfg Config) *EntityManager {
	m := &EntityManager{
		cache:      cfg.Cache,
		loader:     cfg.Loader,
		locks:      cfg.Locks,
		ids:        cfg.IDs,
		txProvider: cfg.TxProvider,
		cacheType:  cfg.CacheType,
		relTypes:   cfg.RelTypes,
		propKeys:   cfg.PropKeys,
		changeSets: make(map[string]*txchangeset.ChangeSet),
	}
	m.refNodes = nameholder.NewReferenceNodeHolder(func(ctx context.Context, name string) (int64, error) {
		proxy, err := m.CreateNode(ctx)
		if err != nil {
			return 0, err
		}
		return proxy.ID(), nil
	})
	return m
}

// changeSetFor returns (creating if necessary) the ChangeSet for tx, and
// registers a commit/rollback synchronization hook the first time a
// transaction is touched: on commit it marks the change set committed, on
// rollback it evicts every touched entity; either way the set is then dropped.
func (m *EntityManager) changeSetFor(tx storeapi.TransactionContext) *txchangeset.ChangeSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.changeSets[tx.ID()]
	if ok {
		return cs
	}
	cs = txchangeset.New(tx.ID())
	m.changeSets[tx.ID()] = cs
	tx.RegisterSynchronization(func(committed bool) {
		m.onTransactionEnd(cs, committed)
	})
	return cs
}

// onTransactionEnd marks a transaction's change set committed or rolled
// back and drops it. Commit writes nothing from the set into the cache.
// Rollback evicts every touched entity so no transaction ever observes
// another's uncommitted writes once this one unwinds (the rollback-residue
// invariant): mutations before this point were already applied directly to
// the shared entitycache (see CreateRelationship), so eviction is what
// actually undoes them from the cache's perspective; the durable record
// loader's own rollback is assumed to undo them at the store layer.
func (m *EntityManager) onTransactionEnd(cs *txchangeset.ChangeSet, committed bool) {
	if committed {
		cs.MarkCommitted()
	} else {
		for _, id := range cs.TouchedNodeIDs() {
			m.cache.EvictNode(id)
		}
		for _, id := range cs.TouchedRelationshipIDs() {
			m.cache.EvictRelationship(id)
		}
		cs.MarkRolledBack()
	}
	m.mu.Lock()
	delete(m.changeSets, cs.TxID())
	m.mu.Unlock()
}

func (m *EntityManager) tx(ctx context.Context) (storeapi.TransactionContext, error) {
	return m.txProvider(ctx)
}

// CacheType reports the configured eviction policy name.
func (m *EntityManager) CacheType() string { return m.cacheType }

// ClearCache empties both underlying caches without touching the durable store.
func (m *EntityManager) ClearCache() { m.cache.Clear() }

// AddPropertyTracker registers tracker against scope. Trackers are notified
// in registration order, before the corresponding mutation is recorded.
func (m *EntityManager) AddPropertyTracker(scope Scope, tracker PropertyTracker) {
	m.trackersMu.Lock()
	defer m.trackersMu.Unlock()
	switch scope {
	case NodeScope:
		m.nodeTrackers = append(m.nodeTrackers, tracker)
	case RelationshipScope:
		m.relTrackers = append(m.relTrackers, tracker)
	case GraphScope:
		m.graphTrackers = append(m.graphTrackers, tracker)
	}
}

func (m *EntityManager) trackersFor(scope Scope) []PropertyTracker {
	m.trackersMu.RLock()
	defer m.trackersMu.RUnlock()
	switch scope {
	case NodeScope:
		return append([]PropertyTracker(nil), m.nodeTrackers...)
	case RelationshipScope:
		return append([]PropertyTracker(nil), m.relTrackers...)
	default:
		return append([]PropertyTracker(nil), m.graphTrackers...)
	}
}

// notifyAdded runs every scope tracker's PropertyAdded hook in order,
// aborting (and marking tx rollback-only) on the first error.
func (m *EntityManager) notifyAdded(ctx context.Context, tx storeapi.TransactionContext, scope Scope, id int64, key entity.PropertyKey, value any) error {
	for _, t := range m.trackersFor(scope) {
		if err := t.PropertyAdded(ctx, scope, id, key, value); err != nil {
			tx.SetRollbackOnly()
			return err
		}
	}
	return nil
}

func (m *EntityManager) notifyChanged(ctx context.Context, tx storeapi.TransactionContext, scope Scope, id int64, key entity.PropertyKey, oldValue, newValue any) error {
	for _, t := range m.trackersFor(scope) {
		if err := t.PropertyChanged(ctx, scope, id, key, oldValue, newValue); err != nil {
			tx.SetRollbackOnly()
			return err
		}
	}
	return nil
}

func (m *EntityManager) notifyRemoved(ctx context.Context, tx storeapi.TransactionContext, scope Scope, id int64, key entity.PropertyKey, oldValue any) error {
	for _, t := range m.trackersFor(scope) {
		if err := t.PropertyRemoved(ctx, scope, id, key, oldValue); err != nil {
			tx.SetRollbackOnly()
			return err
		}
	}
	return nil
}

// ReferenceNode returns the well-known node for name, creating it (and a
// backing node) the first time name is used.
func (m *EntityManager) ReferenceNode(ctx context.Context, name string) (entity.NodeProxy, error) {
	id, err := m.refNodes.GetOrCreate(ctx, name)
	if err != nil {
		return entity.NodeProxy{}, err
	}
	return entity.NewNodeProxy(id, m), nil
}

// GetNodeByID returns a proxy for id, failing with errs.NotFound if absent.
func (m *EntityManager) GetNodeByID(ctx context.Context, id int64) (entity.NodeProxy, error) {
	if _, err := m.cache.GetNodeByID(ctx, id); err != nil {
		return entity.NodeProxy{}, err
	}
	return entity.NewNodeProxy(id, m), nil
}

// GetRelationshipByID returns a proxy for id, failing with errs.NotFound if absent.
func (m *EntityManager) GetRelationshipByID(ctx context.Context, id int64) (entity.RelationshipProxy, error) {
	if _, err := m.cache.GetRelationshipByID(ctx, id); err != nil {
		return entity.RelationshipProxy{}, err
	}
	return entity.NewRelationshipProxy(id, m), nil
}

// SetTransactionMetadata attaches a small diagnostic key/value pair to the
// caller's ambient transaction.
func (m *EntityManager) SetTransactionMetadata(ctx context.Context, key, value string) error {
	tx, err := m.tx(ctx)
	if err != nil {
		return err
	}
	return tx.SetMetadata(key, value)
}

// TransactionMetadata reads back a value set with SetTransactionMetadata.
func (m *EntityManager) TransactionMetadata(ctx context.Context, key string) (string, bool, error) {
	tx, err := m.tx(ctx)
	if err != nil {
		return "", false, err
	}
	v, ok := tx.Metadata(key)
	return v, ok, nil
}

// sortedInt64 orders a pair of node ids for the fixed lock-acquisition order
// CreateRelationship depends on, so a symmetric concurrent create never
// deadlocks against this one.
func sortedInt64(a, b int64) (lo, hi int64) {
	if a <= b {
		return a, b
	}
	return b, a
}
