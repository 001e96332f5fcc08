// Package entitycache implements EntityCache: the layer atop boundedcache
// and internal/striped that owns the node and relationship caches, the
// load-or-fetch protocol, and lazy relationship-chain paging.
package entitycache

import (
	"context"
	"time"

	"github.com/graphkit/entitycache/boundedcache"
	"github.com/graphkit/entitycache/entity"
	"github.com/graphkit/entitycache/errs"
	"github.com/graphkit/entitycache/internal/striped"
	"github.com/graphkit/entitycache/log"
	"github.com/graphkit/entitycache/storeapi"
)

// CacheConfig configures one of the two underlying BoundedCache instances.
type CacheConfig struct {
	Capacity int
	Variant  boundedcache.Variant
	Shards   int
	Metrics  boundedcache.Metrics
}

// Config configures an EntityCache.
type Config struct {
	Nodes           CacheConfig
	Relationships   CacheConfig
	LoadLockStripes int // 0 -> striped.DefaultStripes

	// LoadWaitObserver, if set, is called with the time spent inside a
	// striped-lock-guarded load (stripe acquisition plus, on a genuine
	// miss, the record loader round trip) every time GetNodeOrNull or
	// GetRelationshipOrNull falls off the fast path. kind is "node" or
	// "relationship". Wired to a Prometheus histogram in metrics/prom.
	LoadWaitObserver func(kind string, d time.Duration)
}

// EntityCache owns the node and relationship BoundedCaches plus the striped
// load locks that serialize the "load from store" path per id — no other
// component reaches into these caches directly.
type EntityCache struct {
	loader storeapi.RecordLoader

	nodes     boundedcache.BoundedCache[int64, *entity.InternalNode]
	rels      boundedcache.BoundedCache[int64, *entity.InternalRelationship]
	nodeLocks *striped.Locks
	relLocks  *striped.Locks

	loadWaitObserver func(kind string, d time.Duration)
}

func New(loader storeapi.RecordLoader, cfg Config) (*EntityCache, error) {
	nodeCache, err := boundedcache.New[int64, *entity.InternalNode](boundedcache.Options[int64, *entity.InternalNode]{
		Name:     "entitycache.nodes",
		Capacity: cfg.Nodes.Capacity,
		Variant:  cfg.Nodes.Variant,
		Shards:   cfg.Nodes.Shards,
		Metrics:  cfg.Nodes.Metrics,
	})
	if err != nil {
		return nil, err
	}
	relCache, err := boundedcache.New[int64, *entity.InternalRelationship](boundedcache.Options[int64, *entity.InternalRelationship]{
		Name:     "entitycache.relationships",
		Capacity: cfg.Relationships.Capacity,
		Variant:  cfg.Relationships.Variant,
		Shards:   cfg.Relationships.Shards,
		Metrics:  cfg.Relationships.Metrics,
	})
	if err != nil {
		return nil, err
	}

	return &EntityCache{
		loader:           loader,
		nodes:            nodeCache,
		rels:             relCache,
		nodeLocks:        striped.New(cfg.LoadLockStripes),
		relLocks:         striped.New(cfg.LoadLockStripes),
		loadWaitObserver: cfg.LoadWaitObserver,
	}, nil
}

func (c *EntityCache) observeLoadWait(kind string, start time.Time) {
	if c.loadWaitObserver == nil {
		return
	}
	c.loadWaitObserver(kind, time.Since(start))
}

// NodeCache/RelationshipCache expose the underlying BoundedCaches for
// AdaptiveCacheManager registration (manager.EntityManager.ConfigureAdaptiveCache).
func (c *EntityCache) NodeCache() boundedcache.BoundedCache[int64, *entity.InternalNode] {
	return c.nodes
}

func (c *EntityCache) RelationshipCache() boundedcache.BoundedCache[int64, *entity.InternalRelationship] {
	return c.rels
}

// GetNodeOrNull implements the fast-path-then-striped-load protocol: a
// cache hit returns immediately; a miss takes id's stripe lock, re-checks
// (another goroutine may have just installed it), and only then calls the
// record loader. Returns (nil, nil) if the loader reports no such id.
func (c *EntityCache) GetNodeOrNull(ctx context.Context, id int64) (*entity.InternalNode, error) {
	if n, ok := c.nodes.Get(id); ok {
		return n, nil
	}

	start := time.Now()
	defer c.observeLoadWait("node", start)

	var result *entity.InternalNode
	err := striped.WithLock(c.nodeLocks, id, func() error {
		if n, ok := c.nodes.Get(id); ok {
			result = n
			return nil
		}

		rec, found, err := c.loader.LoadLightNode(ctx, id)
		if err != nil {
			return errs.NewStoreError("GetNodeOrNull", err)
		}
		if !found {
			return nil
		}

		n := entity.NewInternalNode(rec.ID, rec.FirstPropertyID, rec.FirstRelationshipID, entity.Light)
		if err := c.nodes.Put(id, n); err != nil {
			return errs.NewCacheStateError("GetNodeOrNull: " + err.Error())
		}
		result = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetNodeByID is GetNodeOrNull but fails with errs.NotFound when absent.
func (c *EntityCache) GetNodeByID(ctx context.Context, id int64) (*entity.InternalNode, error) {
	n, err := c.GetNodeOrNull(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, errs.NewNotFound("node", id)
	}
	return n, nil
}

// GetRelationshipOrNull is the relationship-side symmetric operation.
func (c *EntityCache) GetRelationshipOrNull(ctx context.Context, id int64) (*entity.InternalRelationship, error) {
	if r, ok := c.rels.Get(id); ok {
		return r, nil
	}

	start := time.Now()
	defer c.observeLoadWait("relationship", start)

	var result *entity.InternalRelationship
	err := striped.WithLock(c.relLocks, id, func() error {
		if r, ok := c.rels.Get(id); ok {
			result = r
			return nil
		}

		rec, found, err := c.loader.LoadLightRelationship(ctx, id)
		if err != nil {
			return errs.NewStoreError("GetRelationshipOrNull", err)
		}
		if !found {
			return nil
		}

		r := entity.NewInternalRelationship(rec.ID, rec.StartNodeID, rec.EndNodeID, rec.TypeID, rec.FirstPropertyID, entity.Light)
		if err := c.rels.Put(id, r); err != nil {
			return errs.NewCacheStateError("GetRelationshipOrNull: " + err.Error())
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *EntityCache) GetRelationshipByID(ctx context.Context, id int64) (*entity.InternalRelationship, error) {
	r, err := c.GetRelationshipOrNull(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, errs.NewNotFound("relationship", id)
	}
	return r, nil
}

// WalkAllNodes lazily walks every allocated node id: it calls fn for
// [0..highestAllocatedId], skipping ids the loader reports absent, stopping
// early if fn returns an error or false.
func (c *EntityCache) WalkAllNodes(ctx context.Context, fn func(*entity.InternalNode) (cont bool, err error)) error {
	highest, err := c.loader.GetHighestIDInUse(ctx, storeapi.NodeIdKind)
	if err != nil {
		return errs.NewStoreError("WalkAllNodes", err)
	}
	for id := int64(0); id <= highest; id++ {
		n, err := c.GetNodeOrNull(ctx, id)
		if err != nil {
			return err
		}
		if n == nil {
			continue
		}
		cont, err := fn(n)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

// EvictNode/EvictRelationship remove an entry from cache without deleting
// it on disk.
func (c *EntityCache) EvictNode(id int64) bool         { return c.nodes.Remove(id) }
func (c *EntityCache) EvictRelationship(id int64) bool { return c.rels.Remove(id) }

// Clear empties both underlying caches without touching the durable store.
func (c *EntityCache) Clear() {
	c.nodes.Clear()
	c.rels.Clear()
}

// PutNode/PutRelationship publish an already-constructed internal entity
// (used by EntityManager.CreateNode and EntityManager.CreateRelationship).
func (c *EntityCache) PutNode(n *entity.InternalNode) error         { return c.nodes.Put(n.ID(), n) }
func (c *EntityCache) PutRelationship(r *entity.InternalRelationship) error {
	return c.rels.Put(r.ID(), r)
}

// PageRelationships implements the relationship-chain paging protocol:
// fetch the next batch from the record loader, materialize it into a local
// map first, merge that map atomically into the node, and only then
// bulk-insert the relationship objects into the relationship cache. A node
// whose chain for typeName is already fully paged is a no-op.
func (c *EntityCache) PageRelationships(ctx context.Context, node *entity.InternalNode, typeName entity.RelationshipTypeName) error {
	cursor, _ := node.CursorFor(typeName)
	if cursor.Done {
		return nil
	}

	batch, next, err := c.loader.GetMoreRelationships(ctx, node.ID(), cursor)
	if err != nil {
		return errs.NewStoreError("PageRelationships", err)
	}

	ids := make(map[entity.Direction][]int64, len(batch))
	toInsert := make([]*entity.InternalRelationship, 0)
	for dir, recs := range batch {
		for _, rec := range recs {
			d := dir
			if rec.StartNodeID == rec.EndNodeID {
				d = entity.Both
			}
			ids[d] = append(ids[d], rec.ID)
			toInsert = append(toInsert, entity.NewInternalRelationship(rec.ID, rec.StartNodeID, rec.EndNodeID, rec.TypeID, rec.FirstPropertyID, entity.Light))
		}
	}

	node.MergeRelationshipBatch(typeName, ids, next)

	for _, r := range toInsert {
		if err := c.PutRelationship(r); err != nil {
			log.WithComponent("entitycache").Warn().Int64("relationship_id", r.ID()).Err(err).Msg("failed to insert paged relationship")
		}
	}
	return nil
}
