package memstore_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphkit/entitycache/memstore"
	"github.com/graphkit/entitycache/storeapi"
)

func TestNextID_AllocatesSequentiallyPerKind(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	n0, err := s.NextID(ctx, storeapi.NodeIdKind)
	require.NoError(t, err)
	n1, err := s.NextID(ctx, storeapi.NodeIdKind)
	require.NoError(t, err)
	r0, err := s.NextID(ctx, storeapi.RelationshipIdKind)
	require.NoError(t, err)

	assert.Equal(t, int64(0), n0)
	assert.Equal(t, int64(1), n1)
	assert.Equal(t, int64(0), r0, "relationship id space is independent of the node id space")
}

func TestNextID_ConcurrentCallersGetDistinctIDs(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	const n = 200
	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.NextID(ctx, storeapi.NodeIdKind)
			require.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool, n)
	for _, id := range ids {
		assert.False(t, seen[id], "id %d allocated twice", id)
		seen[id] = true
	}
}

func TestCreateNode_ThenLoadLightNodeFindsIt(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	require.NoError(t, s.CreateNode(ctx, 7))

	rec, found, err := s.LoadLightNode(ctx, 7)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(7), rec.ID)
	assert.Equal(t, int64(-1), rec.FirstRelationshipID)
}

func TestCreateNode_DuplicateIDFails(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	require.NoError(t, s.CreateNode(ctx, 1))
	assert.Error(t, s.CreateNode(ctx, 1))
}

func TestCreateRelationship_RequiresBothEndpointsToExist(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	require.NoError(t, s.CreateNode(ctx, 1))

	err := s.CreateRelationship(ctx, 100, 1, 1, 2)
	assert.Error(t, err, "end node 2 was never created")
}

func TestCreateRelationship_SelfLoopRecordedOnceOnOutgoingSide(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	require.NoError(t, s.CreateNode(ctx, 1))
	require.NoError(t, s.CreateRelationship(ctx, 100, 5, 1, 1))

	batch, _, err := s.GetMoreRelationships(ctx, 1, storeapi.Cursor{})
	require.NoError(t, err)
	assert.Len(t, batch[storeapi.Outgoing], 1)
	_, hasIncoming := batch[storeapi.Incoming]
	assert.False(t, hasIncoming, "a self-loop is recorded once, on the outgoing side only")
}

func TestCreateRelationship_AppearsOnBothEndpoints(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	require.NoError(t, s.CreateNode(ctx, 1))
	require.NoError(t, s.CreateNode(ctx, 2))
	require.NoError(t, s.CreateRelationship(ctx, 100, 5, 1, 2))

	out, _, err := s.GetMoreRelationships(ctx, 1, storeapi.Cursor{})
	require.NoError(t, err)
	require.Len(t, out[storeapi.Outgoing], 1)
	assert.Equal(t, int64(100), out[storeapi.Outgoing][0].ID)

	in, _, err := s.GetMoreRelationships(ctx, 2, storeapi.Cursor{})
	require.NoError(t, err)
	require.Len(t, in[storeapi.Incoming], 1)
	assert.Equal(t, int64(100), in[storeapi.Incoming][0].ID)
}

func TestNodeProperty_AddChangeRemoveRoundtrip(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	require.NoError(t, s.CreateNode(ctx, 1))

	require.NoError(t, s.NodeAddProperty(ctx, 1, "name", "alice"))
	require.NoError(t, s.NodeChangeProperty(ctx, 1, "name", "bob"))
	require.NoError(t, s.NodeRemoveProperty(ctx, 1, "name"))
}

func TestDeleteNode_ReturnsPropertiesAndTombstones(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	require.NoError(t, s.CreateNode(ctx, 1))
	require.NoError(t, s.NodeAddProperty(ctx, 1, "name", "alice"))

	props, err := s.DeleteNode(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", props["name"])

	_, found, err := s.LoadLightNode(ctx, 1)
	require.NoError(t, err)
	assert.False(t, found, "a deleted node must not be found")

	_, err = s.DeleteNode(ctx, 1)
	assert.Error(t, err, "deleting twice is an error")
}

func TestGetHighestIDInUse_TracksMaxCreatedID(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	require.NoError(t, s.CreateNode(ctx, 3))
	require.NoError(t, s.CreateNode(ctx, 9))
	require.NoError(t, s.CreateNode(ctx, 4))

	highest, err := s.GetHighestIDInUse(ctx, storeapi.NodeIdKind)
	require.NoError(t, err)
	assert.Equal(t, int64(9), highest)
}

func TestIsCreated_ReflectsExistenceAndDeletion(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	require.NoError(t, s.CreateNode(ctx, 1))

	ok, err := s.IsCreated(ctx, 1, storeapi.NodeIdKind)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.DeleteNode(ctx, 1)
	require.NoError(t, err)

	ok, err = s.IsCreated(ctx, 1, storeapi.NodeIdKind)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocks_SecondAcquireBlocksUntilReleased(t *testing.T) {
	locks := memstore.NewLocks()
	ctx := context.Background()
	resource := storeapi.Resource{Type: storeapi.NodeResource, ID: 1}

	require.NoError(t, locks.Acquire(ctx, resource, storeapi.WriteLock))

	acquired := make(chan struct{})
	go func() {
		_ = locks.Acquire(ctx, resource, storeapi.WriteLock)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire returned before the first Release")
	default:
	}

	var releaseErr error
	require.NoError(t, locks.Release(ctx, resource, storeapi.WriteLock, func(err error) { releaseErr = err }))
	assert.NoError(t, releaseErr)

	<-acquired
}

func TestLocks_ReleaseWithoutHoldingReportsErrorThroughCallback(t *testing.T) {
	locks := memstore.NewLocks()
	ctx := context.Background()
	resource := storeapi.Resource{Type: storeapi.RelationshipResource, ID: 1}

	var callbackErr error
	err := locks.Release(ctx, resource, storeapi.WriteLock, func(err error) { callbackErr = err })
	assert.Error(t, err)
	assert.Error(t, callbackErr)
}

func TestTx_CommitRunsSynchronizationHooksWithTrue(t *testing.T) {
	tx := memstore.NewTx()
	var gotCommitted bool
	var called bool
	tx.RegisterSynchronization(func(committed bool) {
		called = true
		gotCommitted = committed
	})

	require.NoError(t, tx.Commit())
	assert.True(t, called)
	assert.True(t, gotCommitted)
}

func TestTx_RollbackOnlyForcesCommitToRollback(t *testing.T) {
	tx := memstore.NewTx()
	var gotCommitted bool
	tx.RegisterSynchronization(func(committed bool) { gotCommitted = committed })

	tx.SetRollbackOnly()
	assert.True(t, tx.IsRollbackOnly())
	_ = tx.Commit()
	assert.False(t, gotCommitted)
}

func TestTx_MetadataRoundtripsAndRejectsOversize(t *testing.T) {
	tx := memstore.NewTx()
	require.NoError(t, tx.SetMetadata("trace_id", "abc123"))

	v, ok := tx.Metadata("trace_id")
	require.True(t, ok)
	assert.Equal(t, "abc123", v)

	huge := make([]byte, 4096)
	for i := range huge {
		huge[i] = 'x'
	}
	assert.Error(t, tx.SetMetadata("blob", string(huge)))
}

func TestTx_IDsAreUniquePerTransaction(t *testing.T) {
	a := memstore.NewTx()
	b := memstore.NewTx()
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestTxProvider_RoundtripsThroughContext(t *testing.T) {
	tx := memstore.NewTx()
	ctx := memstore.WithTx(context.Background(), tx)

	got, err := memstore.TxProvider(ctx)
	require.NoError(t, err)
	assert.Equal(t, tx.ID(), got.ID())
}

func TestTxProvider_MissingTransactionFails(t *testing.T) {
	_, err := memstore.TxProvider(context.Background())
	assert.Error(t, err)
}
