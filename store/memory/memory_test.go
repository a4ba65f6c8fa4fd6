package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodefleet/domain"
)

func seed(t *testing.T, s *Store) (*domain.Cluster, *domain.Node) {
	t.Helper()
	ctx := context.Background()
	c, err := s.CreateCluster(ctx, &domain.Cluster{ID: uuid.New(), Name: "alpha"})
	require.NoError(t, err)
	n, err := s.CreateNode(ctx, &domain.Node{ID: uuid.New(), Name: "box", ClusterID: c.ID, Status: domain.NodeStatusPowerOff})
	require.NoError(t, err)
	return c, n
}

func TestClusterLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	in := &domain.Cluster{ID: uuid.New(), Name: "alpha"}

	created, err := s.CreateCluster(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, in.ID, created.ID)
	assert.Equal(t, "alpha", created.Name)
	require.NotNil(t, created.CreatedAt)
	assert.Nil(t, created.UpdatedAt)

	_, err = s.CreateCluster(ctx, in)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	updated, err := s.UpdateCluster(ctx, &domain.Cluster{ID: in.ID, Name: "beta"})
	require.NoError(t, err)
	assert.Equal(t, "beta", updated.Name)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.NotNil(t, updated.UpdatedAt)

	_, err = s.UpdateCluster(ctx, &domain.Cluster{ID: uuid.New(), Name: "x"})
	assert.ErrorIs(t, err, domain.ErrDoesNotExist)

	_, err = s.GetCluster(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	id, err := s.DeleteCluster(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, in.ID, id)

	_, err = s.DeleteCluster(ctx, in.ID)
	assert.ErrorIs(t, err, domain.ErrDoesNotExist)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s := New()
	_, n := seed(t, s)
	n.Status = domain.NodeStatusRebooting

	got, err := s.GetNode(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NodeStatusPowerOff, got.Status)
}

func TestListNodesFilter(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, box := seed(t, s)
	beta, err := s.CreateCluster(ctx, &domain.Cluster{ID: uuid.New(), Name: "beta"})
	require.NoError(t, err)
	_, err = s.CreateNode(ctx, &domain.Node{ID: uuid.New(), Name: "crate", ClusterID: beta.ID, Status: domain.NodeStatusPowerOn})
	require.NoError(t, err)

	all, err := s.ListNodes(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byCluster, err := s.ListNodes(ctx, &domain.NodeFilter{Name: "alph"})
	require.NoError(t, err)
	require.Len(t, byCluster, 1)
	assert.Equal(t, box.ID, byCluster[0].ID)

	byName, err := s.ListNodes(ctx, &domain.NodeFilter{Name: "rat"})
	require.NoError(t, err)
	assert.Len(t, byName, 1)

	caseSensitive, err := s.ListNodes(ctx, &domain.NodeFilter{Name: "Alpha"})
	require.NoError(t, err)
	assert.Empty(t, caseSensitive)
}

func TestCreateNodeRequiresCluster(t *testing.T) {
	s := New()
	_, err := s.CreateNode(context.Background(), &domain.Node{ID: uuid.New(), Name: "orphan", ClusterID: uuid.New(), Status: domain.NodeStatusPowerOn})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestUpdateNodeRequiresCluster(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, n := seed(t, s)

	n.ClusterID = uuid.New()
	_, err := s.UpdateNode(ctx, n)
	assert.ErrorIs(t, err, domain.ErrDoesNotExist)

	got, err := s.GetNode(ctx, n.ID)
	require.NoError(t, err)
	assert.NotEqual(t, n.ClusterID, got.ClusterID, "failed update must not move the node")
}

func TestListsBreakTimestampTiesByID(t *testing.T) {
	s := New()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	ids := []uuid.UUID{
		uuid.MustParse("cccccccc-0000-0000-0000-000000000000"),
		uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000"),
		uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000"),
	}
	for _, id := range ids {
		_, err := s.CreateCluster(ctx, &domain.Cluster{ID: id, Name: "c"})
		require.NoError(t, err)
		_, err = s.CreateNode(ctx, &domain.Node{ID: id, Name: "n", ClusterID: id, Status: domain.NodeStatusPowerOn})
		require.NoError(t, err)
	}
	want := []uuid.UUID{ids[1], ids[2], ids[0]}

	for i := 0; i < 5; i++ {
		clusters, err := s.ListClusters(ctx)
		require.NoError(t, err)
		nodes, err := s.ListNodes(ctx, nil)
		require.NoError(t, err)
		require.Len(t, clusters, 3)
		require.Len(t, nodes, 3)
		for k := range want {
			assert.Equal(t, want[k], clusters[k].ID)
			assert.Equal(t, want[k], nodes[k].ID)
		}
	}
}

func TestDeleteClusterRemovesNodes(t *testing.T) {
	s := New()
	ctx := context.Background()
	c, n := seed(t, s)

	_, err := s.DeleteCluster(ctx, c.ID)
	require.NoError(t, err)
	_, err = s.GetNode(ctx, n.ID)
	assert.Error(t, err)
}

func TestCreateOperationTracksStatus(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, n := seed(t, s)

	seq := []domain.OperationType{domain.OperationReboot, domain.OperationPowerOn, domain.OperationPowerOff}
	for k, typ := range seq {
		op, err := s.CreateOperation(ctx, domain.NewOperation(n.ID, typ))
		require.NoError(t, err)
		assert.NotNil(t, op.CreatedAt)

		node, err := s.GetNode(ctx, n.ID)
		require.NoError(t, err)
		assert.Equal(t, typ.TargetStatus(), node.Status)
		assert.Equal(t, op.CreatedAt, node.UpdatedAt)

		ops, err := s.ListOperations(ctx, n.ID)
		require.NoError(t, err)
		assert.Len(t, ops, k+1)
	}
}

func TestCreateOperationFailuresWriteNothing(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, n := seed(t, s)

	missing := uuid.New()
	_, err := s.CreateOperation(ctx, domain.NewOperation(missing, domain.OperationPowerOn))
	assert.ErrorIs(t, err, domain.ErrDoesNotExist)
	ops, err := s.ListOperations(ctx, missing)
	require.NoError(t, err)
	assert.Empty(t, ops)

	first, err := s.CreateOperation(ctx, domain.NewOperation(n.ID, domain.OperationPowerOn))
	require.NoError(t, err)
	_, err = s.CreateOperation(ctx, &domain.Operation{ID: first.ID, NodeID: n.ID, OperationType: domain.OperationReboot})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	node, err := s.GetNode(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NodeStatusPowerOn, node.Status)
}

func TestPanicSurfacesAsLockError(t *testing.T) {
	s := New()
	s.now = func() time.Time { panic("clock gone") }

	_, err := s.CreateCluster(context.Background(), &domain.Cluster{ID: uuid.New(), Name: "alpha"})
	require.ErrorIs(t, err, domain.ErrLock)
	assert.Equal(t, "PoisonError: `clock gone`", err.Error())

	// The lock was released on the way out.
	s.now = func() time.Time { return time.Now().UTC() }
	_, err = s.CreateCluster(context.Background(), &domain.Cluster{ID: uuid.New(), Name: "beta"})
	assert.NoError(t, err)
}

func TestConcurrentOperations(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, n := seed(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateOperation(ctx, domain.NewOperation(n.ID, domain.OperationReboot))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ops, err := s.ListOperations(ctx, n.ID)
	require.NoError(t, err)
	assert.Len(t, ops, 50)
}
