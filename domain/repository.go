package domain

import (
	"context"

	"github.com/google/uuid"
)

// ClusterRepository stores clusters. Create requires an unknown id, Update an
// existing one; both return the persisted record with timestamps populated.
type ClusterRepository interface {
	ListClusters(ctx context.Context) ([]*Cluster, error)
	GetCluster(ctx context.Context, id uuid.UUID) (*Cluster, error)
	CreateCluster(ctx context.Context, c *Cluster) (*Cluster, error)
	UpdateCluster(ctx context.Context, c *Cluster) (*Cluster, error)
	DeleteCluster(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// NodeRepository stores nodes. A nil filter lists every node.
type NodeRepository interface {
	ListNodes(ctx context.Context, filter *NodeFilter) ([]*Node, error)
	GetNode(ctx context.Context, id uuid.UUID) (*Node, error)
	CreateNode(ctx context.Context, n *Node) (*Node, error)
	UpdateNode(ctx context.Context, n *Node) (*Node, error)
	DeleteNode(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// OperationRepository appends operations. CreateOperation must persist the
// operation and set the referenced node's status to the operation's target
// status atomically: both changes become visible or neither does.
type OperationRepository interface {
	CreateOperation(ctx context.Context, op *Operation) (*Operation, error)
}
