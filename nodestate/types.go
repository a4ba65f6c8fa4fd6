package nodestate

import (
	"time"

	"github.com/google/uuid"

	"nodefleet/domain"
)

// NodeState is the cached lifecycle snapshot of one node.
type NodeState struct {
	NodeID        uuid.UUID         `json:"node_id"`
	Name          string            `json:"name"`
	ClusterID     uuid.UUID         `json:"cluster_id"`
	Status        domain.NodeStatus `json:"status"`
	UpdatedAt     *time.Time        `json:"updated_at,omitempty"`
	LastOperation *OperationRef     `json:"last_operation,omitempty"`
}

// OperationRef identifies the operation that last changed a node's status.
type OperationRef struct {
	ID        uuid.UUID            `json:"id"`
	Type      domain.OperationType `json:"operation_type"`
	CreatedAt *time.Time           `json:"created_at,omitempty"`
}

func stateFromNode(n *domain.Node) *NodeState {
	updated := n.UpdatedAt
	if updated == nil {
		updated = n.CreatedAt
	}
	return &NodeState{
		NodeID:    n.ID,
		Name:      n.Name,
		ClusterID: n.ClusterID,
		Status:    n.Status,
		UpdatedAt: updated,
	}
}
