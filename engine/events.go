package engine

import (
	"github.com/google/uuid"

	"nodefleet/domain"
)

const (
	EventOperationCreated EventType = iota + 1
	EventNodeUpdated
	EventClusterUpdated
	EventMessagingConnected
	EventMessagingDisconnected
)

// Entity actions carried by NodeUpdatedEvent and ClusterUpdatedEvent.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// --- Event payloads ---

type OperationCreatedEvent struct {
	Operation  *domain.Operation
	NodeStatus domain.NodeStatus
}

type NodeUpdatedEvent struct {
	NodeID   uuid.UUID
	NodeName string
	Action   string
}

type ClusterUpdatedEvent struct {
	ClusterID   uuid.UUID
	ClusterName string
	Action      string
}

type ConnectionEvent struct {
	Detail string
}
