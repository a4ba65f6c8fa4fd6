package messaging

import (
	"time"

	"nodefleet/domain"
)

// Envelope is the typed wrapper for every event nodefleet publishes.
type Envelope struct {
	MsgType   string    `json:"msg_type"`
	MsgID     string    `json:"msg_id"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

const (
	MsgOperationCreated = "operation_created"

	// SourceName identifies this service in outbound envelopes.
	SourceName = "nodefleet"
)

// --- Outbound payloads ---

type OperationCreated struct {
	Operation  *domain.Operation `json:"operation"`
	NodeStatus domain.NodeStatus `json:"node_status"`
}
