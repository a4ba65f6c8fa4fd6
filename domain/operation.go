package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OperationType is a power-lifecycle command against a node.
type OperationType string

const (
	OperationPowerOn  OperationType = "poweron"
	OperationPowerOff OperationType = "poweroff"
	OperationReboot   OperationType = "reboot"
)

func ParseOperationType(s string) (OperationType, error) {
	switch OperationType(s) {
	case OperationPowerOn, OperationPowerOff, OperationReboot:
		return OperationType(s), nil
	}
	return "", fmt.Errorf("invalid operation type %q", s)
}

func (t OperationType) Valid() bool {
	_, err := ParseOperationType(string(t))
	return err == nil
}

// TargetStatus is the node status an operation of this type leaves behind.
func (t OperationType) TargetStatus() NodeStatus {
	switch t {
	case OperationPowerOn:
		return NodeStatusPowerOn
	case OperationPowerOff:
		return NodeStatusPowerOff
	case OperationReboot:
		return NodeStatusRebooting
	}
	panic(fmt.Sprintf("domain: unknown operation type %q", string(t)))
}

func (t OperationType) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid operation type %q", string(t))
	}
	return json.Marshal(string(t))
}

func (t *OperationType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseOperationType(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scan reads the operation_type enum column.
func (t *OperationType) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("scan operation type: unsupported type %T", src)
	}
	parsed, err := ParseOperationType(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Operation is an immutable record of a command issued against a node.
type Operation struct {
	ID            uuid.UUID     `json:"id"`
	NodeID        uuid.UUID     `json:"node_id"`
	OperationType OperationType `json:"operation_type"`
	CreatedAt     *time.Time    `json:"created_at"`
	UpdatedAt     *time.Time    `json:"updated_at"`
}

// NewOperation builds an unsaved operation with a fresh id. Timestamps are
// left empty for the storage layer to assign.
func NewOperation(nodeID uuid.UUID, opType OperationType) *Operation {
	return &Operation{
		ID:            uuid.New(),
		NodeID:        nodeID,
		OperationType: opType,
	}
}
