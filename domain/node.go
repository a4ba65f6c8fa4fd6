package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NodeStatus is the observable power state of a node.
type NodeStatus string

const (
	NodeStatusPowerOn   NodeStatus = "poweron"
	NodeStatusPowerOff  NodeStatus = "poweroff"
	NodeStatusRebooting NodeStatus = "rebooting"
)

// ParseNodeStatus accepts only the lowercase wire tokens.
func ParseNodeStatus(s string) (NodeStatus, error) {
	switch NodeStatus(s) {
	case NodeStatusPowerOn, NodeStatusPowerOff, NodeStatusRebooting:
		return NodeStatus(s), nil
	}
	return "", fmt.Errorf("invalid node status %q", s)
}

func (s NodeStatus) Valid() bool {
	_, err := ParseNodeStatus(string(s))
	return err == nil
}

func (s NodeStatus) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid node status %q", string(s))
	}
	return json.Marshal(string(s))
}

func (s *NodeStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseNodeStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Scan reads the node_status enum column.
func (s *NodeStatus) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("scan node status: unsupported type %T", src)
	}
	parsed, err := ParseNodeStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Node is a managed compute unit belonging to a cluster.
type Node struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	ClusterID uuid.UUID  `json:"cluster_id"`
	Status    NodeStatus `json:"status"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// NodeFilter narrows a node listing. Name is matched as a case-sensitive
// substring of either the node name or the owning cluster's name.
type NodeFilter struct {
	Name string `json:"name"`
}
