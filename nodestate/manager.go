// Package nodestate keeps a Redis copy of every node's status for cheap
// fleet-wide reads. The repository stays authoritative: writes go to it
// first and every read falls back to it when Redis is missing or failing.
package nodestate

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nodefleet/domain"
	"nodefleet/log"
)

type Manager struct {
	nodes domain.NodeRepository
	redis *RedisStore
	log   zerolog.Logger
}

// NewManager builds a manager. A nil redis store serves every read from the
// repository.
func NewManager(nodes domain.NodeRepository, redis *RedisStore) *Manager {
	return &Manager{nodes: nodes, redis: redis, log: log.WithComponent("nodestate")}
}

// GetNodeState reads node state from Redis, falls back to the repository.
func (m *Manager) GetNodeState(ctx context.Context, nodeID uuid.UUID) (*NodeState, error) {
	if m.redis != nil {
		st, err := m.redis.GetNodeState(ctx, nodeID)
		if err == nil && st != nil {
			return st, nil
		}
		if err != nil {
			m.log.Warn().Err(err).Str("node_id", nodeID.String()).Msg("redis read failed, using repository")
		}
	}
	n, err := m.nodes.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	return stateFromNode(n), nil
}

// GetAllNodeStates reads all node states, preferring Redis.
func (m *Manager) GetAllNodeStates(ctx context.Context) (map[uuid.UUID]*NodeState, error) {
	states := make(map[uuid.UUID]*NodeState)

	if m.redis != nil {
		ids, err := m.redis.GetAllNodeIDs(ctx)
		if err == nil && len(ids) > 0 {
			for _, id := range ids {
				st, err := m.GetNodeState(ctx, id)
				if err == nil {
					states[id] = st
				}
			}
			return states, nil
		}
		if err != nil {
			m.log.Warn().Err(err).Msg("redis list failed, using repository")
		}
	}

	nodes, err := m.nodes.ListNodes(ctx, nil)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		states[n.ID] = stateFromNode(n)
	}
	return states, nil
}

// SyncRedisFromSQL rebuilds all Redis state from the repository. Called on startup.
func (m *Manager) SyncRedisFromSQL(ctx context.Context) error {
	if m.redis == nil {
		return nil
	}
	if err := m.redis.FlushAll(ctx); err != nil {
		return err
	}
	nodes, err := m.nodes.ListNodes(ctx, nil)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if err := m.redis.SetNodeState(ctx, stateFromNode(n)); err != nil {
			m.log.Error().Err(err).Str("node_id", n.ID.String()).Msg("sync node state")
		}
	}
	m.log.Info().Int("nodes", len(nodes)).Msg("synced node states to redis")
	return nil
}

// RefreshNode reloads one node from the repository into Redis, keeping the
// cached last operation. A node the repository no longer has is dropped.
func (m *Manager) RefreshNode(ctx context.Context, nodeID uuid.UUID) {
	if m.redis == nil {
		return
	}
	n, err := m.nodes.GetNode(ctx, nodeID)
	if err != nil {
		m.Forget(ctx, nodeID)
		return
	}
	st := stateFromNode(n)
	if prev, err := m.redis.GetNodeState(ctx, nodeID); err == nil && prev != nil {
		st.LastOperation = prev.LastOperation
	}
	if err := m.redis.SetNodeState(ctx, st); err != nil {
		m.log.Error().Err(err).Str("node_id", nodeID.String()).Msg("refresh node state")
	}
}

// RecordOperation applies a committed operation to the cached snapshot.
func (m *Manager) RecordOperation(ctx context.Context, op *domain.Operation, status domain.NodeStatus) {
	if m.redis == nil {
		return
	}
	n, err := m.nodes.GetNode(ctx, op.NodeID)
	if err != nil {
		m.log.Warn().Err(err).Str("node_id", op.NodeID.String()).Msg("record operation: node lookup failed")
		return
	}
	st := stateFromNode(n)
	st.Status = status
	st.LastOperation = &OperationRef{ID: op.ID, Type: op.OperationType, CreatedAt: op.CreatedAt}
	if err := m.redis.SetNodeState(ctx, st); err != nil {
		m.log.Error().Err(err).Str("node_id", op.NodeID.String()).Msg("record operation")
	}
}

// Forget drops a node from Redis.
func (m *Manager) Forget(ctx context.Context, nodeID uuid.UUID) {
	if m.redis == nil {
		return
	}
	if err := m.redis.RemoveNode(ctx, nodeID); err != nil {
		m.log.Error().Err(err).Str("node_id", nodeID.String()).Msg("forget node")
	}
}
