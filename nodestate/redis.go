package nodestate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func stateKey(nodeID uuid.UUID) string {
	return fmt.Sprintf("nodefleet:node:%s:state", nodeID)
}

const allNodesKey = "nodefleet:nodes"

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) SetNodeState(ctx context.Context, st *NodeState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, stateKey(st.NodeID), data, 0)
	pipe.SAdd(ctx, allNodesKey, st.NodeID.String())
	_, err = pipe.Exec(ctx)
	return err
}

// GetNodeState returns nil, nil when the node is not cached.
func (r *RedisStore) GetNodeState(ctx context.Context, nodeID uuid.UUID) (*NodeState, error) {
	data, err := r.client.Get(ctx, stateKey(nodeID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var st NodeState
	return &st, json.Unmarshal(data, &st)
}

func (r *RedisStore) GetAllNodeIDs(ctx context.Context) ([]uuid.UUID, error) {
	members, err := r.client.SMembers(ctx, allNodesKey).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *RedisStore) RemoveNode(ctx context.Context, nodeID uuid.UUID) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, stateKey(nodeID))
	pipe.SRem(ctx, allNodesKey, nodeID.String())
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) FlushAll(ctx context.Context) error {
	ids, err := r.GetAllNodeIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := r.RemoveNode(ctx, id); err != nil {
			return err
		}
	}
	return r.client.Del(ctx, allNodesKey).Err()
}
