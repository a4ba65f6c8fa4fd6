// Package memory implements the repository contracts over in-process maps.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"nodefleet/domain"
)

// Store holds clusters, nodes and operations behind one read-write lock so
// an operation and its node status change are applied together.
type Store struct {
	mu         sync.RWMutex
	clusters   map[uuid.UUID]*domain.Cluster
	nodes      map[uuid.UUID]*domain.Node
	operations map[uuid.UUID]*domain.Operation
	now        func() time.Time
}

func New() *Store {
	return &Store{
		clusters:   make(map[uuid.UUID]*domain.Cluster),
		nodes:      make(map[uuid.UUID]*domain.Node),
		operations: make(map[uuid.UUID]*domain.Operation),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// guard converts a panic inside a critical section into a LockError.
func guard(err *error) {
	if r := recover(); r != nil {
		*err = domain.LockError(fmt.Sprint(r))
	}
}

func (s *Store) stamp() *time.Time {
	t := s.now()
	return &t
}

func copyCluster(c *domain.Cluster) *domain.Cluster {
	out := *c
	return &out
}

func copyNode(n *domain.Node) *domain.Node {
	out := *n
	return &out
}

// Clusters

func (s *Store) ListClusters(ctx context.Context) (out []*domain.Cluster, err error) {
	defer guard(&err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out = make([]*domain.Cluster, 0, len(s.clusters))
	for _, c := range s.clusters {
		out = append(out, copyCluster(c))
	}
	sort.Slice(out, func(i, j int) bool { return createdBefore(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) GetCluster(ctx context.Context, id uuid.UUID) (out *domain.Cluster, err error) {
	defer guard(&err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clusters[id]
	if !ok {
		return nil, domain.InvalidID(fmt.Errorf("cluster %s not found", id))
	}
	return copyCluster(c), nil
}

func (s *Store) CreateCluster(ctx context.Context, c *domain.Cluster) (out *domain.Cluster, err error) {
	defer guard(&err)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clusters[c.ID]; ok {
		return nil, domain.AlreadyExists(nil)
	}
	stored := copyCluster(c)
	stored.CreatedAt = s.stamp()
	stored.UpdatedAt = nil
	s.clusters[c.ID] = stored
	return copyCluster(stored), nil
}

func (s *Store) UpdateCluster(ctx context.Context, c *domain.Cluster) (out *domain.Cluster, err error) {
	defer guard(&err)
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.clusters[c.ID]
	if !ok {
		return nil, domain.DoesNotExist(nil)
	}
	stored := copyCluster(c)
	stored.CreatedAt = old.CreatedAt
	stored.UpdatedAt = s.stamp()
	s.clusters[c.ID] = stored
	return copyCluster(stored), nil
}

// DeleteCluster also removes the cluster's nodes, as the relational store's
// foreign key does.
func (s *Store) DeleteCluster(ctx context.Context, id uuid.UUID) (_ uuid.UUID, err error) {
	defer guard(&err)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clusters[id]; !ok {
		return uuid.Nil, domain.DoesNotExist(nil)
	}
	delete(s.clusters, id)
	for nid, n := range s.nodes {
		if n.ClusterID == id {
			delete(s.nodes, nid)
		}
	}
	return id, nil
}

// Nodes

func (s *Store) ListNodes(ctx context.Context, filter *domain.NodeFilter) (out []*domain.Node, err error) {
	defer guard(&err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out = []*domain.Node{}
	for _, n := range s.nodes {
		if filter != nil && filter.Name != "" {
			c, ok := s.clusters[n.ClusterID]
			// Inner join: nodes without a cluster never match a filter.
			if !ok {
				continue
			}
			if !strings.Contains(n.Name, filter.Name) && !strings.Contains(c.Name, filter.Name) {
				continue
			}
		}
		out = append(out, copyNode(n))
	}
	sort.Slice(out, func(i, j int) bool { return createdBefore(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) GetNode(ctx context.Context, id uuid.UUID) (out *domain.Node, err error) {
	defer guard(&err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, domain.InvalidID(fmt.Errorf("node %s not found", id))
	}
	return copyNode(n), nil
}

func (s *Store) CreateNode(ctx context.Context, n *domain.Node) (out *domain.Node, err error) {
	defer guard(&err)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[n.ID]; ok {
		return nil, domain.AlreadyExists(nil)
	}
	if _, ok := s.clusters[n.ClusterID]; !ok {
		return nil, domain.AlreadyExists(fmt.Errorf("cluster %s not found", n.ClusterID))
	}
	stored := copyNode(n)
	stored.CreatedAt = s.stamp()
	stored.UpdatedAt = nil
	s.nodes[n.ID] = stored
	return copyNode(stored), nil
}

func (s *Store) UpdateNode(ctx context.Context, n *domain.Node) (out *domain.Node, err error) {
	defer guard(&err)
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.nodes[n.ID]
	if !ok {
		return nil, domain.DoesNotExist(nil)
	}
	if _, ok := s.clusters[n.ClusterID]; !ok {
		return nil, domain.DoesNotExist(fmt.Errorf("cluster %s not found", n.ClusterID))
	}
	stored := copyNode(n)
	stored.CreatedAt = old.CreatedAt
	stored.UpdatedAt = s.stamp()
	s.nodes[n.ID] = stored
	return copyNode(stored), nil
}

func (s *Store) DeleteNode(ctx context.Context, id uuid.UUID) (_ uuid.UUID, err error) {
	defer guard(&err)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[id]; !ok {
		return uuid.Nil, domain.DoesNotExist(nil)
	}
	delete(s.nodes, id)
	return id, nil
}

// Operations

// CreateOperation records op and sets the node's status under the write
// lock, so readers see both changes or neither.
func (s *Store) CreateOperation(ctx context.Context, op *domain.Operation) (out *domain.Operation, err error) {
	defer guard(&err)
	if !op.OperationType.Valid() {
		return nil, domain.Generic(fmt.Errorf("invalid operation type %q", op.OperationType))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.operations[op.ID]; ok {
		return nil, domain.AlreadyExists(nil)
	}
	n, ok := s.nodes[op.NodeID]
	if !ok {
		return nil, domain.DoesNotExist(fmt.Errorf("node %s not found", op.NodeID))
	}
	now := s.stamp()
	stored := *op
	stored.CreatedAt = now
	stored.UpdatedAt = nil
	s.operations[op.ID] = &stored

	updated := copyNode(n)
	updated.Status = op.OperationType.TargetStatus()
	updated.UpdatedAt = now
	s.nodes[n.ID] = updated

	result := stored
	return &result, nil
}

// ListOperations returns the operations recorded for a node, oldest first.
func (s *Store) ListOperations(ctx context.Context, nodeID uuid.UUID) (out []*domain.Operation, err error) {
	defer guard(&err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out = []*domain.Operation{}
	for _, op := range s.operations {
		if op.NodeID == nodeID {
			cp := *op
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return createdBefore(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

var (
	_ domain.ClusterRepository   = (*Store)(nil)
	_ domain.NodeRepository      = (*Store)(nil)
	_ domain.OperationRepository = (*Store)(nil)
)

// createdBefore orders by creation time, then id, matching the relational
// store's ORDER BY created_at, id.
func createdBefore(a, b *time.Time, aID, bID uuid.UUID) bool {
	if !a.Equal(*b) {
		return a.Before(*b)
	}
	return bytes.Compare(aID[:], bID[:]) < 0
}
