// Package operations submits power operations against nodes. Each accepted
// operation is recorded together with the node status it implies.
package operations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nodefleet/domain"
	"nodefleet/log"
)

// NodeNotFoundError reports that the target node could not be loaded before
// anything was written.
type NodeNotFoundError struct {
	NodeID uuid.UUID
	Err    error
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("Node not found: `%s`", e.NodeID)
}

func (e *NodeNotFoundError) Unwrap() error { return e.Err }

// IsNodeNotFound reports whether err carries a NodeNotFoundError.
func IsNodeNotFound(err error) bool {
	var nf *NodeNotFoundError
	return errors.As(err, &nf)
}

type Service struct {
	nodes   domain.NodeRepository
	ops     domain.OperationRepository
	emitter Emitter
	log     zerolog.Logger
}

// NewService builds the service. A nil emitter disables notifications.
func NewService(nodes domain.NodeRepository, ops domain.OperationRepository, emitter Emitter) *Service {
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &Service{
		nodes:   nodes,
		ops:     ops,
		emitter: emitter,
		log:     log.WithComponent("operations"),
	}
}

func (s *Service) PowerOn(ctx context.Context, nodeID uuid.UUID) (*domain.Operation, error) {
	return s.submit(ctx, nodeID, domain.OperationPowerOn)
}

func (s *Service) PowerOff(ctx context.Context, nodeID uuid.UUID) (*domain.Operation, error) {
	return s.submit(ctx, nodeID, domain.OperationPowerOff)
}

// Reboot leaves the node in the rebooting state; nothing here powers it back
// on.
func (s *Service) Reboot(ctx context.Context, nodeID uuid.UUID) (*domain.Operation, error) {
	return s.submit(ctx, nodeID, domain.OperationReboot)
}

func (s *Service) submit(ctx context.Context, nodeID uuid.UUID, typ domain.OperationType) (*domain.Operation, error) {
	// A lookup failure of any kind means the write would be invalid.
	if _, err := s.nodes.GetNode(ctx, nodeID); err != nil {
		s.log.Error().Err(err).Str("node_id", nodeID.String()).Str("operation", string(typ)).Msg("node lookup failed")
		return nil, &NodeNotFoundError{NodeID: nodeID, Err: err}
	}

	op, err := s.ops.CreateOperation(ctx, domain.NewOperation(nodeID, typ))
	if err != nil {
		s.log.Error().Err(err).Str("node_id", nodeID.String()).Str("operation", string(typ)).Msg("create operation failed")
		return nil, err
	}

	status := typ.TargetStatus()
	s.log.Info().
		Str("operation_id", op.ID.String()).
		Str("node_id", nodeID.String()).
		Str("operation", string(typ)).
		Str("status", string(status)).
		Msg("operation recorded")
	s.emitter.EmitOperationCreated(op, status)
	return op, nil
}
