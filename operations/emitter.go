package operations

import "nodefleet/domain"

// Emitter is the interface adapters must satisfy to bridge committed
// operations to the engine.
type Emitter interface {
	EmitOperationCreated(op *domain.Operation, status domain.NodeStatus)
}

type nopEmitter struct{}

func (nopEmitter) EmitOperationCreated(*domain.Operation, domain.NodeStatus) {}
