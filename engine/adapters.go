package engine

import "nodefleet/domain"

// operationsEmitter bridges the operations package's emitter interface to the EventBus.
type operationsEmitter struct {
	bus *EventBus
}

func (e *operationsEmitter) EmitOperationCreated(op *domain.Operation, status domain.NodeStatus) {
	e.bus.Emit(Event{Type: EventOperationCreated, Payload: OperationCreatedEvent{
		Operation:  op,
		NodeStatus: status,
	}})
}
