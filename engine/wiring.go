package engine

import (
	"context"
	"time"
)

func (e *Engine) wireEventHandlers() {
	// Committed operations: update the cache and hand reboots to the simulator
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(OperationCreatedEvent)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		e.nodeState.RecordOperation(ctx, ev.Operation, ev.NodeStatus)
		if e.simulator != nil {
			e.simulator.Schedule(ev.Operation)
		}
	}, EventOperationCreated)

	// Node CRUD: refresh or drop the cached snapshot
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(NodeUpdatedEvent)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if ev.Action == ActionDeleted {
			e.nodeState.Forget(ctx, ev.NodeID)
		} else {
			e.nodeState.RefreshNode(ctx, ev.NodeID)
		}
		e.log.Debug().Str("node_id", ev.NodeID.String()).Str("name", ev.NodeName).Str("action", ev.Action).Msg("node changed")
	}, EventNodeUpdated)

	// Deleting a cluster removes its nodes, so rebuild the cache
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ClusterUpdatedEvent)
		e.log.Debug().Str("cluster_id", ev.ClusterID.String()).Str("name", ev.ClusterName).Str("action", ev.Action).Msg("cluster changed")
		if ev.Action != ActionDeleted {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.nodeState.SyncRedisFromSQL(ctx); err != nil {
			e.log.Error().Err(err).Msg("resync node state after cluster delete")
		}
	}, EventClusterUpdated)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ConnectionEvent)
		if evt.Type == EventMessagingConnected {
			e.log.Info().Msg(ev.Detail)
		} else {
			e.log.Warn().Msg(ev.Detail)
		}
	}, EventMessagingConnected, EventMessagingDisconnected)
}
