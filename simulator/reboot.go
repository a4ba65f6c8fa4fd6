// Package simulator fakes device behaviour that real hardware would report.
package simulator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nodefleet/domain"
	"nodefleet/log"
)

// PowerOner submits a power-on operation.
type PowerOner interface {
	PowerOn(ctx context.Context, nodeID uuid.UUID) (*domain.Operation, error)
}

// Reboot completes reboots: a fixed delay after a reboot operation it
// submits a power-on for the node, unless the node has left the rebooting
// state in the meantime. A newer reboot of the same node restarts the delay.
type Reboot struct {
	delay time.Duration
	nodes domain.NodeRepository
	power PowerOner
	log   zerolog.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]*pendingReboot
	stopped bool
	wg      sync.WaitGroup
}

type pendingReboot struct {
	opID  uuid.UUID
	timer *time.Timer
}

func NewReboot(delay time.Duration, nodes domain.NodeRepository, power PowerOner) *Reboot {
	return &Reboot{
		delay:   delay,
		nodes:   nodes,
		power:   power,
		log:     log.WithComponent("simulator"),
		pending: make(map[uuid.UUID]*pendingReboot),
	}
}

// Schedule arms a power-on for op's node when op is a reboot.
func (r *Reboot) Schedule(op *domain.Operation) {
	if op.OperationType != domain.OperationReboot {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	if prev, ok := r.pending[op.NodeID]; ok {
		prev.timer.Stop()
	}
	nodeID, opID := op.NodeID, op.ID
	r.pending[nodeID] = &pendingReboot{
		opID:  opID,
		timer: time.AfterFunc(r.delay, func() { r.fire(nodeID, opID) }),
	}
	r.log.Debug().Str("node_id", nodeID.String()).Dur("delay", r.delay).Msg("reboot scheduled")
}

func (r *Reboot) fire(nodeID, opID uuid.UUID) {
	r.mu.Lock()
	p, ok := r.pending[nodeID]
	if r.stopped || !ok || p.opID != opID {
		r.mu.Unlock()
		return
	}
	delete(r.pending, nodeID)
	r.wg.Add(1)
	r.mu.Unlock()
	defer r.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := r.nodes.GetNode(ctx, nodeID)
	if err != nil {
		r.log.Warn().Err(err).Str("node_id", nodeID.String()).Msg("rebooted node vanished")
		return
	}
	if n.Status != domain.NodeStatusRebooting {
		r.log.Debug().Str("node_id", nodeID.String()).Str("status", string(n.Status)).Msg("node left rebooting, skipping power-on")
		return
	}
	op, err := r.power.PowerOn(ctx, nodeID)
	if err != nil {
		r.log.Error().Err(err).Str("node_id", nodeID.String()).Msg("power-on after reboot failed")
		return
	}
	r.log.Info().Str("node_id", nodeID.String()).Str("operation_id", op.ID.String()).Msg("reboot complete")
}

// Pending reports how many reboots are waiting to complete.
func (r *Reboot) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Stop cancels every pending reboot and waits for in-flight power-ons.
func (r *Reboot) Stop() {
	r.mu.Lock()
	r.stopped = true
	for id, p := range r.pending {
		p.timer.Stop()
		delete(r.pending, id)
	}
	r.mu.Unlock()
	r.wg.Wait()
}
