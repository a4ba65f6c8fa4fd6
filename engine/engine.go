package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nodefleet/config"
	"nodefleet/domain"
	"nodefleet/log"
	"nodefleet/messaging"
	"nodefleet/nodestate"
	"nodefleet/operations"
	"nodefleet/simulator"
	"nodefleet/store"
)

// MessagingClient is the broker connection the outbox drains to. The health
// loop reconnects it while it is down.
type MessagingClient interface {
	messaging.Publisher
	Connect(ctx context.Context) error
	IsConnected() bool
}

type Config struct {
	AppConfig *config.Config
	// DB backs all three repositories unless they are set explicitly. It is
	// also the outbox the drainer reads.
	DB         *store.DB
	Clusters   domain.ClusterRepository
	Nodes      domain.NodeRepository
	Operations domain.OperationRepository
	NodeState  *nodestate.Manager
	MsgClient  MessagingClient
}

type Engine struct {
	cfg       *config.Config
	db        *store.DB
	clusters  domain.ClusterRepository
	nodes     domain.NodeRepository
	ops       domain.OperationRepository
	service   *operations.Service
	nodeState *nodestate.Manager
	msgClient MessagingClient
	drainer   *messaging.OutboxDrainer
	simulator *simulator.Reboot
	Events    *EventBus
	log       zerolog.Logger

	stopChan     chan struct{}
	stopOnce     sync.Once
	msgConnected bool
}

func New(c Config) *Engine {
	e := &Engine{
		cfg:       c.AppConfig,
		db:        c.DB,
		clusters:  c.Clusters,
		nodes:     c.Nodes,
		ops:       c.Operations,
		nodeState: c.NodeState,
		msgClient: c.MsgClient,
		log:       log.WithComponent("engine"),
		stopChan:  make(chan struct{}),
	}
	if e.cfg == nil {
		e.cfg = config.Defaults()
	}
	if c.DB != nil {
		if e.clusters == nil {
			e.clusters = c.DB
		}
		if e.nodes == nil {
			e.nodes = c.DB
		}
		if e.ops == nil {
			e.ops = c.DB
		}
	}
	if e.nodeState == nil {
		e.nodeState = nodestate.NewManager(e.nodes, nil)
	}
	e.Events = NewEventBus(e.log)
	e.service = operations.NewService(e.nodes, e.ops, &operationsEmitter{bus: e.Events})
	if d := e.cfg.Simulator.RebootDelay; d > 0 {
		e.simulator = simulator.NewReboot(d, e.nodes, e.service)
	}
	return e
}

func (e *Engine) Start(ctx context.Context) {
	e.wireEventHandlers()

	if err := e.nodeState.SyncRedisFromSQL(ctx); err != nil {
		e.log.Warn().Err(err).Msg("node state sync failed, serving from repository")
	}

	if e.msgClient != nil && e.db != nil {
		e.drainer = messaging.NewOutboxDrainer(e.db, e.msgClient, e.cfg.Messaging.OutboxDrainInterval)
		e.drainer.Start()
		e.checkConnectionStatus()
		go e.connectionHealthLoop()
	}

	e.log.Info().
		Bool("messaging", e.drainer != nil).
		Bool("reboot_simulator", e.simulator != nil).
		Msg("engine started")
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
	if e.simulator != nil {
		e.simulator.Stop()
	}
	if e.drainer != nil {
		e.drainer.Stop()
	}
	e.log.Info().Msg("engine stopped")
}

// Accessors
func (e *Engine) AppConfig() *config.Config          { return e.cfg }
func (e *Engine) Clusters() domain.ClusterRepository { return e.clusters }
func (e *Engine) Nodes() domain.NodeRepository       { return e.nodes }
func (e *Engine) Operations() *operations.Service    { return e.service }
func (e *Engine) NodeState() *nodestate.Manager      { return e.nodeState }
func (e *Engine) Simulator() *simulator.Reboot       { return e.simulator }

func (e *Engine) checkConnectionStatus() {
	if !e.msgClient.IsConnected() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := e.msgClient.Connect(ctx); err != nil {
			e.log.Debug().Err(err).Msg("messaging reconnect failed")
		}
		cancel()
	}
	if e.msgClient.IsConnected() {
		if !e.msgConnected {
			e.msgConnected = true
			e.Events.Emit(Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Detail: "messaging connected"}})
		}
	} else {
		if e.msgConnected {
			e.msgConnected = false
			e.Events.Emit(Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: "messaging disconnected"}})
		}
	}
}

func (e *Engine) connectionHealthLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.checkConnectionStatus()
		}
	}
}
