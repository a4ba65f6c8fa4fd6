package www

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nodefleet/domain"
	"nodefleet/engine"
	"nodefleet/log"
)

type SSEEvent struct {
	Event string
	Data  string
}

type EventHub struct {
	mu        sync.RWMutex
	clients   map[chan SSEEvent]struct{}
	broadcast chan SSEEvent
	stopChan  chan struct{}
	stopOnce  sync.Once
	log       zerolog.Logger
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients:   make(map[chan SSEEvent]struct{}),
		broadcast: make(chan SSEEvent, 256),
		stopChan:  make(chan struct{}),
		log:       log.WithComponent("sse"),
	}
}

func (h *EventHub) Start() {
	go h.run()
}

func (h *EventHub) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
}

func (h *EventHub) run() {
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case evt := <-h.broadcast:
			h.fanOut(evt)
		case <-keepalive.C:
			h.fanOut(SSEEvent{Event: "keepalive", Data: "ping"})
		}
	}
}

func (h *EventHub) fanOut(evt SSEEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- evt:
		default:
			// slow client, drop
		}
	}
}

// Broadcast queues an event for every client. data is marshalled to JSON.
func (h *EventHub) Broadcast(event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("marshal sse event")
		return
	}
	select {
	case h.broadcast <- SSEEvent{Event: event, Data: string(raw)}:
	default:
		h.log.Warn().Str("event", event).Msg("sse broadcast queue full, dropping")
	}
}

func (h *EventHub) AddClient() chan SSEEvent {
	ch := make(chan SSEEvent, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *EventHub) RemoveClient(ch chan SSEEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type operationMessage struct {
	Operation  *domain.Operation `json:"operation"`
	NodeStatus domain.NodeStatus `json:"node_status"`
}

type entityMessage struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name,omitempty"`
	Action string    `json:"action"`
}

// SetupEngineListeners wires engine events to SSE broadcasts.
func (h *EventHub) SetupEngineListeners(eng *engine.Engine) {
	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.OperationCreatedEvent)
		h.Broadcast("operation-created", operationMessage{Operation: ev.Operation, NodeStatus: ev.NodeStatus})
	}, engine.EventOperationCreated)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.NodeUpdatedEvent)
		h.Broadcast("node-update", entityMessage{ID: ev.NodeID, Name: ev.NodeName, Action: ev.Action})
	}, engine.EventNodeUpdated)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.ClusterUpdatedEvent)
		h.Broadcast("cluster-update", entityMessage{ID: ev.ClusterID, Name: ev.ClusterName, Action: ev.Action})
	}, engine.EventClusterUpdated)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast("system-status", map[string]string{"messaging": "connected"})
	}, engine.EventMessagingConnected)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast("system-status", map[string]string{"messaging": "disconnected"})
	}, engine.EventMessagingDisconnected)
}

// SSEHandler serves the SSE endpoint.
func (h *EventHub) SSEHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		textError(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.AddClient()
	defer h.RemoveClient(ch)

	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.stopChan:
			return
		case evt := <-ch:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Event, evt.Data); err != nil {
				h.log.Debug().Err(err).Msg("sse write failed")
				return
			}
			flusher.Flush()
		}
	}
}
