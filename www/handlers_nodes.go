package www

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"nodefleet/domain"
	"nodefleet/engine"
)

type nodeRequest struct {
	ID        *uuid.UUID         `json:"id"`
	Name      *string            `json:"name"`
	ClusterID *uuid.UUID         `json:"cluster_id"`
	Status    *domain.NodeStatus `json:"status"`
}

func (n nodeRequest) node() (*domain.Node, error) {
	switch {
	case n.ID == nil:
		return nil, errors.New("Json deserialize error: missing field `id`")
	case n.Name == nil:
		return nil, errors.New("Json deserialize error: missing field `name`")
	case n.ClusterID == nil:
		return nil, errors.New("Json deserialize error: missing field `cluster_id`")
	case n.Status == nil:
		return nil, errors.New("Json deserialize error: missing field `status`")
	}
	return &domain.Node{ID: *n.ID, Name: *n.Name, ClusterID: *n.ClusterID, Status: *n.Status}, nil
}

type nodeStatusPatch struct {
	ID     *uuid.UUID         `json:"id"`
	Status *domain.NodeStatus `json:"status"`
}

func (h *Handlers) emitNode(n *domain.Node, action string) {
	h.engine.Events.Emit(engine.Event{Type: engine.EventNodeUpdated, Payload: engine.NodeUpdatedEvent{
		NodeID: n.ID, NodeName: n.Name, Action: action,
	}})
}

func (h *Handlers) apiListNodes(w http.ResponseWriter, r *http.Request) {
	var filter *domain.NodeFilter
	if name := r.URL.Query().Get("name"); name != "" {
		filter = &domain.NodeFilter{Name: name}
	}
	nodes, err := h.engine.Nodes().ListNodes(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, nodes)
}

func (h *Handlers) apiGetNode(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	n, err := h.engine.Nodes().GetNode(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("node_id", id.String()).Msg("get node")
		textError(w, "Not found", http.StatusNotFound)
		return
	}
	h.jsonOK(w, n)
}

func (h *Handlers) apiCreateNode(w http.ResponseWriter, r *http.Request) {
	var req nodeRequest
	if err := decodeBody(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	in, err := req.node()
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	n, err := h.engine.Nodes().CreateNode(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	h.emitNode(n, engine.ActionCreated)
	h.jsonStatus(w, http.StatusCreated, n)
}

func (h *Handlers) apiUpdateNode(w http.ResponseWriter, r *http.Request) {
	var req nodeRequest
	if err := decodeBody(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	in, err := req.node()
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	n, err := h.engine.Nodes().UpdateNode(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, http.StatusNotFound)
		return
	}
	h.emitNode(n, engine.ActionUpdated)
	h.jsonOK(w, n)
}

// apiPatchNodeStatus sets a node's status directly, without recording an
// operation.
func (h *Handlers) apiPatchNodeStatus(w http.ResponseWriter, r *http.Request) {
	var req nodeStatusPatch
	if err := decodeBody(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	switch {
	case req.ID == nil:
		h.badRequest(w, r, errors.New("Json deserialize error: missing field `id`"))
		return
	case req.Status == nil:
		h.badRequest(w, r, errors.New("Json deserialize error: missing field `status`"))
		return
	}

	n, err := h.engine.Nodes().GetNode(r.Context(), *req.ID)
	if err != nil {
		h.fail(w, r, err, http.StatusNotFound)
		return
	}
	n.Status = *req.Status
	updated, err := h.engine.Nodes().UpdateNode(r.Context(), n)
	if err != nil {
		h.fail(w, r, err, http.StatusNotFound)
		return
	}
	h.emitNode(updated, engine.ActionUpdated)
	h.jsonOK(w, updated)
}

func (h *Handlers) apiDeleteNode(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	deleted, err := h.engine.Nodes().DeleteNode(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	h.emitNode(&domain.Node{ID: deleted}, engine.ActionDeleted)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(deleted.String()))
}
