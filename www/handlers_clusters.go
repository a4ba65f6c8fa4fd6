package www

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"nodefleet/domain"
	"nodefleet/engine"
)

type clusterRequest struct {
	ID   *uuid.UUID `json:"id"`
	Name *string    `json:"name"`
}

func (c clusterRequest) cluster() (*domain.Cluster, error) {
	switch {
	case c.ID == nil:
		return nil, errors.New("Json deserialize error: missing field `id`")
	case c.Name == nil:
		return nil, errors.New("Json deserialize error: missing field `name`")
	}
	return &domain.Cluster{ID: *c.ID, Name: *c.Name}, nil
}

func (h *Handlers) emitCluster(c *domain.Cluster, action string) {
	h.engine.Events.Emit(engine.Event{Type: engine.EventClusterUpdated, Payload: engine.ClusterUpdatedEvent{
		ClusterID: c.ID, ClusterName: c.Name, Action: action,
	}})
}

func (h *Handlers) apiListClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.engine.Clusters().ListClusters(r.Context())
	if err != nil {
		h.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, clusters)
}

func (h *Handlers) apiGetCluster(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	c, err := h.engine.Clusters().GetCluster(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("cluster_id", id.String()).Msg("get cluster")
		textError(w, "Not found", http.StatusNotFound)
		return
	}
	h.jsonOK(w, c)
}

func (h *Handlers) apiCreateCluster(w http.ResponseWriter, r *http.Request) {
	var req clusterRequest
	if err := decodeBody(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	in, err := req.cluster()
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	c, err := h.engine.Clusters().CreateCluster(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	h.emitCluster(c, engine.ActionCreated)
	h.jsonStatus(w, http.StatusCreated, c)
}

func (h *Handlers) apiUpdateCluster(w http.ResponseWriter, r *http.Request) {
	var req clusterRequest
	if err := decodeBody(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	in, err := req.cluster()
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	c, err := h.engine.Clusters().UpdateCluster(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, http.StatusNotFound)
		return
	}
	h.emitCluster(c, engine.ActionUpdated)
	h.jsonOK(w, c)
}

func (h *Handlers) apiDeleteCluster(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	deleted, err := h.engine.Clusters().DeleteCluster(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	h.emitCluster(&domain.Cluster{ID: deleted}, engine.ActionDeleted)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(deleted.String()))
}
