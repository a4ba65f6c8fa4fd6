package www

import (
	"net/http"
)

func (h *Handlers) apiNodeStates(w http.ResponseWriter, r *http.Request) {
	states, err := h.engine.NodeState().GetAllNodeStates(r.Context())
	if err != nil {
		h.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, states)
}

func (h *Handlers) apiNodeState(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	st, err := h.engine.NodeState().GetNodeState(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("node_id", id.String()).Msg("get node state")
		textError(w, "Not found", http.StatusNotFound)
		return
	}
	h.jsonOK(w, st)
}
