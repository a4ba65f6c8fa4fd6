package www

import (
	"net/http"
)

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) handleFeatures(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, Features)
}
