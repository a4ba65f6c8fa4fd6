package www

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"nodefleet/domain"
)

type submitFunc func(ctx context.Context, nodeID uuid.UUID) (*domain.Operation, error)

// submitOperation reads a bare JSON UUID naming the node and runs submit.
func (h *Handlers) submitOperation(w http.ResponseWriter, r *http.Request, submit submitFunc) {
	var nodeID uuid.UUID
	if err := decodeBody(r, &nodeID); err != nil {
		h.badRequest(w, r, err)
		return
	}
	op, err := submit(r.Context(), nodeID)
	if err != nil {
		h.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	h.jsonStatus(w, http.StatusCreated, op)
}

func (h *Handlers) apiPowerOn(w http.ResponseWriter, r *http.Request) {
	h.submitOperation(w, r, h.engine.Operations().PowerOn)
}

func (h *Handlers) apiPowerOff(w http.ResponseWriter, r *http.Request) {
	h.submitOperation(w, r, h.engine.Operations().PowerOff)
}

func (h *Handlers) apiReboot(w http.ResponseWriter, r *http.Request) {
	h.submitOperation(w, r, h.engine.Operations().Reboot)
}
