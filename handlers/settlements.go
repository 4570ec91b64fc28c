// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/astro-strike/auth"
	"github.com/danielhkuo/astro-strike/engine"
	"github.com/danielhkuo/astro-strike/middleware"
	"github.com/danielhkuo/astro-strike/models"
)

// SettlementHandler receives coprocessor callbacks. Callbacks carry their
// own oracle signature, so they bypass caller authentication.
type SettlementHandler struct {
	eng *engine.Engine
}

func NewSettlementHandler(eng *engine.Engine) *SettlementHandler {
	return &SettlementHandler{eng: eng}
}

// Callback handles POST /settlements/{token}/callback
func (h *SettlementHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var req models.SettlementCallbackRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	sig, err := auth.DecodeHex(req.Signature)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "signature must be hex")
		return
	}

	p, err := h.eng.DeliverSettlement(r.Context(), r.PathValue("token"), req.Sums, sig)
	if err != nil {
		middleware.EngineError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.NewPoolView(p, h.eng.Now()))
}

// Pending handles GET /settlements/pending
func (h *SettlementHandler) Pending(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.eng.PendingSettlements(r.Context())
	if err != nil {
		middleware.EngineError(w, r, err)
		return
	}
	views := make([]models.PendingSettlementView, 0, len(reqs))
	for _, req := range reqs {
		views = append(views, models.PendingSettlementView{
			Token:       req.Token,
			PoolID:      req.PoolID,
			RequestedAt: req.RequestedAt,
		})
	}
	middleware.JSONResponse(w, http.StatusOK, views)
}
