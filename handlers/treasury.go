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

type TreasuryHandler struct {
	eng   *engine.Engine
	guard *auth.Guard
}

func NewTreasuryHandler(eng *engine.Engine) *TreasuryHandler {
	return &TreasuryHandler{eng: eng, guard: auth.NewGuard(auth.DefaultGuardCapacity)}
}

// Balance handles GET /treasury
func (h *TreasuryHandler) Balance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.eng.TreasuryBalance(r.Context())
	if err != nil {
		middleware.EngineError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.TreasuryResponse{Balance: balance.Dec()})
}

// Withdraw handles POST /treasury/withdraw
func (h *TreasuryHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := authenticate(w, r, h.guard, h.eng)
	if !ok {
		return
	}

	var req models.WithdrawTreasuryRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "amount must be a decimal integer")
		return
	}

	po, err := h.eng.WithdrawTreasury(r.Context(), caller, amount)
	if err != nil {
		middleware.EngineError(w, r, err)
		return
	}
	writePayout(w, po)
}

// RetryPayout handles POST /payouts/{id}/retry
func (h *TreasuryHandler) RetryPayout(w http.ResponseWriter, r *http.Request) {
	caller, ok := authenticate(w, r, h.guard, h.eng)
	if !ok {
		return
	}

	po, err := h.eng.RetryPayout(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		middleware.EngineError(w, r, err)
		return
	}
	writePayout(w, po)
}
