// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/danielhkuo/astro-strike/auth"
	"github.com/danielhkuo/astro-strike/ciphertext"
	"github.com/danielhkuo/astro-strike/engine"
	"github.com/danielhkuo/astro-strike/middleware"
	"github.com/danielhkuo/astro-strike/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type PoolHandler struct {
	eng   *engine.Engine
	guard *auth.Guard
}

func NewPoolHandler(eng *engine.Engine) *PoolHandler {
	return &PoolHandler{eng: eng, guard: auth.NewGuard(auth.DefaultGuardCapacity)}
}

// authenticate verifies the signed caller headers and rejects replays,
// writing 401 on failure.
func authenticate(w http.ResponseWriter, r *http.Request, guard *auth.Guard, eng *engine.Engine) (common.Address, bool) {
	caller, err := guard.Authenticate(r, eng.Now())
	switch {
	case errors.Is(err, auth.ErrBusy):
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, err.Error())
		return common.Address{}, false
	case err != nil:
		middleware.ErrorResponse(w, http.StatusUnauthorized, err.Error())
		return common.Address{}, false
	}
	return caller, true
}

// maxDurationSeconds is the largest duration_seconds a time.Duration holds.
const maxDurationSeconds = uint64(math.MaxInt64 / int64(time.Second))

func parseAmount(s string) (*uint256.Int, bool) {
	if s == "" {
		return nil, false
	}
	v, err := uint256.FromDecimal(s)
	return v, err == nil
}

// ListPools handles GET /pools
func (h *PoolHandler) ListPools(w http.ResponseWriter, r *http.Request) {
	ids, err := h.eng.ListPools(r.Context())
	if err != nil {
		middleware.EngineError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.PoolListResponse{Pools: ids})
}

// CreatePool handles POST /pools
func (h *PoolHandler) CreatePool(w http.ResponseWriter, r *http.Request) {
	caller, ok := authenticate(w, r, h.guard, h.eng)
	if !ok {
		return
	}

	var req models.CreatePoolRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	fee, ok := parseAmount(req.EntryFee)
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "entry_fee must be a decimal integer")
		return
	}

	if req.DurationSeconds > maxDurationSeconds {
		middleware.ErrorResponse(w, http.StatusBadRequest, "duration_seconds out of range")
		return
	}
	duration := time.Duration(req.DurationSeconds) * time.Second
	p, err := h.eng.CreatePool(r.Context(), caller, req.PoolID, fee, duration, req.FeeBps)
	if err != nil {
		middleware.EngineError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.CreatePoolResponse{
		PoolID:   p.ID,
		LockTime: p.LockTime,
	})
}

// GetPool handles GET /pools/{id}
func (h *PoolHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	p, err := h.eng.GetPool(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.EngineError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.NewPoolView(p, h.eng.Now()))
}

// GetPickCounts handles GET /pools/{id}/pick-counts
func (h *PoolHandler) GetPickCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.eng.GetPickCounts(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.EngineError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.PickCountsResponse{PickCounts: counts})
}

// GetPlayerCount handles GET /pools/{id}/player-count
func (h *PoolHandler) GetPlayerCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.eng.GetPlayerCount(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.EngineError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.PlayerCountResponse{PlayerCount: n})
}

// GetEntry handles GET /pools/{id}/entries/{participant}
func (h *PoolHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	participant := r.PathValue("participant")
	if !common.IsHexAddress(participant) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "participant must be an address")
		return
	}

	entry, err := h.eng.GetEntry(r.Context(), r.PathValue("id"), common.HexToAddress(participant))
	if err != nil {
		middleware.EngineError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.NewEntryView(entry))
}

// GetTotals handles GET /pools/{id}/totals
func (h *PoolHandler) GetTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.eng.RevealedTotals(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.EngineError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.TotalsResponse{Totals: totals})
}

// GetEvents handles GET /pools/{id}/events
func (h *PoolHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.eng.Events(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.EngineError(w, r, err)
		return
	}
	views := make([]models.EventView, 0, len(events))
	for i := range events {
		views = append(views, models.NewEventView(&events[i]))
	}
	middleware.JSONResponse(w, http.StatusOK, views)
}

// EnterPool handles POST /pools/{id}/entries
func (h *PoolHandler) EnterPool(w http.ResponseWriter, r *http.Request) {
	caller, ok := authenticate(w, r, h.guard, h.eng)
	if !ok {
		return
	}

	var req models.EnterPoolRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ct, err := auth.DecodeHex(req.Ciphertext)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "ciphertext must be hex")
		return
	}
	prf, err := auth.DecodeHex(req.Proof)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "proof must be hex")
		return
	}
	payment, ok := parseAmount(req.Payment)
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "payment must be a decimal integer")
		return
	}

	entry, err := h.eng.EnterPool(r.Context(), caller, r.PathValue("id"), models.Choice(req.Choice),
		ciphertext.Ciphertext(ct), prf, payment)
	if err != nil {
		middleware.EngineError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, models.NewEntryView(entry))
}

// Settle handles POST /pools/{id}/settle
func (h *PoolHandler) Settle(w http.ResponseWriter, r *http.Request) {
	if _, ok := authenticate(w, r, h.guard, h.eng); !ok {
		return
	}

	poolID := r.PathValue("id")
	req, err := h.eng.Settle(r.Context(), poolID)
	if err != nil {
		middleware.EngineError(w, r, err)
		return
	}

	if req == nil {
		middleware.JSONResponse(w, http.StatusOK, models.SettleResponse{Phase: models.PhasePush})
		return
	}
	middleware.JSONResponse(w, http.StatusAccepted, models.SettleResponse{
		Phase:        models.PhaseLocked,
		RequestToken: req.Token,
	})
}

// Cancel handles POST /pools/{id}/cancel
func (h *PoolHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, ok := authenticate(w, r, h.guard, h.eng)
	if !ok {
		return
	}

	p, err := h.eng.Cancel(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		middleware.EngineError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.NewPoolView(p, h.eng.Now()))
}

// ClaimPrize handles POST /pools/{id}/claim-prize
func (h *PoolHandler) ClaimPrize(w http.ResponseWriter, r *http.Request) {
	caller, ok := authenticate(w, r, h.guard, h.eng)
	if !ok {
		return
	}

	po, err := h.eng.ClaimPrize(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		middleware.EngineError(w, r, err)
		return
	}
	writePayout(w, po)
}

// ClaimRefund handles POST /pools/{id}/claim-refund
func (h *PoolHandler) ClaimRefund(w http.ResponseWriter, r *http.Request) {
	caller, ok := authenticate(w, r, h.guard, h.eng)
	if !ok {
		return
	}

	po, err := h.eng.ClaimRefund(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		middleware.EngineError(w, r, err)
		return
	}
	writePayout(w, po)
}

// writePayout answers 200 for a paid payout and 202 for one left pending.
func writePayout(w http.ResponseWriter, po *models.Payout) {
	status := http.StatusOK
	if po.Status != models.PayoutPaid {
		slog.Warn("payout pending", "payout_id", po.ID, "recipient", po.Recipient.Hex())
		status = http.StatusAccepted
	}
	middleware.JSONResponse(w, status, models.PayoutResponse{
		PayoutID: po.ID,
		Amount:   po.Amount.Dec(),
		Status:   po.Status,
	})
}
