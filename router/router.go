// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/astro-strike/engine"
	"github.com/danielhkuo/astro-strike/handlers"
	"github.com/danielhkuo/astro-strike/middleware"
)

func NewRouter(eng *engine.Engine) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	poolHandler := handlers.NewPoolHandler(eng)
	settlementHandler := handlers.NewSettlementHandler(eng)
	treasuryHandler := handlers.NewTreasuryHandler(eng)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Pool reads (public)
	mux.HandleFunc("GET /pools", middleware.WithLogging(poolHandler.ListPools))
	mux.HandleFunc("GET /pools/{id}", middleware.WithLogging(poolHandler.GetPool))
	mux.HandleFunc("GET /pools/{id}/pick-counts", middleware.WithLogging(poolHandler.GetPickCounts))
	mux.HandleFunc("GET /pools/{id}/player-count", middleware.WithLogging(poolHandler.GetPlayerCount))
	mux.HandleFunc("GET /pools/{id}/entries/{participant}", middleware.WithLogging(poolHandler.GetEntry))
	mux.HandleFunc("GET /pools/{id}/totals", middleware.WithLogging(poolHandler.GetTotals))
	mux.HandleFunc("GET /pools/{id}/events", middleware.WithLogging(poolHandler.GetEvents))

	// Pool lifecycle (signed caller)
	mux.HandleFunc("POST /pools", middleware.WithLogging(poolHandler.CreatePool))
	mux.HandleFunc("POST /pools/{id}/entries", middleware.WithLogging(poolHandler.EnterPool))
	mux.HandleFunc("POST /pools/{id}/settle", middleware.WithLogging(poolHandler.Settle))
	mux.HandleFunc("POST /pools/{id}/cancel", middleware.WithLogging(poolHandler.Cancel))
	mux.HandleFunc("POST /pools/{id}/claim-prize", middleware.WithLogging(poolHandler.ClaimPrize))
	mux.HandleFunc("POST /pools/{id}/claim-refund", middleware.WithLogging(poolHandler.ClaimRefund))

	// Settlement (oracle-signed callback)
	mux.HandleFunc("POST /settlements/{token}/callback", middleware.WithLogging(settlementHandler.Callback))
	mux.HandleFunc("GET /settlements/pending", middleware.WithLogging(settlementHandler.Pending))

	// Treasury and payouts
	mux.HandleFunc("GET /treasury", middleware.WithLogging(treasuryHandler.Balance))
	mux.HandleFunc("POST /treasury/withdraw", middleware.WithLogging(treasuryHandler.Withdraw))
	mux.HandleFunc("POST /payouts/{id}/retry", middleware.WithLogging(treasuryHandler.RetryPayout))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("astro-strike API v1"))
	})

	return mux
}
