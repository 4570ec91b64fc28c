// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Astro Strike API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(eng)

# Endpoints

Health and root:

	GET /health
	GET /

Pool reads (public):

	GET /pools
	GET /pools/{id}
	GET /pools/{id}/pick-counts
	GET /pools/{id}/player-count
	GET /pools/{id}/entries/{participant}
	GET /pools/{id}/totals          (settled pools only)
	GET /pools/{id}/events

Pool lifecycle (signed caller):

	POST /pools
	POST /pools/{id}/entries
	POST /pools/{id}/settle
	POST /pools/{id}/cancel
	POST /pools/{id}/claim-prize
	POST /pools/{id}/claim-refund

Settlement:

	POST /settlements/{token}/callback  (oracle signature in body)
	GET  /settlements/pending

Treasury and payouts:

	GET  /treasury
	POST /treasury/withdraw    (treasury owner)
	POST /payouts/{id}/retry   (recipient or treasury owner)

All routes except /health and / are wrapped with middleware.WithLogging.
*/
package router
