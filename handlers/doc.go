// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Astro Strike API.

# Handler Types

Each handler wraps the lifecycle engine:

  - PoolHandler: pool creation, entries, settlement, cancellation, claims, reads
  - SettlementHandler: coprocessor callbacks and the pending request list
  - TreasuryHandler: treasury balance, withdrawal, payout retries

	poolHandler := handlers.NewPoolHandler(eng)

# Pool Lifecycle

	POST /pools                      → CreatePool
	POST /pools/{id}/entries         → EnterPool (open only)
	POST /pools/{id}/settle          → Settle (after lock time)
	POST /settlements/{token}/callback → Callback (coprocessor)
	POST /pools/{id}/claim-prize     → ClaimPrize (winners)
	POST /pools/{id}/claim-refund    → ClaimRefund (push or cancelled)
	POST /pools/{id}/cancel          → Cancel (creator, no entries)

Mutating requests other than the callback require the signed caller
headers described in package auth. Each handler keeps an auth.Guard, so a
signed request is accepted once; a resend answers 401, and 503 when the
guard is full. The callback is authenticated by the oracle signature in its
body.

# Amounts and Bytes

Amounts are decimal strings in the smallest unit. Ciphertexts, proofs and
signatures are 0x-prefixed hex.

# Payouts

Claims answer 200 when the transfer went through and 202 when the payout
is recorded but still pending; POST /payouts/{id}/retry re-attempts it.
*/
package handlers
