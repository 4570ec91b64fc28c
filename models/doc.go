// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines domain, event, request, and response types.

# Domain Types

  - Pool: one three-way pool; fee, lock time, counters, settlement outcome
  - Entry: one participant's entry in a pool (choice, claimed flag)
  - SettlementRequest: an outstanding decryption of a pool's aggregates
  - Payout: a prize, refund, or treasury transfer owed to an account
  - Event: an emitted lifecycle event

Amounts are *uint256.Int; accounts are common.Address.

# Choices

	ChoiceNova  = 0
	ChoicePulse = 1
	ChoiceFlux  = 2

# Phases

Phase is derived, never stored:

	PhaseOpen      = "open"       // now < lock time
	PhaseLocked    = "locked"     // now >= lock time, not settled
	PhaseSettled   = "settled"    // settled with a winner
	PhasePush      = "push"       // settled, everyone refunded
	PhaseCancelled = "cancelled"

# Response Types

PoolView, EntryView and EventView render domain types as JSON with decimal
string amounts. Ciphertexts never appear in any response.
*/
package models
