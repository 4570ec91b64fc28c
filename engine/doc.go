// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package engine runs the lifecycle of confidential three-way prediction pools.

# Lifecycle

A pool is open until its lock time, then locked until settled or cancelled:

	open ──lock time──▶ locked ──Settle──▶ pending ──DeliverSettlement──▶ settled | push
	  │
	  └──Cancel (creator, no entries)──▶ cancelled

Locked and pending are never stored as a phase. Locked is derived from the
clock; pending is an outstanding settlement token on the pool.

# Settlement

Settle on an empty pool pushes at once. Otherwise it submits the three
encrypted aggregates to the coprocessor and returns the request:

	req, err := eng.Settle(ctx, "final-2026")
	// ... later, from the coprocessor:
	pool, err := eng.DeliverSettlement(ctx, req.Token, sums, signature)

The choice with the strictly largest total wins. Any tie pushes and every
entrant is refunded. A token is accepted once; replays and bad signatures
fail with ErrDecryptionCallback. There is no timeout on a pending request.

# Claims

ClaimPrize decrypts only the claimant's own weight and pays
floor(distributable * weight / winningTotal). ClaimRefund pays exactly the
entry fee. Both commit the claim before calling the Payer. When the last
winner claims, the truncation remainder moves to the treasury.

# Errors

Every failure wraps one of the exported sentinels; test with errors.Is.
Mutations run in a single transaction, so a failed call changes nothing.
*/
package engine
