// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package payout computes prize shares and fees in exact integer arithmetic.

	winner, push := payout.Winner(sums)       // strictly largest, ties push
	dist, fee, _ := payout.Split(prize, bps)  // protocol fee, zero by default
	share, _ := payout.Share(dist, weight, sums[winner])

Shares truncate. The sum of all truncation losses is never owed to a
claimant; the engine sweeps it to the treasury when the last winner claims.
*/
package payout
