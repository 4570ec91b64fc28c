// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package registry is the durable store behind the lifecycle engine.

Every function takes a db.DBTX so it can run on the raw connection for
reads or inside the engine's transaction for writes:

	err := reg.InTx(ctx, func(q db.DBTX) error {
		p, err := registry.GetPool(ctx, q, poolID)
		if err != nil {
			return err
		}
		p.PlayerCount++
		return registry.UpdatePool(ctx, q, p)
	})

# Records

  - Pools and entries, unique by primary key
  - Settlement requests keyed by token, holding the revealed totals once fulfilled
  - A per-pool event log with gapless sequence numbers
  - The treasury balance and payout rows
  - Account balances credited by the ledger payer

Amounts are stored as decimal strings and parsed back into uint256 values.
Read-modify-write helpers (CreditTreasury, CreditAccount, AppendEvent) do not
lock; callers serialize them.
*/
package registry
