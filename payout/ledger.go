// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package payout

import (
	"context"
	"log/slog"
	"sync"

	"github.com/danielhkuo/astro-strike/db"
	"github.com/danielhkuo/astro-strike/registry"
	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Ledger settles transfers by crediting internal account balances. It stands
// in for an on-chain transfer when the server runs without a chain client.
type Ledger struct {
	reg *registry.Registry
	mu  sync.Mutex
}

func NewLedger(reg *registry.Registry) *Ledger {
	return &Ledger{reg: reg}
}

func (l *Ledger) Transfer(ctx context.Context, to common.Address, amount *uint256.Int, memo string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.reg.InTx(ctx, func(q db.DBTX) error {
		return registry.CreditAccount(ctx, q, to, amount)
	})
	if err != nil {
		return err
	}

	slog.Info("transfer credited", "to", to.Hex(), "amount", humanize.BigComma(amount.ToBig()), "memo", memo)
	return nil
}

// Balance returns everything credited to account so far.
func (l *Ledger) Balance(ctx context.Context, account common.Address) (*uint256.Int, error) {
	return registry.AccountBalance(ctx, l.reg.DB(), account)
}
