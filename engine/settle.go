// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielhkuo/astro-strike/db"
	"github.com/danielhkuo/astro-strike/models"
	"github.com/danielhkuo/astro-strike/oracle"
	"github.com/danielhkuo/astro-strike/payout"
	"github.com/danielhkuo/astro-strike/registry"
	"github.com/holiman/uint256"
)

// Settle resolves a locked pool. An empty pool pushes immediately and Settle
// returns nil. Otherwise the three aggregates are sent for decryption and
// the outstanding request is returned; DeliverSettlement completes it.
//
// The request is committed before it is submitted, and the submission runs
// outside any transaction. A failed submission withdraws the request.
func (e *Engine) Settle(ctx context.Context, poolID string) (*models.SettlementRequest, error) {
	if err := e.checkPoolID(ctx, poolID); err != nil {
		return nil, err
	}
	unlock := e.lock(poolID)
	defer unlock()

	var (
		req     *models.SettlementRequest
		dreq    oracle.DecryptionRequest
		settled *models.Pool
	)
	err := e.reg.InTx(ctx, func(q db.DBTX) error {
		p, err := loadPool(ctx, q, poolID)
		if err != nil {
			return err
		}

		now := e.Now()
		switch {
		case p.Cancelled || p.Settled:
			return fail(ErrState, "pool %q is %s", poolID, p.Phase(now))
		case p.PendingToken != "":
			return fail(ErrDecryptionPending, "pool %q awaits request %s", poolID, p.PendingToken)
		case now.Before(p.LockTime):
			return fail(ErrState, "pool %q is still open", poolID)
		}

		if p.PlayerCount == 0 {
			p.Settled = true
			p.PushAll = true
			if err := registry.UpdatePool(ctx, q, p); err != nil {
				return err
			}
			settled = p
			return e.emit(ctx, q, models.Event{
				Kind:   models.EventPoolSettled,
				PoolID: poolID,
				Push:   true,
			})
		}

		cts, err := e.store.Aggregates(ctx, q, poolID)
		if err != nil {
			return err
		}
		dreq = e.oracle.NewRequest(poolID, cts)
		req = &models.SettlementRequest{
			Token:       dreq.Token,
			PoolID:      poolID,
			RequestedAt: now,
		}
		if err := registry.InsertRequest(ctx, q, *req); err != nil {
			return err
		}
		p.PendingToken = req.Token
		return registry.UpdatePool(ctx, q, p)
	})
	if err != nil {
		return nil, err
	}

	if settled != nil {
		logPool("pool settled", settled, "push", true, "players", 0)
		return nil, nil
	}

	// A callback for this token waits on the pool lock held here, so the
	// pending event is always written before the settlement.
	if err := e.oracle.Submit(ctx, dreq); err != nil {
		if werr := e.withdrawRequest(ctx, poolID, req.Token); werr != nil {
			slog.Error("failed to withdraw settlement request", "pool_id", poolID, "token", req.Token, "error", werr)
		}
		return nil, fmt.Errorf("failed to submit settlement request: %w", err)
	}
	err = e.reg.InTx(ctx, func(q db.DBTX) error {
		return e.emit(ctx, q, models.Event{
			Kind:   models.EventSettlementPending,
			PoolID: poolID,
		})
	})
	if err != nil {
		slog.Error("failed to record settlement request event", "pool_id", poolID, "token", req.Token, "error", err)
	}

	slog.Info("settlement requested", "pool_id", poolID, "token", req.Token)
	return req, nil
}

// withdrawRequest undoes a committed request the coprocessor never received.
func (e *Engine) withdrawRequest(ctx context.Context, poolID, token string) error {
	return e.reg.InTx(ctx, func(q db.DBTX) error {
		p, err := loadPool(ctx, q, poolID)
		if err != nil {
			return err
		}
		if err := registry.DeleteRequest(ctx, q, token); err != nil {
			return err
		}
		p.PendingToken = ""
		return registry.UpdatePool(ctx, q, p)
	})
}

func (e *Engine) poolForToken(ctx context.Context, token string) (string, error) {
	req, err := registry.GetRequest(ctx, e.reg.DB(), token)
	if errors.Is(err, registry.ErrRequestNotFound) {
		return "", fail(ErrDecryptionCallback, "no outstanding request %s", token)
	}
	if err != nil {
		return "", err
	}
	return req.PoolID, nil
}

// DeliverSettlement finalizes the pool awaiting token with the decrypted
// aggregate sums. Unknown, already answered, or unauthenticated callbacks
// are rejected with ErrDecryptionCallback and change nothing.
func (e *Engine) DeliverSettlement(ctx context.Context, token string, sums [models.NumChoices]uint64, signature []byte) (*models.Pool, error) {
	poolID, err := e.poolForToken(ctx, token)
	if err != nil {
		return nil, err
	}

	unlock := e.lock(poolID)
	defer unlock()

	var (
		settled *models.Pool
		fee     *uint256.Int
	)
	tl := e.treasury()
	err = e.reg.InTx(ctx, func(q db.DBTX) error {
		req, err := registry.GetRequest(ctx, q, token)
		if errors.Is(err, registry.ErrRequestNotFound) {
			return fail(ErrDecryptionCallback, "no outstanding request %s", token)
		}
		if err != nil {
			return err
		}
		p, err := loadPool(ctx, q, req.PoolID)
		if err != nil {
			return err
		}
		if p.PendingToken != token || p.Settled || p.Cancelled {
			return fail(ErrDecryptionCallback, "pool %q is not awaiting request %s", p.ID, token)
		}

		cb := oracle.Callback{Token: token, Sums: sums, Signature: signature}
		if err := e.oracle.VerifySettlement(req, cb); err != nil {
			return fail(ErrDecryptionCallback, "%v", err)
		}
		if err := checkSums(p, sums); err != nil {
			return err
		}

		winner, push := payout.Winner(sums)
		p.Settled = true
		p.PendingToken = ""
		if push {
			p.PushAll = true
		} else {
			distributable, f, err := payout.Split(p.PrizePool, p.FeeBps)
			if err != nil {
				return err
			}
			if !f.IsZero() {
				tl.acquire()
				if err := registry.CreditTreasury(ctx, q, f); err != nil {
					return err
				}
				fee = f
			}
			p.PrizePool = distributable.Clone()
			p.Distributable = distributable
			p.WinningChoice = &winner
		}

		if err := registry.FulfilRequest(ctx, q, token, sums); err != nil {
			return err
		}
		if err := registry.UpdatePool(ctx, q, p); err != nil {
			return err
		}
		settled = p

		ev := models.Event{Kind: models.EventPoolSettled, PoolID: p.ID, Push: push}
		if !push {
			ev.Choice = &winner
			ev.Amount = p.Distributable
		}
		return e.emit(ctx, q, ev)
	})
	tl.release()
	if err != nil {
		return nil, err
	}

	if settled.PushAll {
		logPool("pool settled", settled, "push", true, "players", settled.PlayerCount)
	} else {
		args := []any{"winner", settled.WinningChoice.String(), "winners", settled.WinnerCount(),
			"distributable", amount(settled.Distributable)}
		if fee != nil {
			args = append(args, "fee", amount(fee))
		}
		logPool("pool settled", settled, args...)
	}
	return settled, nil
}

// Deliver adapts DeliverSettlement to the coprocessor callback channel.
func (e *Engine) Deliver(ctx context.Context, cb oracle.Callback) error {
	_, err := e.DeliverSettlement(ctx, cb.Token, cb.Sums, cb.Signature)
	return err
}

// checkSums rejects totals no set of in-range weights could produce.
func checkSums(p *models.Pool, sums [models.NumChoices]uint64) error {
	for c, sum := range sums {
		n := p.PickCounts[c]
		if sum < n*models.MinWeight || sum > n*models.MaxWeight {
			return fail(ErrDecryptionCallback, "total for %s inconsistent with %d entries",
				models.Choice(c), n)
		}
	}
	return nil
}

// RevealedTotals returns the decrypted aggregate sums of a settled pool.
func (e *Engine) RevealedTotals(ctx context.Context, poolID string) ([models.NumChoices]uint64, error) {
	q := e.reg.DB()
	p, err := loadPool(ctx, q, poolID)
	if err != nil {
		return [models.NumChoices]uint64{}, err
	}
	if !p.Settled {
		return [models.NumChoices]uint64{}, fail(ErrState, "pool %q is not settled", poolID)
	}
	if p.PlayerCount == 0 {
		return [models.NumChoices]uint64{}, nil
	}
	return registry.Totals(ctx, q, poolID)
}

// PendingSettlements lists requests still awaiting the coprocessor. There is
// no timeout: a request that is never answered keeps its pool locked.
func (e *Engine) PendingSettlements(ctx context.Context) ([]models.SettlementRequest, error) {
	return registry.PendingRequests(ctx, e.reg.DB())
}
