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
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// ClaimPrize pays a winner floor(distributable * weight / winningTotal).
// Only the claimant's own weight is decrypted, with no transaction open.
// The claim is committed before any funds move; a failed transfer leaves
// the payout pending.
func (e *Engine) ClaimPrize(ctx context.Context, participant common.Address, poolID string) (*models.Payout, error) {
	if err := e.checkPoolID(ctx, poolID); err != nil {
		return nil, err
	}
	unlock := e.lock(poolID)
	defer unlock()

	q := e.reg.DB()
	p, err := loadPool(ctx, q, poolID)
	if err != nil {
		return nil, err
	}
	if err := checkPrizeClaim(ctx, q, p, participant); err != nil {
		return nil, err
	}
	ct, err := e.store.EntryWeight(ctx, q, poolID, participant)
	if err != nil {
		return nil, err
	}
	weight, err := e.oracle.DecryptWeight(ctx, poolID, participant, ct)
	if errors.Is(err, oracle.ErrBadSignature) || errors.Is(err, oracle.ErrWeightRange) {
		return nil, fail(ErrDecryptionCallback, "%v", err)
	}
	if err != nil {
		return nil, err
	}

	var (
		po    *models.Payout
		swept *uint256.Int
	)
	tl := e.treasury()
	err = e.reg.InTx(ctx, func(q db.DBTX) error {
		p, err := loadPool(ctx, q, poolID)
		if err != nil {
			return err
		}
		if err := checkPrizeClaim(ctx, q, p, participant); err != nil {
			return err
		}

		totals, err := registry.Totals(ctx, q, poolID)
		if err != nil {
			return err
		}
		share, err := payout.Share(p.Distributable, weight, totals[*p.WinningChoice])
		if err != nil {
			return fmt.Errorf("failed to compute share: %w", err)
		}
		if p.PrizePool, err = payout.Remainder(p.PrizePool, share); err != nil {
			return fmt.Errorf("share exceeds prize pool: %w", err)
		}
		p.ClaimedWinners++

		// The last winner leaves only truncation dust behind.
		if p.ClaimedWinners == p.WinnerCount() && !p.PrizePool.IsZero() {
			tl.acquire()
			if err := registry.CreditTreasury(ctx, q, p.PrizePool); err != nil {
				return err
			}
			swept = p.PrizePool
			p.PrizePool = new(uint256.Int)
		}

		if err := registry.MarkClaimed(ctx, q, poolID, participant); err != nil {
			return err
		}
		if err := e.store.DropEntryWeight(ctx, q, poolID, participant); err != nil {
			return err
		}
		if err := registry.UpdatePool(ctx, q, p); err != nil {
			return err
		}

		po = e.newPayout(poolID, participant, models.PayoutPrize, share)
		if err := registry.InsertPayout(ctx, q, po); err != nil {
			return err
		}
		return e.emit(ctx, q, models.Event{
			Kind:    models.EventPrizeClaimed,
			PoolID:  poolID,
			Account: participant,
			Amount:  share,
		})
	})
	tl.release()
	if err != nil {
		return nil, err
	}

	slog.Info("prize claimed", "pool_id", poolID, "participant", participant.Hex(), "amount", amount(po.Amount))
	if swept != nil {
		slog.Info("remainder swept to treasury", "pool_id", poolID, "amount", amount(swept))
	}
	e.pay(ctx, po)
	return po, nil
}

// checkPrizeClaim requires a settled pool with a winner and an unclaimed
// winning entry for participant.
func checkPrizeClaim(ctx context.Context, q db.DBTX, p *models.Pool, participant common.Address) error {
	if !p.Settled || p.PushAll || p.Cancelled || p.WinningChoice == nil {
		return fail(ErrState, "pool %q has no winner to pay", p.ID)
	}
	entry, err := loadEntry(ctx, q, p.ID, participant)
	if err != nil {
		return err
	}
	if entry.Claimed {
		return fail(ErrAlreadyClaimed, "%s in pool %q", participant.Hex(), p.ID)
	}
	if entry.Choice != *p.WinningChoice {
		return fail(ErrNotWinner, "%s picked %s", participant.Hex(), entry.Choice)
	}
	return nil
}

// ClaimRefund returns exactly the entry fee from a cancelled or pushed pool.
func (e *Engine) ClaimRefund(ctx context.Context, participant common.Address, poolID string) (*models.Payout, error) {
	if err := e.checkPoolID(ctx, poolID); err != nil {
		return nil, err
	}
	unlock := e.lock(poolID)
	defer unlock()

	var po *models.Payout
	err := e.reg.InTx(ctx, func(q db.DBTX) error {
		p, err := loadPool(ctx, q, poolID)
		if err != nil {
			return err
		}
		if !p.Cancelled && !p.PushAll {
			return fail(ErrState, "pool %q is %s", poolID, p.Phase(e.Now()))
		}
		entry, err := loadEntry(ctx, q, poolID, participant)
		if err != nil {
			return err
		}
		if entry.Claimed {
			return fail(ErrAlreadyClaimed, "%s in pool %q", participant.Hex(), poolID)
		}

		if p.PrizePool, err = payout.Remainder(p.PrizePool, p.EntryFee); err != nil {
			return fmt.Errorf("refund exceeds prize pool: %w", err)
		}
		if err := registry.MarkClaimed(ctx, q, poolID, participant); err != nil {
			return err
		}
		if err := e.store.DropEntryWeight(ctx, q, poolID, participant); err != nil {
			return err
		}
		if err := registry.UpdatePool(ctx, q, p); err != nil {
			return err
		}

		po = e.newPayout(poolID, participant, models.PayoutRefund, p.EntryFee)
		if err := registry.InsertPayout(ctx, q, po); err != nil {
			return err
		}
		return e.emit(ctx, q, models.Event{
			Kind:    models.EventRefundClaimed,
			PoolID:  poolID,
			Account: participant,
			Amount:  po.Amount,
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("refund claimed", "pool_id", poolID, "participant", participant.Hex(), "amount", amount(po.Amount))
	e.pay(ctx, po)
	return po, nil
}

// WithdrawTreasury pays amount from the treasury to its owner.
func (e *Engine) WithdrawTreasury(ctx context.Context, caller common.Address, amt *uint256.Int) (*models.Payout, error) {
	if caller != e.cfg.TreasuryOwner {
		return nil, fail(ErrUnauthorized, "only the treasury owner may withdraw")
	}
	if amt == nil || amt.IsZero() {
		return nil, fail(ErrValidation, "amount must be positive")
	}

	// Treasury payouts have no pool; the empty id is never a valid pool id.
	unlock := e.lock("")
	defer unlock()

	var po *models.Payout
	tl := e.treasury()
	err := e.reg.InTx(ctx, func(q db.DBTX) error {
		tl.acquire()
		err := registry.DebitTreasury(ctx, q, amt)
		if errors.Is(err, registry.ErrInsufficient) {
			return fail(ErrValidation, "treasury balance is below %s", amt.Dec())
		}
		if err != nil {
			return err
		}

		po = e.newPayout("", caller, models.PayoutTreasury, amt)
		if err := registry.InsertPayout(ctx, q, po); err != nil {
			return err
		}
		return e.emit(ctx, q, models.Event{
			Kind:    models.EventTreasuryWithdrawn,
			Account: caller,
			Amount:  po.Amount,
		})
	})
	tl.release()
	if err != nil {
		return nil, err
	}

	slog.Info("treasury withdrawn", "owner", caller.Hex(), "amount", amount(po.Amount))
	e.pay(ctx, po)
	return po, nil
}

// RetryPayout re-attempts the transfer of a pending payout. The recipient
// or the treasury owner may retry.
func (e *Engine) RetryPayout(ctx context.Context, caller common.Address, payoutID string) (*models.Payout, error) {
	po, err := registry.GetPayout(ctx, e.reg.DB(), payoutID)
	if errors.Is(err, registry.ErrPayoutNotFound) {
		return nil, fail(ErrNotFound, "payout %q", payoutID)
	}
	if err != nil {
		return nil, err
	}
	if caller != po.Recipient && caller != e.cfg.TreasuryOwner {
		return nil, fail(ErrUnauthorized, "payout %q belongs to %s", payoutID, po.Recipient.Hex())
	}

	unlock := e.lock(po.PoolID)
	defer unlock()

	// Re-read under the lock; a concurrent retry may have paid it.
	po, err = registry.GetPayout(ctx, e.reg.DB(), payoutID)
	if err != nil {
		return nil, err
	}
	if po.Status == models.PayoutPaid {
		return nil, fail(ErrState, "payout %q already paid", payoutID)
	}

	e.pay(ctx, po)
	return po, nil
}

// pay transfers po and marks it paid. A failed transfer is logged and
// leaves po pending for RetryPayout; the claim itself stands.
func (e *Engine) pay(ctx context.Context, po *models.Payout) {
	memo := po.Kind + ":" + po.ID
	if err := e.payer.Transfer(ctx, po.Recipient, po.Amount, memo); err != nil {
		slog.Error("payout transfer failed", "payout_id", po.ID, "recipient", po.Recipient.Hex(),
			"amount", amount(po.Amount), "error", err)
		return
	}
	if err := registry.MarkPayoutPaid(ctx, e.reg.DB(), po.ID); err != nil {
		slog.Error("failed to mark payout paid", "payout_id", po.ID, "error", err)
		return
	}
	po.Status = models.PayoutPaid
}

func (e *Engine) newPayout(poolID string, to common.Address, kind string, amt *uint256.Int) *models.Payout {
	return &models.Payout{
		ID:        uuid.NewString(),
		PoolID:    poolID,
		Recipient: to,
		Kind:      kind,
		Amount:    new(uint256.Int).Set(amt),
		Status:    models.PayoutPending,
		CreatedAt: e.Now(),
	}
}
