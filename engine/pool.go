// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/danielhkuo/astro-strike/ciphertext"
	"github.com/danielhkuo/astro-strike/db"
	"github.com/danielhkuo/astro-strike/models"
	"github.com/danielhkuo/astro-strike/payout"
	"github.com/danielhkuo/astro-strike/proof"
	"github.com/danielhkuo/astro-strike/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var poolIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// CreatePool registers a new pool that accepts entries for duration.
func (e *Engine) CreatePool(ctx context.Context, creator common.Address, poolID string, entryFee *uint256.Int, duration time.Duration, feeBps uint16) (*models.Pool, error) {
	switch {
	case !poolIDPattern.MatchString(poolID):
		return nil, fail(ErrValidation, "pool id must be 1-64 characters of [A-Za-z0-9_-]")
	case entryFee == nil || entryFee.Lt(e.cfg.MinEntryFee):
		return nil, fail(ErrValidation, "entry fee below minimum %s", e.cfg.MinEntryFee.Dec())
	case duration < e.cfg.MinDuration || duration > e.cfg.MaxDuration:
		return nil, fail(ErrValidation, "duration must be between %s and %s", e.cfg.MinDuration, e.cfg.MaxDuration)
	case duration%time.Second != 0:
		return nil, fail(ErrValidation, "duration must be whole seconds")
	case feeBps > e.cfg.MaxFeeBps:
		return nil, fail(ErrValidation, "fee_bps above maximum %d", e.cfg.MaxFeeBps)
	}

	unlock := e.lock(poolID)
	defer unlock()

	now := e.Now()
	p := &models.Pool{
		ID:            poolID,
		Creator:       creator,
		EntryFee:      new(uint256.Int).Set(entryFee),
		FeeBps:        feeBps,
		CreatedAt:     now,
		LockTime:      now.Add(duration),
		PrizePool:     new(uint256.Int),
		Distributable: new(uint256.Int),
	}

	err := e.reg.InTx(ctx, func(q db.DBTX) error {
		exists, err := registry.PoolExists(ctx, q, poolID)
		if err != nil {
			return err
		}
		if exists {
			return fail(ErrAlreadyExists, "pool %q", poolID)
		}
		if err := registry.InsertPool(ctx, q, p); err != nil {
			return err
		}
		if err := e.store.Init(ctx, q, poolID); err != nil {
			return err
		}
		return e.emit(ctx, q, models.Event{
			Kind:    models.EventPoolCreated,
			PoolID:  poolID,
			Account: creator,
			Amount:  p.EntryFee,
		})
	})
	if err != nil {
		return nil, err
	}

	logPool("pool created", p, "creator", creator.Hex(), "entry_fee", amount(p.EntryFee),
		"lock_time", p.LockTime, "fee_bps", feeBps)
	return p, nil
}

// EnterPool places participant's pick with an encrypted weight. payment must
// equal the pool's entry fee exactly.
func (e *Engine) EnterPool(ctx context.Context, participant common.Address, poolID string, choice models.Choice, ct ciphertext.Ciphertext, inputProof []byte, payment *uint256.Int) (*models.Entry, error) {
	if err := e.checkPoolID(ctx, poolID); err != nil {
		return nil, err
	}
	unlock := e.lock(poolID)
	defer unlock()

	var entry *models.Entry
	var updated *models.Pool
	err := e.reg.InTx(ctx, func(q db.DBTX) error {
		p, err := loadPool(ctx, q, poolID)
		if err != nil {
			return err
		}

		now := e.Now()
		if !p.IsOpen(now) {
			return fail(ErrState, "pool %q is %s", poolID, p.Phase(now))
		}
		if p.PlayerCount >= models.MaxPlayers {
			return fail(ErrState, "pool %q is full", poolID)
		}

		_, err = registry.GetEntry(ctx, q, poolID, participant)
		if err == nil {
			return fail(ErrAlreadyExists, "%s already entered pool %q", participant.Hex(), poolID)
		}
		if !errors.Is(err, registry.ErrEntryNotFound) {
			return err
		}

		if !choice.Valid() {
			return fail(ErrValidation, "choice must be 0, 1 or 2")
		}
		if payment == nil || !payment.Eq(p.EntryFee) {
			return fail(ErrPaymentMismatch, "entry fee is %s", p.EntryFee.Dec())
		}

		if err := e.verifier.Verify(poolID, participant, ct, inputProof); err != nil {
			if errors.Is(err, proof.ErrMalformed) {
				return fail(ErrValidation, "%v", err)
			}
			return fail(ErrInvalidProof, "%v", err)
		}

		if err := e.store.Accumulate(ctx, q, poolID, choice, ct); err != nil {
			if errors.Is(err, ciphertext.ErrRejected) || errors.Is(err, ciphertext.ErrEmpty) {
				return fail(ErrInvalidProof, "%v", err)
			}
			return err
		}
		if err := e.store.PutEntryWeight(ctx, q, poolID, participant, ct); err != nil {
			return err
		}

		// Nothing is paid out while open, so the pool is exactly fee * players.
		prize, err := payout.Total(p.EntryFee, p.PlayerCount+1)
		if err != nil {
			return fail(ErrState, "prize pool overflow")
		}
		p.PrizePool = prize
		p.PickCounts[choice]++
		p.PlayerCount++

		entry = &models.Entry{
			PoolID:      poolID,
			Participant: participant,
			Exists:      true,
			Choice:      choice,
			EnteredAt:   now,
		}
		if err := registry.InsertEntry(ctx, q, entry); err != nil {
			return err
		}
		if err := registry.UpdatePool(ctx, q, p); err != nil {
			return err
		}
		updated = p

		c := choice
		return e.emit(ctx, q, models.Event{
			Kind:    models.EventEntryPlaced,
			PoolID:  poolID,
			Account: participant,
			Choice:  &c,
		})
	})
	if err != nil {
		return nil, err
	}

	logPool("entry placed", updated, "participant", participant.Hex(), "choice", choice.String(),
		"players", updated.PlayerCount, "prize_pool", amount(updated.PrizePool))
	return entry, nil
}

// Cancel closes an open pool nobody has entered. Only the creator may cancel.
func (e *Engine) Cancel(ctx context.Context, caller common.Address, poolID string) (*models.Pool, error) {
	if err := e.checkPoolID(ctx, poolID); err != nil {
		return nil, err
	}
	unlock := e.lock(poolID)
	defer unlock()

	var cancelled *models.Pool
	err := e.reg.InTx(ctx, func(q db.DBTX) error {
		p, err := loadPool(ctx, q, poolID)
		if err != nil {
			return err
		}
		if caller != p.Creator {
			return fail(ErrUnauthorized, "only the creator may cancel pool %q", poolID)
		}
		now := e.Now()
		if !p.IsOpen(now) {
			return fail(ErrState, "pool %q is %s", poolID, p.Phase(now))
		}
		if p.PlayerCount > 0 {
			return fail(ErrState, "pool %q already has entries", poolID)
		}

		p.Cancelled = true
		if err := registry.UpdatePool(ctx, q, p); err != nil {
			return err
		}
		cancelled = p
		return e.emit(ctx, q, models.Event{
			Kind:    models.EventPoolCancelled,
			PoolID:  poolID,
			Account: caller,
		})
	})
	if err != nil {
		return nil, err
	}

	logPool("pool cancelled", cancelled)
	return cancelled, nil
}
