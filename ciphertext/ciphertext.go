// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ciphertext

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/danielhkuo/astro-strike/db"
	"github.com/danielhkuo/astro-strike/models"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrEmpty    = errors.New("ciphertext: empty")
	ErrNotFound = errors.New("ciphertext: not found")
	ErrRejected = errors.New("ciphertext: rejected by evaluator")
)

// Ciphertext is an encrypted value. Its bytes are opaque to this package.
type Ciphertext []byte

// Hex encodes c as lowercase hex without prefix.
func (c Ciphertext) Hex() string {
	return hex.EncodeToString(c)
}

// FromHex decodes a stored ciphertext.
func FromHex(s string) (Ciphertext, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	return Ciphertext(b), nil
}

// Evaluator performs homomorphic addition on behalf of the store.
type Evaluator interface {
	// Zero returns a fresh encryption of zero, the identity for Add.
	Zero() (Ciphertext, error)
	// Add returns an encryption of the sum of a and b.
	Add(a, b Ciphertext) (Ciphertext, error)
}

// Store keeps per-pool, per-choice aggregate sums and per-entry weight
// handles. All methods run on the caller's DBTX so they join its transaction.
type Store struct {
	eval Evaluator
}

func NewStore(eval Evaluator) *Store {
	return &Store{eval: eval}
}

// Init writes a zero aggregate for every choice of a new pool.
func (s *Store) Init(ctx context.Context, q db.DBTX, poolID string) error {
	for c := models.Choice(0); c < models.NumChoices; c++ {
		zero, err := s.eval.Zero()
		if err != nil {
			return fmt.Errorf("failed to encrypt zero aggregate: %w", err)
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO aggregate (pool_id, choice, ciphertext)
			VALUES ($1, $2, $3)
		`, poolID, int(c), zero.Hex())
		if err != nil {
			return fmt.Errorf("failed to init aggregate: %w", err)
		}
	}
	return nil
}

// Accumulate adds ct into the aggregate for (poolID, choice).
func (s *Store) Accumulate(ctx context.Context, q db.DBTX, poolID string, choice models.Choice, ct Ciphertext) error {
	if len(ct) == 0 {
		return ErrEmpty
	}

	current, err := s.aggregate(ctx, q, poolID, choice)
	if err != nil {
		return err
	}

	sum, err := s.eval.Add(current, ct)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}

	_, err = q.ExecContext(ctx, `
		UPDATE aggregate SET ciphertext = $1
		WHERE pool_id = $2 AND choice = $3
	`, sum.Hex(), poolID, int(choice))
	if err != nil {
		return fmt.Errorf("failed to update aggregate: %w", err)
	}
	return nil
}

// Aggregates returns the three encrypted sums of a pool, indexed by choice.
func (s *Store) Aggregates(ctx context.Context, q db.DBTX, poolID string) ([models.NumChoices]Ciphertext, error) {
	var out [models.NumChoices]Ciphertext
	for c := models.Choice(0); c < models.NumChoices; c++ {
		ct, err := s.aggregate(ctx, q, poolID, c)
		if err != nil {
			return out, err
		}
		out[c] = ct
	}
	return out, nil
}

func (s *Store) aggregate(ctx context.Context, q db.DBTX, poolID string, choice models.Choice) (Ciphertext, error) {
	var raw string
	err := q.QueryRowContext(ctx, `
		SELECT ciphertext FROM aggregate WHERE pool_id = $1 AND choice = $2
	`, poolID, int(choice)).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregate: %w", err)
	}
	return FromHex(raw)
}

// PutEntryWeight stores the individual weight handle of one participant.
func (s *Store) PutEntryWeight(ctx context.Context, q db.DBTX, poolID string, participant common.Address, ct Ciphertext) error {
	if len(ct) == 0 {
		return ErrEmpty
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO entry_weight (pool_id, participant, ciphertext)
		VALUES ($1, $2, $3)
	`, poolID, participant.Hex(), ct.Hex())
	if err != nil {
		return fmt.Errorf("failed to insert entry weight: %w", err)
	}
	return nil
}

// EntryWeight returns the weight handle of one participant.
func (s *Store) EntryWeight(ctx context.Context, q db.DBTX, poolID string, participant common.Address) (Ciphertext, error) {
	var raw string
	err := q.QueryRowContext(ctx, `
		SELECT ciphertext FROM entry_weight WHERE pool_id = $1 AND participant = $2
	`, poolID, participant.Hex()).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query entry weight: %w", err)
	}
	return FromHex(raw)
}

// DropEntryWeight deletes a participant's handle once it is no longer needed.
func (s *Store) DropEntryWeight(ctx context.Context, q db.DBTX, poolID string, participant common.Address) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM entry_weight WHERE pool_id = $1 AND participant = $2
	`, poolID, participant.Hex())
	if err != nil {
		return fmt.Errorf("failed to delete entry weight: %w", err)
	}
	return nil
}
