// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/astro-strike/db"
	"github.com/danielhkuo/astro-strike/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrPoolNotFound    = errors.New("registry: pool not found")
	ErrEntryNotFound   = errors.New("registry: entry not found")
	ErrRequestNotFound = errors.New("registry: settlement request not found")
	ErrPayoutNotFound  = errors.New("registry: payout not found")
	ErrInsufficient    = errors.New("registry: insufficient balance")
)

// Registry persists pools, entries, settlement requests, events, payouts,
// and the treasury balance.
type Registry struct {
	db *sql.DB
}

func New(conn *sql.DB) *Registry {
	return &Registry{db: conn}
}

// DB returns the underlying connection for read-only queries.
func (r *Registry) DB() db.DBTX {
	return r.db
}

// InTx runs fn in a transaction, committing only if fn returns nil.
func (r *Registry) InTx(ctx context.Context, fn func(q db.DBTX) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Pools

const poolColumns = `id, creator, entry_fee, fee_bps, created_at, lock_time, prize_pool,
	distributable, cancelled, settled, push_all, winning_choice, pick_nova, pick_pulse,
	pick_flux, player_count, claimed_winners, pending_token`

// PoolExists reports whether id is taken.
func PoolExists(ctx context.Context, q db.DBTX, id string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM pool WHERE id = $1)
	`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query pool: %w", err)
	}
	return exists, nil
}

func InsertPool(ctx context.Context, q db.DBTX, p *models.Pool) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO pool (id, creator, entry_fee, fee_bps, created_at, lock_time, prize_pool)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.Creator.Hex(), p.EntryFee.Dec(), int(p.FeeBps), p.CreatedAt.Unix(), p.LockTime.Unix(), p.PrizePool.Dec())
	if err != nil {
		return fmt.Errorf("failed to insert pool: %w", err)
	}
	return nil
}

func GetPool(ctx context.Context, q db.DBTX, id string) (*models.Pool, error) {
	row := q.QueryRowContext(ctx, `SELECT `+poolColumns+` FROM pool WHERE id = $1`, id)
	p, err := scanPool(row)
	if err == sql.ErrNoRows {
		return nil, ErrPoolNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pool: %w", err)
	}
	return p, nil
}

// UpdatePool writes every mutable column of p.
func UpdatePool(ctx context.Context, q db.DBTX, p *models.Pool) error {
	var winning sql.NullInt64
	if p.WinningChoice != nil {
		winning = sql.NullInt64{Int64: int64(*p.WinningChoice), Valid: true}
	}

	res, err := q.ExecContext(ctx, `
		UPDATE pool
		SET prize_pool = $1, distributable = $2, cancelled = $3, settled = $4, push_all = $5,
		    winning_choice = $6, pick_nova = $7, pick_pulse = $8, pick_flux = $9,
		    player_count = $10, claimed_winners = $11, pending_token = $12
		WHERE id = $13
	`, p.PrizePool.Dec(), p.Distributable.Dec(), p.Cancelled, p.Settled, p.PushAll,
		winning, int64(p.PickCounts[0]), int64(p.PickCounts[1]), int64(p.PickCounts[2]),
		int64(p.PlayerCount), int64(p.ClaimedWinners), p.PendingToken, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update pool: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrPoolNotFound
	}
	return nil
}

// ListPoolIDs returns every pool id in creation order.
func ListPoolIDs(ctx context.Context, q db.DBTX) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM pool ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pools: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pool id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPool(row scanner) (*models.Pool, error) {
	var (
		p                                   models.Pool
		creator, entryFee, prize, distrib   string
		feeBps, createdAt, lockTime         int64
		winning                             sql.NullInt64
		nova, pulse, flux, players, winners int64
	)
	err := row.Scan(&p.ID, &creator, &entryFee, &feeBps, &createdAt, &lockTime, &prize,
		&distrib, &p.Cancelled, &p.Settled, &p.PushAll, &winning, &nova, &pulse,
		&flux, &players, &winners, &p.PendingToken)
	if err != nil {
		return nil, err
	}

	p.Creator = common.HexToAddress(creator)
	p.FeeBps = uint16(feeBps)
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.LockTime = time.Unix(lockTime, 0).UTC()
	if p.EntryFee, err = parseAmount(entryFee); err != nil {
		return nil, err
	}
	if p.PrizePool, err = parseAmount(prize); err != nil {
		return nil, err
	}
	if p.Distributable, err = parseAmount(distrib); err != nil {
		return nil, err
	}
	if winning.Valid {
		c := models.Choice(winning.Int64)
		p.WinningChoice = &c
	}
	p.PickCounts = [models.NumChoices]uint64{uint64(nova), uint64(pulse), uint64(flux)}
	p.PlayerCount = uint64(players)
	p.ClaimedWinners = uint64(winners)
	return &p, nil
}

func parseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", s, err)
	}
	return v, nil
}

// Entries

func InsertEntry(ctx context.Context, q db.DBTX, e *models.Entry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO entry (pool_id, participant, choice, claimed, entered_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.PoolID, e.Participant.Hex(), int(e.Choice), e.Claimed, e.EnteredAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

func GetEntry(ctx context.Context, q db.DBTX, poolID string, participant common.Address) (*models.Entry, error) {
	var (
		e         models.Entry
		choice    int64
		enteredAt int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT choice, claimed, entered_at FROM entry
		WHERE pool_id = $1 AND participant = $2
	`, poolID, participant.Hex()).Scan(&choice, &e.Claimed, &enteredAt)
	if err == sql.ErrNoRows {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query entry: %w", err)
	}

	e.PoolID = poolID
	e.Participant = participant
	e.Exists = true
	e.Choice = models.Choice(choice)
	e.EnteredAt = time.Unix(enteredAt, 0).UTC()
	return &e, nil
}

// MarkClaimed flips claimed from false to true. It never resets the flag.
func MarkClaimed(ctx context.Context, q db.DBTX, poolID string, participant common.Address) error {
	res, err := q.ExecContext(ctx, `
		UPDATE entry SET claimed = $1
		WHERE pool_id = $2 AND participant = $3 AND claimed = $4
	`, true, poolID, participant.Hex(), false)
	if err != nil {
		return fmt.Errorf("failed to mark entry claimed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrEntryNotFound
	}
	return nil
}
