// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/danielhkuo/astro-strike/db"
	"github.com/danielhkuo/astro-strike/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// AppendEvent assigns ev the next sequence number of its pool and stores it.
// Callers serialize writes per pool, so MAX(seq)+1 cannot race.
func AppendEvent(ctx context.Context, q db.DBTX, ev *models.Event) error {
	var last int64
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM event WHERE pool_id = $1
	`, ev.PoolID).Scan(&last)
	if err != nil {
		return fmt.Errorf("failed to query event sequence: %w", err)
	}

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.Seq = last + 1

	var choice sql.NullInt64
	if ev.Choice != nil {
		choice = sql.NullInt64{Int64: int64(*ev.Choice), Valid: true}
	}
	account := ""
	if ev.Account != (common.Address{}) {
		account = ev.Account.Hex()
	}
	amount := ""
	if ev.Amount != nil {
		amount = ev.Amount.Dec()
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO event (pool_id, seq, id, kind, account, choice, amount, push, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, ev.PoolID, ev.Seq, ev.ID, ev.Kind, account, choice, amount, ev.Push, ev.At.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Events returns the events of a pool in emission order.
func Events(ctx context.Context, q db.DBTX, poolID string) ([]models.Event, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT seq, id, kind, account, choice, amount, push, at FROM event
		WHERE pool_id = $1
		ORDER BY seq
	`, poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var (
			ev              models.Event
			account, amount string
			choice          sql.NullInt64
			at              int64
		)
		if err := rows.Scan(&ev.Seq, &ev.ID, &ev.Kind, &account, &choice, &amount, &ev.Push, &at); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.PoolID = poolID
		if account != "" {
			ev.Account = common.HexToAddress(account)
		}
		if choice.Valid {
			c := models.Choice(choice.Int64)
			ev.Choice = &c
		}
		if amount != "" {
			if ev.Amount, err = parseAmount(amount); err != nil {
				return nil, err
			}
		}
		ev.At = time.Unix(at, 0).UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}
