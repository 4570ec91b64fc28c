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
)

func InsertRequest(ctx context.Context, q db.DBTX, req models.SettlementRequest) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO settlement_request (token, pool_id, requested_at, fulfilled)
		VALUES ($1, $2, $3, $4)
	`, req.Token, req.PoolID, req.RequestedAt.Unix(), false)
	if err != nil {
		return fmt.Errorf("failed to insert settlement request: %w", err)
	}
	return nil
}

// GetRequest returns an unfulfilled request by token.
func GetRequest(ctx context.Context, q db.DBTX, token string) (models.SettlementRequest, error) {
	var (
		req         models.SettlementRequest
		requestedAt int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT token, pool_id, requested_at FROM settlement_request
		WHERE token = $1 AND fulfilled = $2
	`, token, false).Scan(&req.Token, &req.PoolID, &requestedAt)
	if err == sql.ErrNoRows {
		return models.SettlementRequest{}, ErrRequestNotFound
	}
	if err != nil {
		return models.SettlementRequest{}, fmt.Errorf("failed to query settlement request: %w", err)
	}
	req.RequestedAt = time.Unix(requestedAt, 0).UTC()
	return req, nil
}

// DeleteRequest removes an unfulfilled request.
func DeleteRequest(ctx context.Context, q db.DBTX, token string) error {
	res, err := q.ExecContext(ctx, `
		DELETE FROM settlement_request WHERE token = $1 AND fulfilled = $2
	`, token, false)
	if err != nil {
		return fmt.Errorf("failed to delete settlement request: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// FulfilRequest records the revealed totals and closes the request.
func FulfilRequest(ctx context.Context, q db.DBTX, token string, sums [models.NumChoices]uint64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE settlement_request
		SET fulfilled = $1, total_nova = $2, total_pulse = $3, total_flux = $4
		WHERE token = $5 AND fulfilled = $6
	`, true, int64(sums[0]), int64(sums[1]), int64(sums[2]), token, false)
	if err != nil {
		return fmt.Errorf("failed to fulfil settlement request: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// Totals returns the revealed aggregate sums of a settled pool.
func Totals(ctx context.Context, q db.DBTX, poolID string) ([models.NumChoices]uint64, error) {
	var nova, pulse, flux int64
	err := q.QueryRowContext(ctx, `
		SELECT total_nova, total_pulse, total_flux FROM settlement_request
		WHERE pool_id = $1 AND fulfilled = $2
	`, poolID, true).Scan(&nova, &pulse, &flux)
	if err == sql.ErrNoRows {
		return [models.NumChoices]uint64{}, ErrRequestNotFound
	}
	if err != nil {
		return [models.NumChoices]uint64{}, fmt.Errorf("failed to query totals: %w", err)
	}
	return [models.NumChoices]uint64{uint64(nova), uint64(pulse), uint64(flux)}, nil
}

// PendingRequests lists every outstanding request, oldest first.
func PendingRequests(ctx context.Context, q db.DBTX) ([]models.SettlementRequest, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT token, pool_id, requested_at FROM settlement_request
		WHERE fulfilled = $1
		ORDER BY requested_at, token
	`, false)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlement requests: %w", err)
	}
	defer rows.Close()

	reqs := []models.SettlementRequest{}
	for rows.Next() {
		var (
			req         models.SettlementRequest
			requestedAt int64
		)
		if err := rows.Scan(&req.Token, &req.PoolID, &requestedAt); err != nil {
			return nil, fmt.Errorf("failed to scan settlement request: %w", err)
		}
		req.RequestedAt = time.Unix(requestedAt, 0).UTC()
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}
