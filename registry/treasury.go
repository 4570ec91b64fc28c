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
	"github.com/holiman/uint256"
)

// TreasuryBalance returns the accrued fees and rounding remainders.
func TreasuryBalance(ctx context.Context, q db.DBTX) (*uint256.Int, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT balance FROM treasury WHERE id = 1`).Scan(&raw)
	if err == sql.ErrNoRows {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query treasury: %w", err)
	}
	return parseAmount(raw)
}

func setTreasury(ctx context.Context, q db.DBTX, balance *uint256.Int) error {
	res, err := q.ExecContext(ctx, `UPDATE treasury SET balance = $1 WHERE id = 1`, balance.Dec())
	if err != nil {
		return fmt.Errorf("failed to update treasury: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	if _, err := q.ExecContext(ctx, `INSERT INTO treasury (id, balance) VALUES (1, $1)`, balance.Dec()); err != nil {
		return fmt.Errorf("failed to insert treasury: %w", err)
	}
	return nil
}

// CreditTreasury adds amount to the treasury.
func CreditTreasury(ctx context.Context, q db.DBTX, amount *uint256.Int) error {
	balance, err := TreasuryBalance(ctx, q)
	if err != nil {
		return err
	}
	sum, overflow := new(uint256.Int).AddOverflow(balance, amount)
	if overflow {
		return fmt.Errorf("treasury balance overflow")
	}
	return setTreasury(ctx, q, sum)
}

// DebitTreasury removes amount, failing if the balance is short.
func DebitTreasury(ctx context.Context, q db.DBTX, amount *uint256.Int) error {
	balance, err := TreasuryBalance(ctx, q)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		return ErrInsufficient
	}
	return setTreasury(ctx, q, new(uint256.Int).Sub(balance, amount))
}

// Payouts

func InsertPayout(ctx context.Context, q db.DBTX, p *models.Payout) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO payout (id, pool_id, recipient, kind, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.PoolID, p.Recipient.Hex(), p.Kind, p.Amount.Dec(), p.Status, p.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert payout: %w", err)
	}
	return nil
}

func GetPayout(ctx context.Context, q db.DBTX, id string) (*models.Payout, error) {
	var (
		p                 models.Payout
		recipient, amount string
		createdAt         int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, pool_id, recipient, kind, amount, status, created_at
		FROM payout WHERE id = $1
	`, id).Scan(&p.ID, &p.PoolID, &recipient, &p.Kind, &amount, &p.Status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrPayoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query payout: %w", err)
	}
	p.Recipient = common.HexToAddress(recipient)
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	if p.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	return &p, nil
}

func MarkPayoutPaid(ctx context.Context, q db.DBTX, id string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE payout SET status = $1 WHERE id = $2
	`, models.PayoutPaid, id)
	if err != nil {
		return fmt.Errorf("failed to mark payout paid: %w", err)
	}
	return nil
}

// Account balances

// AccountBalance returns the credited balance of account.
func AccountBalance(ctx context.Context, q db.DBTX, account common.Address) (*uint256.Int, error) {
	var raw string
	err := q.QueryRowContext(ctx, `
		SELECT balance FROM account_balance WHERE account = $1
	`, account.Hex()).Scan(&raw)
	if err == sql.ErrNoRows {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account balance: %w", err)
	}
	return parseAmount(raw)
}

// CreditAccount adds amount to account's balance.
func CreditAccount(ctx context.Context, q db.DBTX, account common.Address, amount *uint256.Int) error {
	balance, err := AccountBalance(ctx, q, account)
	if err != nil {
		return err
	}
	sum, overflow := new(uint256.Int).AddOverflow(balance, amount)
	if overflow {
		return fmt.Errorf("account balance overflow")
	}

	res, err := q.ExecContext(ctx, `
		UPDATE account_balance SET balance = $1 WHERE account = $2
	`, sum.Dec(), account.Hex())
	if err != nil {
		return fmt.Errorf("failed to update account balance: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO account_balance (account, balance) VALUES ($1, $2)
	`, account.Hex(), sum.Dec())
	if err != nil {
		return fmt.Errorf("failed to insert account balance: %w", err)
	}
	return nil
}
