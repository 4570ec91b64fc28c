// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Supported database types
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// Open opens a connection pool for the given database type. The driver must
// be registered by the caller (modernc.org/sqlite or github.com/lib/pq).
func Open(dbType, url string) (*sql.DB, error) {
	switch dbType {
	case TypeSQLite:
		conn, err := sql.Open("sqlite", url)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		// SQLite allows a single writer; one connection also keeps :memory: databases shared.
		conn.SetMaxOpenConns(1)
		return conn, nil
	case TypePostgres:
		conn, err := sql.Open("postgres", url)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}
}

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

// Amounts are decimal TEXT and times are unix seconds so the same schema
// runs on both SQLite and PostgreSQL.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS pool (
    id TEXT PRIMARY KEY,
    creator TEXT NOT NULL,
    entry_fee TEXT NOT NULL,
    fee_bps INTEGER NOT NULL DEFAULT 0,
    created_at BIGINT NOT NULL,
    lock_time BIGINT NOT NULL,
    prize_pool TEXT NOT NULL,
    distributable TEXT NOT NULL DEFAULT '0',
    cancelled BOOLEAN NOT NULL DEFAULT FALSE,
    settled BOOLEAN NOT NULL DEFAULT FALSE,
    push_all BOOLEAN NOT NULL DEFAULT FALSE,
    winning_choice INTEGER,
    pick_nova BIGINT NOT NULL DEFAULT 0,
    pick_pulse BIGINT NOT NULL DEFAULT 0,
    pick_flux BIGINT NOT NULL DEFAULT 0,
    player_count BIGINT NOT NULL DEFAULT 0,
    claimed_winners BIGINT NOT NULL DEFAULT 0,
    pending_token TEXT NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS idx_pool_created_at ON pool(created_at)`,

	`CREATE TABLE IF NOT EXISTS entry (
    pool_id TEXT NOT NULL REFERENCES pool(id),
    participant TEXT NOT NULL,
    choice INTEGER NOT NULL CHECK (choice >= 0 AND choice <= 2),
    claimed BOOLEAN NOT NULL DEFAULT FALSE,
    entered_at BIGINT NOT NULL,
    PRIMARY KEY (pool_id, participant)
)`,

	// Ciphertext store. No plaintext weight is ever written to these tables.
	`CREATE TABLE IF NOT EXISTS aggregate (
    pool_id TEXT NOT NULL REFERENCES pool(id),
    choice INTEGER NOT NULL CHECK (choice >= 0 AND choice <= 2),
    ciphertext TEXT NOT NULL,
    PRIMARY KEY (pool_id, choice)
)`,
	`CREATE TABLE IF NOT EXISTS entry_weight (
    pool_id TEXT NOT NULL REFERENCES pool(id),
    participant TEXT NOT NULL,
    ciphertext TEXT NOT NULL,
    PRIMARY KEY (pool_id, participant)
)`,

	`CREATE TABLE IF NOT EXISTS settlement_request (
    token TEXT PRIMARY KEY,
    pool_id TEXT NOT NULL REFERENCES pool(id),
    requested_at BIGINT NOT NULL,
    fulfilled BOOLEAN NOT NULL DEFAULT FALSE,
    total_nova BIGINT,
    total_pulse BIGINT,
    total_flux BIGINT
)`,
	`CREATE INDEX IF NOT EXISTS idx_settlement_request_pool_id ON settlement_request(pool_id)`,

	`CREATE TABLE IF NOT EXISTS event (
    pool_id TEXT NOT NULL,
    seq BIGINT NOT NULL,
    id TEXT NOT NULL UNIQUE,
    kind TEXT NOT NULL,
    account TEXT NOT NULL DEFAULT '',
    choice INTEGER,
    amount TEXT NOT NULL DEFAULT '',
    push BOOLEAN NOT NULL DEFAULT FALSE,
    at BIGINT NOT NULL,
    PRIMARY KEY (pool_id, seq)
)`,

	`CREATE TABLE IF NOT EXISTS treasury (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    balance TEXT NOT NULL
)`,

	`CREATE TABLE IF NOT EXISTS payout (
    id TEXT PRIMARY KEY,
    pool_id TEXT NOT NULL,
    recipient TEXT NOT NULL,
    kind TEXT NOT NULL CHECK (kind IN ('prize', 'refund', 'treasury')),
    amount TEXT NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('pending', 'paid')),
    created_at BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_payout_recipient ON payout(recipient)`,

	`CREATE TABLE IF NOT EXISTS account_balance (
    account TEXT PRIMARY KEY,
    balance TEXT NOT NULL
)`,
}
