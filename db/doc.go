// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database connections and schema creation.

# Opening

Open selects the driver by database type:

	conn, err := db.Open(db.TypePostgres, cfg.DatabaseURL)

SQLite connections are limited to one open connection.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - pool: pool parameters, counters, and settlement outcome
  - entry: one row per (pool, participant)
  - aggregate: encrypted per-choice weight sums
  - entry_weight: encrypted individual weight, kept until the claim
  - settlement_request: decryption requests and their revealed totals
  - event: per-pool ordered event log
  - treasury: protocol fee and rounding remainder balance
  - payout: prizes, refunds, and treasury withdrawals
  - account_balance: credited balances for the ledger payer

# Querying

Repositories accept DBTX so the same code runs on *sql.DB or inside a *sql.Tx.
*/
package db
