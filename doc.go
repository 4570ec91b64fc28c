// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Astro Strike API server.

Astro Strike runs confidential three-way prediction pools. Entrants pay a
fixed fee, pick Nova, Pulse or Flux, and attach an encrypted conviction
weight between 1 and 1000. Weights are summed homomorphically and only the
three totals are decrypted, once, after the pool locks. Winners split the
prize in proportion to their weight; ties push and everyone is refunded.

# Starting the Server

With the in-process coprocessor:

	DATABASE_URL=file:astro.db TREASURY_OWNER=0x... DEV_COPROCESSOR=1 go run .

Against PostgreSQL and an external coprocessor relayer:

	go run . -t postgres -d "postgres://..." --treasury-owner 0x... \
		--oracle-signer 0x... --proof-signers 0x... \
		--fhe-public-key-file fhe.pk --relayer-url https://relayer.example

# Configuration

See package cliparse for every flag and environment variable. A .env file
in the working directory is loaded first.

# Architecture

  - engine: pool lifecycle state machine
  - registry: durable pools, entries, requests, events, payouts
  - ciphertext: encrypted aggregate store
  - fhe: additive homomorphic scheme and the in-process coprocessor
  - proof: input attestation verifier
  - oracle: decryption requests and callback authentication
  - payout: share arithmetic and the ledger payer
  - handlers, router, middleware, auth: HTTP surface
  - models: domain and API types
  - db: connections and schema
  - cliparse: configuration parsing

See package documentation for each component.
*/
package main
