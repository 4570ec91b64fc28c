// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

LoadEnv reads an optional .env file, then ParseFlags returns a Config:

	if err := cliparse.LoadEnv(".env"); err != nil {
		log.Fatal(err)
	}
	cfg, err := cliparse.ParseFlags(os.Args[1:])

# CLI Flags and Environment Variables

Every flag falls back to an environment variable. CLI flags take precedence.

	-p                      PORT                  (default 3318)
	-d                      DATABASE_URL          (required)
	-t                      DATABASE_TYPE         sqlite | postgres (default sqlite)
	--treasury-owner        TREASURY_OWNER        (required)
	--dev-coprocessor       DEV_COPROCESSOR
	--oracle-signer         ORACLE_SIGNER
	--proof-signers         PROOF_SIGNERS         comma-separated
	--fhe-public-key-file   FHE_PUBLIC_KEY_FILE   serialized BFV public key
	--relayer-url           RELAYER_URL
	--min-entry-fee         MIN_ENTRY_FEE         wei (default 0.0005 ETH)
	--min-duration          MIN_DURATION          seconds (default 300)
	--max-duration          MAX_DURATION          seconds (default 2592000)
	--max-protocol-fee-bps  MAX_PROTOCOL_FEE_BPS  (default 2000)

# Validation

Without DEV_COPROCESSOR, ORACLE_SIGNER, PROOF_SIGNERS, FHE_PUBLIC_KEY_FILE
and RELAYER_URL must all be set. Addresses must be 0x-prefixed hex.
*/
package cliparse
