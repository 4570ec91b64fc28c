// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package oracle adapts the external decryption coprocessor.

# Settlement Round-Trip

Settlement is two-phase. NewRequest mints a token for a pool's three
aggregates and Submit hands it to the coprocessor. The coprocessor later
answers with a Callback carrying the three plaintext sums and a signature
over

	keccak256("astrostrike.settlement.v1" | token | poolID | sums)

VerifySettlement checks the token and the signer. There is no timeout: a
coprocessor that never answers leaves the request outstanding.

# Single-Weight Reveal

DecryptWeight reveals one participant's own weight at claim time. The
response is signed over (poolID, participant, weight) so it cannot be
reused for another participant.

# Transports

HTTPRelayer posts requests as JSON to a relayer:

	POST {base}/decryptions
	POST {base}/user-decryptions
*/
package oracle
