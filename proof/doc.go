// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package proof verifies input proofs for encrypted weights.

The coprocessor encrypts a weight client-side, checks it lies in
[models.MinWeight, models.MaxWeight], and signs a Keccak-256 digest binding
the ciphertext to the pool and participant:

	digest = keccak256("astrostrike.input.v1" | len(poolID) | poolID |
	                   participant | keccak256(ciphertext) | min | max)

Verify recovers the signer and requires it to be one of the trusted
coprocessor keys. Replaying a ciphertext under another pool or participant
changes the digest and therefore the recovered signer.

Errors:

  - ErrMalformed: the proof is not a 65-byte signature or the ciphertext is empty
  - ErrUntrustedSigner: the signature is valid but not from a trusted key
*/
package proof
