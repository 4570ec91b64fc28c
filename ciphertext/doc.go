// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ciphertext stores encrypted conviction weights.

Each pool owns three aggregate ciphertexts, one per choice, plus one weight
handle per entry. Aggregates start as an encryption of zero and grow by
homomorphic addition:

	store := ciphertext.NewStore(evaluator)
	err := store.Accumulate(ctx, tx, poolID, models.ChoiceNova, ct)

The store never decrypts, compares, or otherwise interprets ciphertext
bytes. All arithmetic is delegated to the Evaluator.
*/
package ciphertext
