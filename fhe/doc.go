// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package fhe provides the additive homomorphic scheme and an in-process
coprocessor.

# BFV

Keys are lattigo BFV keys under one fixed parameter set (Params). A weight
is encoded in the first plaintext slot and encrypted under the public key;
adding two ciphertexts yields an encryption of the sum of their slots
modulo PlaintextModulus. Zero is a fresh encryption of the zero plaintext.
A ciphertext is accepted only if it decodes to a degree-1 ciphertext at the
top level of the ring with every coefficient reduced.

	key, err := fhe.GenerateKey()
	eval := fhe.NewEvaluator(key.PublicKey)

Evaluator satisfies ciphertext.Evaluator and needs only the public key.
PublicKey.MarshalBinary writes the form ParsePublicKey reads, which is how
an external coprocessor's key reaches the server.

# Local Coprocessor

Local holds the secret key and a secp256k1 signing key. It encrypts
weights client-side with an attested input proof, queues settlement
decryption requests, and answers them with signed callbacks:

	local, _ := fhe.GenerateLocal()
	ct, proof, _ := local.EncryptWeight(poolID, participant, 40)
	// ...
	go local.Run(ctx, engine.DeliverCallback)

A single weight is only revealed to the participant it was encrypted for.
*/
package fhe
