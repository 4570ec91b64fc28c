// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package fhe

import (
	"errors"
	"fmt"
	"sync"

	"github.com/danielhkuo/astro-strike/ciphertext"
	"github.com/tuneinsight/lattigo/v4/bfv"
	"github.com/tuneinsight/lattigo/v4/rlwe"
)

var (
	ErrInvalidCiphertext = errors.New("bfv: invalid ciphertext")
	ErrInvalidPublicKey  = errors.New("bfv: invalid public key")
	ErrMessageRange      = errors.New("bfv: message out of range")
)

// PlaintextModulus bounds every decrypted value. It is prime and 1 mod 2N
// at LogN 12, which slot encoding requires.
const PlaintextModulus = 0x3ee0001

// Params returns the BFV parameters shared by every key: the 109-bit
// LogN 12 preset with PlaintextModulus as t.
var Params = sync.OnceValues(func() (bfv.Parameters, error) {
	lit := bfv.PN12QP109
	lit.T = PlaintextModulus
	params, err := bfv.NewParametersFromLiteral(lit)
	if err != nil {
		return bfv.Parameters{}, fmt.Errorf("failed to build bfv parameters: %w", err)
	}
	return params, nil
})

// PublicKey encrypts and adds ciphertexts. Lattigo encoders, encryptors
// and evaluators keep scratch buffers, so each key serializes their use.
type PublicKey struct {
	params bfv.Parameters
	pk     *rlwe.PublicKey

	mu        sync.Mutex
	encoder   bfv.Encoder
	encryptor rlwe.Encryptor
	evaluator bfv.Evaluator
}

// PrivateKey decrypts. It embeds the public half.
type PrivateKey struct {
	*PublicKey
	decryptor rlwe.Decryptor
}

func newPublicKey(params bfv.Parameters, pk *rlwe.PublicKey) *PublicKey {
	return &PublicKey{
		params:    params,
		pk:        pk,
		encoder:   bfv.NewEncoder(params),
		encryptor: bfv.NewEncryptor(params, pk),
		// Ciphertext addition needs no evaluation keys.
		evaluator: bfv.NewEvaluator(params, rlwe.EvaluationKey{}),
	}
}

// GenerateKey creates a fresh keypair under Params.
func GenerateKey() (*PrivateKey, error) {
	params, err := Params()
	if err != nil {
		return nil, err
	}
	sk, pk := bfv.NewKeyGenerator(params).GenKeyPair()
	return &PrivateKey{
		PublicKey: newPublicKey(params, pk),
		decryptor: bfv.NewDecryptor(params, sk),
	}, nil
}

// ParsePublicKey decodes a key written by MarshalBinary.
func ParsePublicKey(data []byte) (key *PublicKey, err error) {
	params, err := Params()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrInvalidPublicKey
	}
	defer func() {
		if r := recover(); r != nil {
			key, err = nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, r)
		}
	}()
	pk := new(rlwe.PublicKey)
	if err := pk.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return newPublicKey(params, pk), nil
}

func (k *PublicKey) MarshalBinary() ([]byte, error) {
	return k.pk.MarshalBinary()
}

// Encrypt encodes m in the first slot, zero elsewhere, and encrypts it.
func (k *PublicKey) Encrypt(m uint64) (ciphertext.Ciphertext, error) {
	if m >= k.params.T() {
		return nil, ErrMessageRange
	}
	slots := make([]uint64, k.params.N())
	slots[0] = m

	k.mu.Lock()
	pt := bfv.NewPlaintext(k.params, k.params.MaxLevel())
	k.encoder.Encode(slots, pt)
	ct := k.encryptor.EncryptNew(pt)
	k.mu.Unlock()

	return marshal(ct)
}

// Add returns an encryption of the sum of the plaintexts of a and b.
func (k *PublicKey) Add(a, b ciphertext.Ciphertext) (ciphertext.Ciphertext, error) {
	x, err := k.parse(a)
	if err != nil {
		return nil, err
	}
	y, err := k.parse(b)
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	k.evaluator.Add(x, y, x)
	k.mu.Unlock()

	return marshal(x)
}

// parse decodes c and requires a degree-1 ciphertext at the top level of
// this key's ring with every coefficient reduced.
func (k *PublicKey) parse(c ciphertext.Ciphertext) (ct *rlwe.Ciphertext, err error) {
	if len(c) == 0 {
		return nil, ErrInvalidCiphertext
	}
	defer func() {
		if r := recover(); r != nil {
			ct, err = nil, fmt.Errorf("%w: %v", ErrInvalidCiphertext, r)
		}
	}()

	ct = new(rlwe.Ciphertext)
	if err := ct.UnmarshalBinary(c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	if len(ct.Value) != 2 {
		return nil, ErrInvalidCiphertext
	}
	moduli := k.params.Q()
	for _, poly := range ct.Value {
		if poly == nil || len(poly.Coeffs) != len(moduli) {
			return nil, ErrInvalidCiphertext
		}
		for i, row := range poly.Coeffs {
			if len(row) != k.params.N() {
				return nil, ErrInvalidCiphertext
			}
			for _, v := range row {
				if v >= moduli[i] {
					return nil, ErrInvalidCiphertext
				}
			}
		}
	}
	return ct, nil
}

func marshal(ct *rlwe.Ciphertext) (ciphertext.Ciphertext, error) {
	b, err := ct.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ciphertext: %w", err)
	}
	return ciphertext.Ciphertext(b), nil
}

// Decrypt recovers the first slot of c.
func (k *PrivateKey) Decrypt(c ciphertext.Ciphertext) (uint64, error) {
	ct, err := k.parse(c)
	if err != nil {
		return 0, err
	}
	slots := make([]uint64, k.params.N())

	k.mu.Lock()
	pt := k.decryptor.DecryptNew(ct)
	k.encoder.Decode(pt, slots)
	k.mu.Unlock()

	return slots[0], nil
}

// Evaluator adds ciphertexts under a public key. It satisfies ciphertext.Evaluator.
type Evaluator struct {
	pk *PublicKey
}

func NewEvaluator(pk *PublicKey) *Evaluator {
	return &Evaluator{pk: pk}
}

// Zero encrypts a zero plaintext under fresh randomness.
func (e *Evaluator) Zero() (ciphertext.Ciphertext, error) {
	return e.pk.Encrypt(0)
}

func (e *Evaluator) Add(a, b ciphertext.Ciphertext) (ciphertext.Ciphertext, error) {
	return e.pk.Add(a, b)
}
