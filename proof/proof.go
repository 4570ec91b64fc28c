// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package proof

import (
	"crypto/ecdsa"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/danielhkuo/astro-strike/ciphertext"
	"github.com/danielhkuo/astro-strike/models"
	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

var (
	ErrMalformed       = errors.New("proof: malformed")
	ErrUntrustedSigner = errors.New("proof: signer not trusted")
	ErrNoSigners       = errors.New("proof: no trusted signers")
)

// SignatureLength is the length of a secp256k1 [R || S || V] signature.
const SignatureLength = 65

const domainTag = "astrostrike.input.v1"

// defaultCacheSize bounds the verified-digest cache.
const defaultCacheSize = 4096

// Digest binds a ciphertext to its pool, its participant, and the weight
// range [MinWeight, MaxWeight]. An attestation for any other pool,
// participant, or range produces a different digest.
func Digest(poolID string, participant common.Address, ct ciphertext.Ciphertext) []byte {
	ctHash := keccak(ct)

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(domainTag))
	writeBytes(h, []byte(poolID))
	h.Write(participant.Bytes())
	h.Write(ctHash)

	var bounds [16]byte
	binary.BigEndian.PutUint64(bounds[:8], models.MinWeight)
	binary.BigEndian.PutUint64(bounds[8:], models.MaxWeight)
	h.Write(bounds[:])

	return h.Sum(nil)
}

func keccak(b []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	return h.Sum(nil)
}

// writeBytes writes a length-prefixed field so adjacent fields cannot be shifted.
func writeBytes(h interface{ Write([]byte) (int, error) }, b []byte) {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(b)))
	h.Write(l[:])
	h.Write(b)
}

// Attest signs the binding digest. The coprocessor calls this after checking
// the plaintext range client-side.
func Attest(key *ecdsa.PrivateKey, poolID string, participant common.Address, ct ciphertext.Ciphertext) ([]byte, error) {
	sig, err := gethcrypto.Sign(Digest(poolID, participant, ct), key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign attestation: %w", err)
	}
	return sig, nil
}

// Verifier accepts proofs signed by a fixed set of coprocessor keys.
type Verifier struct {
	trusted map[common.Address]struct{}

	mu       sync.Mutex
	verified map[string]struct{}
	order    []string
	capacity int
}

func NewVerifier(signers []common.Address) (*Verifier, error) {
	if len(signers) == 0 {
		return nil, ErrNoSigners
	}
	trusted := make(map[common.Address]struct{}, len(signers))
	for _, s := range signers {
		trusted[s] = struct{}{}
	}
	return &Verifier{
		trusted:  trusted,
		verified: make(map[string]struct{}),
		capacity: defaultCacheSize,
	}, nil
}

// Verify checks that proof certifies ct as an in-range weight for
// (poolID, participant).
func (v *Verifier) Verify(poolID string, participant common.Address, ct ciphertext.Ciphertext, proof []byte) error {
	if len(ct) == 0 {
		return fmt.Errorf("%w: empty ciphertext", ErrMalformed)
	}
	if len(proof) != SignatureLength {
		return fmt.Errorf("%w: want %d bytes, got %d", ErrMalformed, SignatureLength, len(proof))
	}

	digest := Digest(poolID, participant, ct)
	key := string(digest) + string(proof)

	v.mu.Lock()
	_, ok := v.verified[key]
	v.mu.Unlock()
	if ok {
		return nil
	}

	signer, err := RecoverSigner(digest, proof)
	if err != nil {
		return err
	}
	if _, ok := v.trusted[signer]; !ok {
		return fmt.Errorf("%w: %s", ErrUntrustedSigner, signer.Hex())
	}

	v.remember(key)
	return nil
}

func (v *Verifier) remember(key string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.verified[key]; ok {
		return
	}
	if len(v.order) >= v.capacity {
		oldest := v.order[0]
		v.order = v.order[1:]
		delete(v.verified, oldest)
	}
	v.verified[key] = struct{}{}
	v.order = append(v.order, key)
}

// RecoverSigner returns the address that produced sig over digest. V may be
// 0/1 or 27/28.
func RecoverSigner(digest, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, ErrMalformed
	}
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := gethcrypto.SigToPub(digest, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return gethcrypto.PubkeyToAddress(*pub), nil
}
