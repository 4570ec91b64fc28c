// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package fhe

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/danielhkuo/astro-strike/ciphertext"
	"github.com/danielhkuo/astro-strike/models"
	"github.com/danielhkuo/astro-strike/oracle"
	"github.com/danielhkuo/astro-strike/proof"
	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrWeightRange    = errors.New("coprocessor: weight must be between 1 and 1000")
	ErrUnknownRequest = errors.New("coprocessor: unknown request")
	ErrWrongOwner     = errors.New("coprocessor: ciphertext not bound to participant")
)

// Local is an in-process coprocessor. It holds the BFV secret key and a
// signing key, and plays both the client SDK (EncryptWeight) and the
// decryption oracle. Intended for development and tests.
type Local struct {
	key    *PrivateKey
	signer *ecdsa.PrivateKey

	mu     sync.Mutex
	queue  []oracle.DecryptionRequest
	owners map[common.Hash]ownerBinding
	notify chan struct{}
}

type ownerBinding struct {
	poolID      string
	participant common.Address
}

// NewLocal builds a coprocessor from existing keys.
func NewLocal(key *PrivateKey, signer *ecdsa.PrivateKey) *Local {
	return &Local{
		key:    key,
		signer: signer,
		owners: make(map[common.Hash]ownerBinding),
		notify: make(chan struct{}, 1),
	}
}

// GenerateLocal creates a fresh BFV keypair and signing key.
func GenerateLocal() (*Local, error) {
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	signer, err := gethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate signer: %w", err)
	}
	return NewLocal(key, signer), nil
}

// Address is the signer address for proofs and callbacks.
func (l *Local) Address() common.Address {
	return gethcrypto.PubkeyToAddress(l.signer.PublicKey)
}

func (l *Local) PublicKey() *PublicKey {
	return l.key.PublicKey
}

func (l *Local) Evaluator() *Evaluator {
	return NewEvaluator(l.key.PublicKey)
}

// EncryptWeight encrypts weight for (poolID, participant) and attests the
// range and binding. Out-of-range weights are refused before encryption.
func (l *Local) EncryptWeight(poolID string, participant common.Address, weight uint64) (ciphertext.Ciphertext, []byte, error) {
	if weight < models.MinWeight || weight > models.MaxWeight {
		return nil, nil, ErrWeightRange
	}
	ct, err := l.key.Encrypt(weight)
	if err != nil {
		return nil, nil, err
	}
	sig, err := proof.Attest(l.signer, poolID, participant, ct)
	if err != nil {
		return nil, nil, err
	}

	l.mu.Lock()
	l.owners[gethcrypto.Keccak256Hash(ct)] = ownerBinding{poolID: poolID, participant: participant}
	l.mu.Unlock()

	return ct, sig, nil
}

// SubmitDecryption queues a request until Fulfil or Run answers it.
func (l *Local) SubmitDecryption(ctx context.Context, req oracle.DecryptionRequest) error {
	l.mu.Lock()
	l.queue = append(l.queue, req)
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the queued requests in submission order.
func (l *Local) Pending() []oracle.DecryptionRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]oracle.DecryptionRequest(nil), l.queue...)
}

// Fulfil decrypts the queued request and returns its signed callback.
func (l *Local) Fulfil(token string) (oracle.Callback, error) {
	l.mu.Lock()
	idx := -1
	for i, r := range l.queue {
		if r.Token == token {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return oracle.Callback{}, ErrUnknownRequest
	}
	req := l.queue[idx]
	l.queue = append(l.queue[:idx], l.queue[idx+1:]...)
	l.mu.Unlock()

	var sums [models.NumChoices]uint64
	for i, ct := range req.Ciphertexts {
		m, err := l.key.Decrypt(ct)
		if err != nil {
			return oracle.Callback{}, fmt.Errorf("failed to decrypt aggregate %d: %w", i, err)
		}
		sums[i] = m
	}

	sig, err := oracle.SignSettlement(l.signer, req.Token, req.PoolID, sums)
	if err != nil {
		return oracle.Callback{}, fmt.Errorf("failed to sign callback: %w", err)
	}
	return oracle.Callback{Token: req.Token, Sums: sums, Signature: sig}, nil
}

// Run answers queued requests until ctx is done, passing each callback to deliver.
func (l *Local) Run(ctx context.Context, deliver func(context.Context, oracle.Callback) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.notify:
		}

		for _, req := range l.Pending() {
			cb, err := l.Fulfil(req.Token)
			if err != nil {
				slog.Error("coprocessor failed to fulfil request", "token", req.Token, "error", err)
				continue
			}
			if err := deliver(ctx, cb); err != nil {
				slog.Error("coprocessor callback rejected", "token", req.Token, "error", err)
			}
		}
	}
}

// DecryptWeight reveals a weight only to the participant it was encrypted for.
func (l *Local) DecryptWeight(ctx context.Context, req oracle.WeightRequest) (oracle.WeightResponse, error) {
	l.mu.Lock()
	owner, ok := l.owners[gethcrypto.Keccak256Hash(req.Ciphertext)]
	l.mu.Unlock()
	if !ok || owner.poolID != req.PoolID || owner.participant != req.Participant {
		return oracle.WeightResponse{}, ErrWrongOwner
	}

	m, err := l.key.Decrypt(req.Ciphertext)
	if err != nil {
		return oracle.WeightResponse{}, err
	}
	if m < models.MinWeight || m > models.MaxWeight {
		return oracle.WeightResponse{}, ErrWeightRange
	}

	sig, err := oracle.SignWeight(l.signer, req.PoolID, req.Participant, m)
	if err != nil {
		return oracle.WeightResponse{}, err
	}
	return oracle.WeightResponse{Weight: m, Signature: sig}, nil
}
