// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package oracle

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/danielhkuo/astro-strike/ciphertext"
	"github.com/danielhkuo/astro-strike/models"
	"github.com/danielhkuo/astro-strike/proof"
	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

var (
	ErrBadSignature  = errors.New("oracle: callback signature invalid")
	ErrTokenMismatch = errors.New("oracle: callback token does not match request")
	ErrWeightRange   = errors.New("oracle: revealed weight out of range")
)

// DecryptionRequest asks the coprocessor to decrypt a pool's three aggregates.
type DecryptionRequest struct {
	Token       string                                   `json:"token"`
	PoolID      string                                   `json:"pool_id"`
	Ciphertexts [models.NumChoices]ciphertext.Ciphertext `json:"ciphertexts"`
}

// Callback is the coprocessor's answer to a DecryptionRequest.
type Callback struct {
	Token     string
	Sums      [models.NumChoices]uint64
	Signature []byte
}

// WeightRequest asks for one participant's own weight.
type WeightRequest struct {
	PoolID      string                `json:"pool_id"`
	Participant common.Address        `json:"participant"`
	Ciphertext  ciphertext.Ciphertext `json:"ciphertext"`
}

type WeightResponse struct {
	Weight    uint64 `json:"weight"`
	Signature []byte `json:"signature"`
}

// Coprocessor is the external decryption service.
type Coprocessor interface {
	// SubmitDecryption queues req. The answer arrives later as a Callback.
	SubmitDecryption(ctx context.Context, req DecryptionRequest) error
	// DecryptWeight reveals a single weight to the participant it belongs to.
	DecryptWeight(ctx context.Context, req WeightRequest) (WeightResponse, error)
}

// Adapter issues decryption requests and authenticates the answers.
type Adapter struct {
	coproc Coprocessor
	signer common.Address
}

func NewAdapter(coproc Coprocessor, signer common.Address) *Adapter {
	return &Adapter{coproc: coproc, signer: signer}
}

// NewRequest mints a request for the given aggregates without submitting it.
func (a *Adapter) NewRequest(poolID string, cts [models.NumChoices]ciphertext.Ciphertext) DecryptionRequest {
	return DecryptionRequest{
		Token:       uuid.NewString(),
		PoolID:      poolID,
		Ciphertexts: cts,
	}
}

// Submit hands req to the coprocessor.
func (a *Adapter) Submit(ctx context.Context, req DecryptionRequest) error {
	if err := a.coproc.SubmitDecryption(ctx, req); err != nil {
		return fmt.Errorf("failed to submit decryption request: %w", err)
	}
	return nil
}

// VerifySettlement authenticates cb as the answer to req.
func (a *Adapter) VerifySettlement(req models.SettlementRequest, cb Callback) error {
	if cb.Token != req.Token {
		return ErrTokenMismatch
	}
	signer, err := proof.RecoverSigner(SettlementDigest(req.Token, req.PoolID, cb.Sums), cb.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if signer != a.signer {
		return ErrBadSignature
	}
	return nil
}

// DecryptWeight reveals the participant's own weight and authenticates it.
func (a *Adapter) DecryptWeight(ctx context.Context, poolID string, participant common.Address, ct ciphertext.Ciphertext) (uint64, error) {
	resp, err := a.coproc.DecryptWeight(ctx, WeightRequest{
		PoolID:      poolID,
		Participant: participant,
		Ciphertext:  ct,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to decrypt weight: %w", err)
	}

	signer, err := proof.RecoverSigner(WeightDigest(poolID, participant, resp.Weight), resp.Signature)
	if err != nil || signer != a.signer {
		return 0, ErrBadSignature
	}
	if resp.Weight < models.MinWeight || resp.Weight > models.MaxWeight {
		return 0, ErrWeightRange
	}
	return resp.Weight, nil
}

// SettlementDigest is what the coprocessor signs when answering a request.
func SettlementDigest(token, poolID string, sums [models.NumChoices]uint64) []byte {
	buf := []byte("astrostrike.settlement.v1")
	buf = appendField(buf, []byte(token))
	buf = appendField(buf, []byte(poolID))
	for _, s := range sums {
		buf = binary.BigEndian.AppendUint64(buf, s)
	}
	return gethcrypto.Keccak256(buf)
}

// WeightDigest is what the coprocessor signs when revealing a single weight.
func WeightDigest(poolID string, participant common.Address, weight uint64) []byte {
	buf := []byte("astrostrike.weight.v1")
	buf = appendField(buf, []byte(poolID))
	buf = append(buf, participant.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, weight)
	return gethcrypto.Keccak256(buf)
}

func appendField(buf, b []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

// SignSettlement produces the callback signature for sums.
func SignSettlement(key *ecdsa.PrivateKey, token, poolID string, sums [models.NumChoices]uint64) ([]byte, error) {
	return gethcrypto.Sign(SettlementDigest(token, poolID, sums), key)
}

// SignWeight produces the signature for a single revealed weight.
func SignWeight(key *ecdsa.PrivateKey, poolID string, participant common.Address, weight uint64) ([]byte, error) {
	return gethcrypto.Sign(WeightDigest(poolID, participant, weight), key)
}
