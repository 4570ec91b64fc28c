// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielhkuo/astro-strike/proof"
	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Request headers carrying the caller's identity
const (
	HeaderCaller    = "X-Caller"
	HeaderTimestamp = "X-Caller-Timestamp"
	HeaderSignature = "X-Caller-Signature"
)

// MaxSkew is how far a request timestamp may drift from the server clock.
const MaxSkew = 5 * time.Minute

var (
	ErrMissingHeaders = errors.New("missing caller headers")
	ErrBadCaller      = errors.New("invalid caller address")
	ErrBadTimestamp   = errors.New("invalid caller timestamp")
	ErrStale          = errors.New("request timestamp outside allowed window")
	ErrBadSignature   = errors.New("invalid caller signature")
)

// Message is the text a caller signs: "METHOD PATH TIMESTAMP SHA256(body)".
func Message(method, path string, timestamp int64, body []byte) string {
	sum := sha256.Sum256(body)
	return fmt.Sprintf("%s %s %d %s", method, path, timestamp, hex.EncodeToString(sum[:]))
}

// TextHash is the EIP-191 personal-sign digest of msg.
func TextHash(msg string) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(msg))
	return gethcrypto.Keccak256([]byte(prefix), []byte(msg))
}

// Sign returns the 0x-hex signature a caller sends in HeaderSignature.
func Sign(key *ecdsa.PrivateKey, method, path string, timestamp int64, body []byte) (string, error) {
	sig, err := gethcrypto.Sign(TextHash(Message(method, path, timestamp, body)), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign request: %w", err)
	}
	// Wallets emit V as 27/28
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

// SignRequest sets the caller headers on r. The body must already be set.
func SignRequest(r *http.Request, key *ecdsa.PrivateKey, now time.Time) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	ts := now.Unix()
	sig, err := Sign(key, r.Method, r.URL.Path, ts, body)
	if err != nil {
		return err
	}
	r.Header.Set(HeaderCaller, gethcrypto.PubkeyToAddress(key.PublicKey).Hex())
	r.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	r.Header.Set(HeaderSignature, sig)
	return nil
}

// Authenticate verifies the caller headers of r against its body and
// returns the caller. The body is restored so handlers can still read it.
// It does not detect replays; servers use a Guard.
func Authenticate(r *http.Request, now time.Time) (common.Address, error) {
	caller, _, _, err := verify(r, now)
	return caller, err
}

func verify(r *http.Request, now time.Time) (common.Address, int64, []byte, error) {
	callerHex := r.Header.Get(HeaderCaller)
	tsStr := r.Header.Get(HeaderTimestamp)
	sigHex := r.Header.Get(HeaderSignature)
	if callerHex == "" || tsStr == "" || sigHex == "" {
		return common.Address{}, 0, nil, ErrMissingHeaders
	}
	if !common.IsHexAddress(callerHex) {
		return common.Address{}, 0, nil, ErrBadCaller
	}
	caller := common.HexToAddress(callerHex)

	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return common.Address{}, 0, nil, ErrBadTimestamp
	}
	if skew := now.Sub(time.Unix(ts, 0)); skew > MaxSkew || skew < -MaxSkew {
		return common.Address{}, 0, nil, ErrStale
	}

	sig, err := DecodeHex(sigHex)
	if err != nil {
		return common.Address{}, 0, nil, ErrBadSignature
	}

	body, err := readBody(r)
	if err != nil {
		return common.Address{}, 0, nil, err
	}

	digest := TextHash(Message(r.Method, r.URL.Path, ts, body))
	signer, err := proof.RecoverSigner(digest, sig)
	if err != nil || signer != caller {
		return common.Address{}, 0, nil, ErrBadSignature
	}
	return caller, ts, digest, nil
}

// DecodeHex decodes a hex string with or without a 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
