// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/hashicorp/golang-lru/simplelru"
)

// DefaultGuardCapacity bounds how many accepted requests a Guard remembers.
const DefaultGuardCapacity = 1 << 16

var (
	ErrReplayed = errors.New("request already accepted")
	ErrBusy     = errors.New("too many recent requests")
)

// Guard authenticates requests and rejects any it has already accepted.
// A request is remembered until its timestamp leaves the MaxSkew window,
// after which Authenticate rejects it as stale anyway.
type Guard struct {
	mu   sync.Mutex
	seen *simplelru.LRU
	size int
}

func NewGuard(capacity int) *Guard {
	if capacity <= 0 {
		capacity = DefaultGuardCapacity
	}
	// Only errors on a non-positive size.
	seen, _ := simplelru.NewLRU(capacity, nil)
	return &Guard{seen: seen, size: capacity}
}

// Authenticate is the package Authenticate plus replay rejection. Requests
// are keyed by caller and signed digest, so re-encoding the signature does
// not make a replay look new.
func (g *Guard) Authenticate(r *http.Request, now time.Time) (common.Address, error) {
	caller, ts, digest, err := verify(r, now)
	if err != nil {
		return common.Address{}, err
	}
	key := gethcrypto.Keccak256Hash(caller.Bytes(), digest)
	if err := g.remember(key, time.Unix(ts, 0).Add(MaxSkew), now); err != nil {
		return common.Address{}, fmt.Errorf("%w from %s", err, caller.Hex())
	}
	return caller, nil
}

func (g *Guard) remember(key common.Hash, expires, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if v, ok := g.seen.Peek(key); ok && !now.After(v.(time.Time)) {
		return ErrReplayed
	}

	// Insertion order is close to expiry order; drop what has expired.
	for g.seen.Len() > 0 {
		_, v, _ := g.seen.GetOldest()
		if !now.After(v.(time.Time)) {
			break
		}
		g.seen.RemoveOldest()
	}
	if g.seen.Len() >= g.size {
		return ErrBusy
	}
	g.seen.Add(key, expires)
	return nil
}

// Len reports how many requests are remembered.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seen.Len()
}
