// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Choice is one of the three mutually exclusive outcomes of a pool.
type Choice uint8

const (
	ChoiceNova Choice = iota
	ChoicePulse
	ChoiceFlux
)

// NumChoices is the number of outcomes every pool offers.
const NumChoices = 3

var choiceNames = [NumChoices]string{"Nova", "Pulse", "Flux"}

// Valid reports whether c is one of Nova, Pulse, Flux.
func (c Choice) Valid() bool {
	return c < NumChoices
}

func (c Choice) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Choice(%d)", uint8(c))
	}
	return choiceNames[c]
}

// Weight bounds for a participant's conviction weight.
const (
	MinWeight = 1
	MaxWeight = 1000
)

// MaxPlayers caps entries per pool so that every aggregate stays below the
// plaintext modulus of the homomorphic scheme.
const MaxPlayers = 65_000

// Pool phase constants. Locked is never stored; it is derived from the clock.
const (
	PhaseOpen      = "open"
	PhaseLocked    = "locked"
	PhaseSettled   = "settled"
	PhasePush      = "push"
	PhaseCancelled = "cancelled"
)

// Payout kinds and states
const (
	PayoutPrize    = "prize"
	PayoutRefund   = "refund"
	PayoutTreasury = "treasury"

	PayoutPending = "pending"
	PayoutPaid    = "paid"
)

// Domain types

type Pool struct {
	ID       string
	Creator  common.Address
	EntryFee *uint256.Int
	FeeBps   uint16

	CreatedAt time.Time
	LockTime  time.Time

	// PrizePool grows with every entry and shrinks with every payout.
	PrizePool *uint256.Int
	// Distributable is the prize available to winners, fixed at settlement.
	Distributable *uint256.Int

	Cancelled bool
	Settled   bool
	PushAll   bool

	// WinningChoice is nil unless the pool settled with a strict winner.
	WinningChoice *Choice

	PickCounts     [NumChoices]uint64
	PlayerCount    uint64
	ClaimedWinners uint64

	// PendingToken is the outstanding settlement request, empty when none.
	PendingToken string
}

// Phase returns the lifecycle phase of the pool at now.
func (p *Pool) Phase(now time.Time) string {
	switch {
	case p.Cancelled:
		return PhaseCancelled
	case p.Settled && p.PushAll:
		return PhasePush
	case p.Settled:
		return PhaseSettled
	case now.Before(p.LockTime):
		return PhaseOpen
	default:
		return PhaseLocked
	}
}

// IsOpen reports whether entries are accepted at now.
func (p *Pool) IsOpen(now time.Time) bool {
	return p.Phase(now) == PhaseOpen
}

// WinnerCount is the number of entrants on the winning choice, zero without a winner.
func (p *Pool) WinnerCount() uint64 {
	if p.WinningChoice == nil {
		return 0
	}
	return p.PickCounts[*p.WinningChoice]
}

// Clone returns a deep copy so callers can mutate without aliasing stored amounts.
func (p *Pool) Clone() *Pool {
	c := *p
	c.EntryFee = cloneAmount(p.EntryFee)
	c.PrizePool = cloneAmount(p.PrizePool)
	c.Distributable = cloneAmount(p.Distributable)
	if p.WinningChoice != nil {
		w := *p.WinningChoice
		c.WinningChoice = &w
	}
	return &c
}

func cloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

type Entry struct {
	PoolID      string
	Participant common.Address
	Exists      bool
	Claimed     bool
	Choice      Choice
	EnteredAt   time.Time
}

// SettlementRequest is an outstanding decryption of a pool's three aggregates.
type SettlementRequest struct {
	Token       string
	PoolID      string
	RequestedAt time.Time
}

type Payout struct {
	ID        string
	PoolID    string
	Recipient common.Address
	Kind      string
	Amount    *uint256.Int
	Status    string
	CreatedAt time.Time
}

// Events

const (
	EventPoolCreated       = "PoolCreated"
	EventEntryPlaced       = "EntryPlaced"
	EventPoolSettled       = "PoolSettled"
	EventPoolCancelled     = "PoolCancelled"
	EventPrizeClaimed      = "PrizeClaimed"
	EventRefundClaimed     = "RefundClaimed"
	EventSettlementPending = "SettlementRequested"
	EventTreasuryWithdrawn = "TreasuryWithdrawn"
)

type Event struct {
	ID      string
	Seq     int64
	Kind    string
	PoolID  string
	Account common.Address
	Choice  *Choice
	Amount  *uint256.Int
	Push    bool
	At      time.Time
}
