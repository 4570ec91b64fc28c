// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
)

// Request types

type CreatePoolRequest struct {
	PoolID          string `json:"pool_id"`
	EntryFee        string `json:"entry_fee"`
	DurationSeconds uint64 `json:"duration_seconds"`
	FeeBps          uint16 `json:"fee_bps,omitempty"`
}

type EnterPoolRequest struct {
	Choice     uint8  `json:"choice"`
	Ciphertext string `json:"ciphertext"`
	Proof      string `json:"proof"`
	Payment    string `json:"payment"`
}

// SettlementCallbackRequest carries the oracle's decrypted sums for one request token.
type SettlementCallbackRequest struct {
	Sums      [NumChoices]uint64 `json:"sums"`
	Signature string             `json:"signature"`
}

type WithdrawTreasuryRequest struct {
	Amount string `json:"amount"`
}

// Response types

type CreatePoolResponse struct {
	PoolID   string    `json:"pool_id"`
	LockTime time.Time `json:"lock_time"`
}

type SettleResponse struct {
	Phase        string `json:"phase"`
	RequestToken string `json:"request_token,omitempty"`
}

type PayoutResponse struct {
	PayoutID string `json:"payout_id"`
	Amount   string `json:"amount"`
	Status   string `json:"status"`
}

type PoolListResponse struct {
	Pools []string `json:"pools"`
}

type PickCountsResponse struct {
	PickCounts [NumChoices]uint64 `json:"pick_counts"`
}

type PlayerCountResponse struct {
	PlayerCount uint64 `json:"player_count"`
}

type TotalsResponse struct {
	Totals [NumChoices]uint64 `json:"totals"`
}

type TreasuryResponse struct {
	Balance string `json:"balance"`
}

// PoolView is the public JSON shape of a pool.
type PoolView struct {
	PoolID         string             `json:"pool_id"`
	Creator        common.Address     `json:"creator"`
	EntryFee       string             `json:"entry_fee"`
	FeeBps         uint16             `json:"fee_bps"`
	LockTime       time.Time          `json:"lock_time"`
	LocksIn        string             `json:"locks_in"`
	PrizePool      string             `json:"prize_pool"`
	Phase          string             `json:"phase"`
	Cancelled      bool               `json:"cancelled"`
	Settled        bool               `json:"settled"`
	PushAll        bool               `json:"push_all"`
	Pending        bool               `json:"settlement_pending"`
	WinningChoice  *string            `json:"winning_choice,omitempty"`
	WinnerCount    uint64             `json:"winner_count"`
	PickCounts     [NumChoices]uint64 `json:"pick_counts"`
	PlayerCount    uint64             `json:"player_count"`
	ClaimedWinners uint64             `json:"claimed_winners"`
}

// NewPoolView renders p as seen at now.
func NewPoolView(p *Pool, now time.Time) PoolView {
	v := PoolView{
		PoolID:         p.ID,
		Creator:        p.Creator,
		EntryFee:       p.EntryFee.Dec(),
		FeeBps:         p.FeeBps,
		LockTime:       p.LockTime,
		LocksIn:        humanize.RelTime(p.LockTime, now, "ago", "from now"),
		PrizePool:      p.PrizePool.Dec(),
		Phase:          p.Phase(now),
		Cancelled:      p.Cancelled,
		Settled:        p.Settled,
		PushAll:        p.PushAll,
		Pending:        p.PendingToken != "",
		WinnerCount:    p.WinnerCount(),
		PickCounts:     p.PickCounts,
		PlayerCount:    p.PlayerCount,
		ClaimedWinners: p.ClaimedWinners,
	}
	if p.WinningChoice != nil {
		name := p.WinningChoice.String()
		v.WinningChoice = &name
	}
	return v
}

type EntryView struct {
	PoolID      string         `json:"pool_id"`
	Participant common.Address `json:"participant"`
	Exists      bool           `json:"exists"`
	Claimed     bool           `json:"claimed"`
	Choice      string         `json:"choice"`
}

func NewEntryView(e *Entry) EntryView {
	return EntryView{
		PoolID:      e.PoolID,
		Participant: e.Participant,
		Exists:      e.Exists,
		Claimed:     e.Claimed,
		Choice:      e.Choice.String(),
	}
}

type EventView struct {
	Seq     int64          `json:"seq"`
	Kind    string         `json:"kind"`
	PoolID  string         `json:"pool_id"`
	Account common.Address `json:"account"`
	Choice  *string        `json:"choice,omitempty"`
	Amount  string         `json:"amount,omitempty"`
	Push    bool           `json:"push,omitempty"`
	At      time.Time      `json:"at"`
}

func NewEventView(e *Event) EventView {
	v := EventView{
		Seq:     e.Seq,
		Kind:    e.Kind,
		PoolID:  e.PoolID,
		Account: e.Account,
		Push:    e.Push,
		At:      e.At,
	}
	if e.Choice != nil {
		name := e.Choice.String()
		v.Choice = &name
	}
	if e.Amount != nil {
		v.Amount = e.Amount.Dec()
	}
	return v
}

type PendingSettlementView struct {
	Token       string    `json:"token"`
	PoolID      string    `json:"pool_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
