// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package payout

import (
	"errors"

	"github.com/danielhkuo/astro-strike/models"
	"github.com/holiman/uint256"
)

var (
	ErrOverflow   = errors.New("payout: arithmetic overflow")
	ErrZeroTotal  = errors.New("payout: winning aggregate is zero")
	ErrWeightSize = errors.New("payout: weight exceeds winning aggregate")
	ErrFeeBps     = errors.New("payout: fee above 100%")
)

// BpsDenominator is 100% in basis points.
const BpsDenominator = 10_000

// Winner returns the choice with the strictly largest sum. Push is true
// when two or more choices share the maximum.
func Winner(sums [models.NumChoices]uint64) (winner models.Choice, push bool) {
	best := models.Choice(0)
	tied := false
	for c := models.Choice(1); c < models.NumChoices; c++ {
		switch {
		case sums[c] > sums[best]:
			best = c
			tied = false
		case sums[c] == sums[best]:
			tied = true
		}
	}
	return best, tied
}

// Fee returns floor(prize * bps / 10000).
func Fee(prize *uint256.Int, bps uint16) (*uint256.Int, error) {
	if bps > BpsDenominator {
		return nil, ErrFeeBps
	}
	fee, overflow := new(uint256.Int).MulDivOverflow(prize, uint256.NewInt(uint64(bps)), uint256.NewInt(BpsDenominator))
	if overflow {
		return nil, ErrOverflow
	}
	return fee, nil
}

// Split separates the protocol fee from the prize, returning the amount
// available to winners and the fee.
func Split(prize *uint256.Int, bps uint16) (distributable, fee *uint256.Int, err error) {
	fee, err = Fee(prize, bps)
	if err != nil {
		return nil, nil, err
	}
	return new(uint256.Int).Sub(prize, fee), fee, nil
}

// Share returns floor(distributable * weight / total).
func Share(distributable *uint256.Int, weight, total uint64) (*uint256.Int, error) {
	if total == 0 {
		return nil, ErrZeroTotal
	}
	if weight > total {
		return nil, ErrWeightSize
	}
	share, overflow := new(uint256.Int).MulDivOverflow(distributable, uint256.NewInt(weight), uint256.NewInt(total))
	if overflow {
		return nil, ErrOverflow
	}
	return share, nil
}

// Remainder returns distributable - paid, failing if paid exceeds it.
func Remainder(distributable, paid *uint256.Int) (*uint256.Int, error) {
	rem, underflow := new(uint256.Int).SubOverflow(distributable, paid)
	if underflow {
		return nil, ErrOverflow
	}
	return rem, nil
}

// Total returns fee * count, failing on overflow.
func Total(fee *uint256.Int, count uint64) (*uint256.Int, error) {
	total, overflow := new(uint256.Int).MulOverflow(fee, uint256.NewInt(count))
	if overflow {
		return nil, ErrOverflow
	}
	return total, nil
}
