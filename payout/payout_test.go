// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package payout

import (
	"errors"
	"testing"

	"github.com/danielhkuo/astro-strike/models"
	"github.com/holiman/uint256"
)

func TestWinner(t *testing.T) {
	tests := []struct {
		name       string
		sums       [models.NumChoices]uint64
		wantWinner models.Choice
		wantPush   bool
	}{
		{"pulse strictly largest", [3]uint64{100, 150, 50}, models.ChoicePulse, false},
		{"nova strictly largest", [3]uint64{100, 50, 0}, models.ChoiceNova, false},
		{"flux strictly largest", [3]uint64{1, 2, 3}, models.ChoiceFlux, false},
		{"two-way tie at max", [3]uint64{100, 100, 50}, 0, true},
		{"tie at max after lower", [3]uint64{10, 70, 70}, 0, true},
		{"three-way tie", [3]uint64{5, 5, 5}, 0, true},
		{"tie below max is not push", [3]uint64{50, 50, 100}, models.ChoiceFlux, false},
		{"all zero", [3]uint64{0, 0, 0}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			winner, push := Winner(tt.sums)
			if push != tt.wantPush {
				t.Fatalf("Winner(%v) push = %v, want %v", tt.sums, push, tt.wantPush)
			}
			if !push && winner != tt.wantWinner {
				t.Errorf("Winner(%v) = %s, want %s", tt.sums, winner, tt.wantWinner)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		prize    uint64
		bps      uint16
		wantDist uint64
		wantFee  uint64
	}{
		{"no fee", 3000, 0, 3000, 0},
		{"5 percent", 3000, 500, 2850, 150},
		{"20 percent", 1000, 2000, 800, 200},
		{"fee truncates", 999, 1, 999, 0},
		{"empty prize", 0, 2000, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dist, fee, err := Split(uint256.NewInt(tt.prize), tt.bps)
			if err != nil {
				t.Fatal(err)
			}
			if dist.Uint64() != tt.wantDist || fee.Uint64() != tt.wantFee {
				t.Errorf("Split(%d, %d) = (%s, %s), want (%d, %d)",
					tt.prize, tt.bps, dist.Dec(), fee.Dec(), tt.wantDist, tt.wantFee)
			}
			if new(uint256.Int).Add(dist, fee).Uint64() != tt.prize {
				t.Error("distributable + fee must equal prize")
			}
		})
	}

	if _, _, err := Split(uint256.NewInt(1), 10_001); !errors.Is(err, ErrFeeBps) {
		t.Errorf("Split above 100%% error = %v, want ErrFeeBps", err)
	}
}

func TestShare(t *testing.T) {
	// 3 entrants at 1000: Nova weights 40 and 60, Pulse 50.
	dist := uint256.NewInt(3000)
	a, err := Share(dist, 40, 100)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Share(dist, 60, 100)
	if err != nil {
		t.Fatal(err)
	}
	if a.Uint64() != 1200 || b.Uint64() != 1800 {
		t.Errorf("shares = (%s, %s), want (1200, 1800)", a.Dec(), b.Dec())
	}

	t.Run("truncation leaves remainder", func(t *testing.T) {
		dist := uint256.NewInt(1000)
		var paid uint64
		for _, w := range []uint64{1, 1, 1} {
			s, err := Share(dist, w, 3)
			if err != nil {
				t.Fatal(err)
			}
			paid += s.Uint64()
		}
		if paid != 999 {
			t.Errorf("paid %d, want 999", paid)
		}
		rem, err := Remainder(dist, uint256.NewInt(paid))
		if err != nil || rem.Uint64() != 1 {
			t.Errorf("Remainder = %v, %v; want 1", rem, err)
		}
	})

	t.Run("large amounts do not overflow", func(t *testing.T) {
		huge := new(uint256.Int).Lsh(uint256.NewInt(1), 250)
		s, err := Share(huge, 1000, 1000)
		if err != nil {
			t.Fatal(err)
		}
		if !s.Eq(huge) {
			t.Errorf("full-weight share = %s, want %s", s.Dec(), huge.Dec())
		}
	})

	t.Run("errors", func(t *testing.T) {
		if _, err := Share(dist, 1, 0); !errors.Is(err, ErrZeroTotal) {
			t.Errorf("zero total error = %v", err)
		}
		if _, err := Share(dist, 101, 100); !errors.Is(err, ErrWeightSize) {
			t.Errorf("oversized weight error = %v", err)
		}
	})
}

func TestRemainder_Underflow(t *testing.T) {
	if _, err := Remainder(uint256.NewInt(1), uint256.NewInt(2)); !errors.Is(err, ErrOverflow) {
		t.Errorf("Remainder underflow error = %v, want ErrOverflow", err)
	}
}

func TestTotal(t *testing.T) {
	got, err := Total(uint256.NewInt(1000), 3)
	if err != nil || got.Uint64() != 3000 {
		t.Errorf("Total(1000, 3) = %v, %v", got, err)
	}

	ceiling := new(uint256.Int).SetAllOne()
	if _, err := Total(ceiling, 2); !errors.Is(err, ErrOverflow) {
		t.Errorf("Total overflow error = %v", err)
	}
}
