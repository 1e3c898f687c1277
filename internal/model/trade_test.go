package model

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

func TestImpactLevelThresholds(t *testing.T) {
	cases := []struct {
		impact string
		want   PriceImpactLevel
	}{
		{"0", ImpactNegligible},
		{"0.99", ImpactNegligible},
		{"1", ImpactNormal},
		{"4.99", ImpactNormal},
		{"5", ImpactWarning},
		{"19.99", ImpactWarning},
		{"20", ImpactForbidden},
		{"100", ImpactForbidden},
	}
	for _, tc := range cases {
		if got := ImpactLevelOf(decimal.RequireFromString(tc.impact)); got != tc.want {
			t.Fatalf("impact %s: expected %s, got %s", tc.impact, tc.want, got)
		}
	}
}

func TestImpactLevelIsMonotonic(t *testing.T) {
	step := decimal.RequireFromString("0.01")
	prev := ImpactNegligible
	for impact := decimal.Zero; impact.LessThanOrEqual(decimal.NewFromInt(30)); impact = impact.Add(step) {
		level := ImpactLevelOf(impact)
		if level < prev {
			t.Fatalf("level dropped from %s to %s at %s", prev, level, impact)
		}
		prev = level
	}
	if prev != ImpactForbidden {
		t.Fatalf("expected forbidden at the top of the scan, got %s", prev)
	}
}

func TestQuoteImpactLevelWithoutImpact(t *testing.T) {
	if got := (Quote{}).ImpactLevel(); got != ImpactNegligible {
		t.Fatalf("missing impact should be negligible, got %s", got)
	}
	impact := decimal.NewFromInt(25)
	if got := (Quote{PriceImpact: &impact}).ImpactLevel(); got != ImpactForbidden {
		t.Fatalf("expected forbidden, got %s", got)
	}
}

func TestTradeOptionsWithDefaults(t *testing.T) {
	recipient := common.HexToAddress("0x9999999999999999999999999999999999999999")
	opts := TradeOptions{Recipient: &recipient}.WithDefaults()
	if opts.Recipient == nil || *opts.Recipient != recipient {
		t.Fatalf("recipient dropped: %+v", opts)
	}
	if !opts.Slippage.Equal(decimal.NewFromFloat(0.5)) || opts.Deadline != 20*time.Minute {
		t.Fatalf("unexpected defaults: %+v", opts)
	}

	set := TradeOptions{Slippage: decimal.NewFromInt(2), Deadline: time.Minute}.WithDefaults()
	if !set.Slippage.Equal(decimal.NewFromInt(2)) || set.Deadline != time.Minute {
		t.Fatalf("explicit options overwritten: %+v", set)
	}
}

func TestTradeOptionsEqual(t *testing.T) {
	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x02")
	base := DefaultTradeOptions()

	withA := base
	withA.Recipient = &a
	aCopy := a
	sameA := base
	sameA.Recipient = &aCopy
	withB := base
	withB.Recipient = &b

	if !withA.Equal(sameA) {
		t.Fatalf("recipients with the same value should be equal")
	}
	if withA.Equal(withB) || withA.Equal(base) {
		t.Fatalf("different recipients should not be equal")
	}
}
