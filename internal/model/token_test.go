package model

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var (
	wrapped = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdc    = Token{Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Symbol: "USDC", Decimals: 6}
	weth    = Token{Address: wrapped, Symbol: "WETH", Decimals: 18}
	eth     = NativeToken("ETH", 18)
)

func TestTokenEqual(t *testing.T) {
	renamed := usdc
	renamed.Symbol = "USD Coin"
	renamed.Decimals = 18
	if !usdc.Equal(renamed) {
		t.Fatalf("metadata must not affect identity")
	}
	if eth.Equal(weth) || weth.Equal(eth) {
		t.Fatalf("native and wrapped are different coins")
	}
	if !eth.Equal(NativeToken("", 0)) {
		t.Fatalf("native tokens are equal regardless of metadata")
	}
	if usdc.Equal(weth) {
		t.Fatalf("different addresses must differ")
	}

	if !SameToken(nil, nil) || SameToken(&usdc, nil) || SameToken(nil, &usdc) {
		t.Fatalf("unexpected nil handling")
	}
	copyUSDC := usdc
	if !SameToken(&usdc, &copyUSDC) {
		t.Fatalf("equal values behind different pointers should match")
	}
}

func TestIsWrapPair(t *testing.T) {
	cases := []struct {
		name string
		a, b Token
		want bool
	}{
		{"native to wrapped", eth, weth, true},
		{"wrapped to native", weth, eth, true},
		{"native to other", eth, usdc, false},
		{"erc20 pair", weth, usdc, false},
		{"native to native", eth, eth, false},
	}
	for _, tc := range cases {
		if got := IsWrapPair(tc.a, tc.b, wrapped); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
	if IsWrapPair(eth, weth, common.Address{}) {
		t.Fatalf("no wrapped contract configured means no wrap pair")
	}
}

func TestProtocolOrdering(t *testing.T) {
	if eth.ProtocolAddress(wrapped) != wrapped || usdc.ProtocolAddress(wrapped) != usdc.Address {
		t.Fatalf("unexpected protocol addresses")
	}
	// 0xA0b8... sorts before 0xC02a..., so USDC is token0 against ETH.
	if !SortsBefore(usdc.ProtocolAddress(wrapped), eth.ProtocolAddress(wrapped)) {
		t.Fatalf("expected usdc before wrapped native")
	}
}

func TestTickModeValidRange(t *testing.T) {
	cases := []struct {
		name string
		mode TickMode
		want bool
	}{
		{"full", FullRangeMode(), true},
		{"multiplier", MultiplierMode(decimal.NewFromInt(2)), true},
		{"open range", RangeMode(Tick(10), nil), true},
		{"ordered", RangeMode(Tick(-60), Tick(60)), true},
		{"equal bounds", RangeMode(Tick(60), Tick(60)), false},
		{"crossed", RangeMode(Tick(60), Tick(-60)), false},
	}
	for _, tc := range cases {
		if got := tc.mode.ValidRange(); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestTickModeEqual(t *testing.T) {
	lower := Tick(-60)
	a := RangeMode(lower, Tick(60))
	*lower = 0
	if !a.Equal(RangeMode(Tick(-60), Tick(60))) {
		t.Fatalf("range mode should copy its bounds")
	}
	if a.Equal(RangeMode(Tick(-60), nil)) {
		t.Fatalf("a missing bound differs from a set one")
	}
	if !FullRangeMode().Equal(TickMode{Kind: TickModeFull, Lower: Tick(1)}) {
		t.Fatalf("full mode ignores bound fields")
	}
	if !MultiplierMode(decimal.RequireFromString("1.50")).Equal(MultiplierMode(decimal.RequireFromString("1.5"))) {
		t.Fatalf("multiplier compares by value")
	}
	if FullRangeMode().Equal(MultiplierMode(decimal.NewFromInt(2))) {
		t.Fatalf("different kinds are not equal")
	}
}
