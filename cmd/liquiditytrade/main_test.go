package main

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"liquidityTrade/internal/dex"
	"liquidityTrade/internal/model"
)

const usdcHex = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"

var wethAddr = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")

func TestResolveTokenSpecs(t *testing.T) {
	r := newTokenResolver(nil, "ETH", zap.NewNop())
	ctx := context.Background()

	eth, err := r.resolve(ctx, "eth")
	require.NoError(t, err)
	require.True(t, eth.Native)
	require.Equal(t, uint8(18), eth.Decimals)

	usdc, err := r.resolve(ctx, usdcHex+":6")
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress(usdcHex), usdc.Address)
	require.Equal(t, uint8(6), usdc.Decimals)

	_, err = r.resolve(ctx, usdcHex)
	require.ErrorContains(t, err, "needs decimals")

	_, err = r.resolve(ctx, usdcHex+":x")
	require.Error(t, err)

	_, err = r.resolve(ctx, "0x1234")
	require.Error(t, err)

	_, err = r.resolve(ctx, "")
	require.Error(t, err)
}

func TestTickModeFromFlags(t *testing.T) {
	cases := []struct {
		name    string
		flags   map[string]string
		want    model.TickMode
		wantErr bool
	}{
		{name: "default full", want: model.FullRangeMode()},
		{name: "multiplier", flags: map[string]string{"multiplier": "1.5"}, want: model.MultiplierMode(decimal.RequireFromString("1.5"))},
		{name: "lower only", flags: map[string]string{"lower": "-600"}, want: model.RangeMode(model.Tick(-600), nil)},
		{name: "both bounds", flags: map[string]string{"lower": "-600", "upper": "600"}, want: model.RangeMode(model.Tick(-600), model.Tick(600))},
		{name: "multiplier too small", flags: map[string]string{"multiplier": "1"}, wantErr: true},
		{name: "multiplier with bounds", flags: map[string]string{"multiplier": "2", "upper": "60"}, wantErr: true},
		{name: "full with bounds", flags: map[string]string{"full-range": "true", "lower": "0"}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := newLiquidityCmd()
			for k, v := range tc.flags {
				require.NoError(t, cmd.Flags().Set(k, v))
			}
			got, err := tickModeFromFlags(cmd)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.True(t, tc.want.Equal(got), "got %+v", got)
		})
	}
}

func TestConvertTickInvertsForSortedPool(t *testing.T) {
	m := dex.TickMath{Wrapped: wethAddr, Spacing: 60}
	eth := model.NativeToken("ETH", 18)
	usdc := model.Token{Address: common.HexToAddress(usdcHex), Symbol: "USDC", Decimals: 6}

	res, err := convertTick(m, eth, usdc, "2000", nil)
	require.NoError(t, err)
	require.Equal(t, "USDC", res.Token0)
	require.InDelta(t, 200311, res.Tick, 1)
	require.Zero(t, res.UsableTick%60)

	price, err := decimal.NewFromString(res.Price)
	require.NoError(t, err)
	f, _ := price.Float64()
	require.InEpsilon(t, 2000, f, 0.01)

	back, err := convertTick(m, eth, usdc, "", &res.Tick)
	require.NoError(t, err)
	f, _ = decimal.RequireFromString(back.Price).Float64()
	require.InEpsilon(t, 2000, f, 0.001)
}

func TestConvertTickRejectsBadInput(t *testing.T) {
	m := dex.TickMath{Wrapped: wethAddr, Spacing: 60}
	eth := model.NativeToken("ETH", 18)
	usdc := model.Token{Address: common.HexToAddress(usdcHex), Decimals: 6}

	_, err := convertTick(m, eth, usdc, "", nil)
	require.Error(t, err)
	_, err = convertTick(m, eth, usdc, "1", model.Tick(0))
	require.Error(t, err)
	_, err = convertTick(m, eth, usdc, "-3", nil)
	require.Error(t, err)
	_, err = convertTick(m, eth, usdc, "", model.Tick(model.MaxTick+1))
	require.Error(t, err)
}

func TestApprovalPayload(t *testing.T) {
	allowances := dex.NewERC20Allowances(nil, common.Address{})
	usdc := model.Token{Address: common.HexToAddress(usdcHex), Symbol: "USDC", Decimals: 6}
	spender := common.HexToAddress("0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45")

	p, err := approvalPayload(allowances, usdc, spender, "12.5", false)
	require.NoError(t, err)
	require.Equal(t, usdc.Address, p.To)
	require.Len(t, p.Data, 4+32+32)

	_, err = approvalPayload(allowances, usdc, spender, "1", true)
	require.Error(t, err)
	_, err = approvalPayload(allowances, usdc, spender, "0", false)
	require.Error(t, err)
	_, err = approvalPayload(allowances, model.NativeToken("ETH", 18), spender, "1", false)
	require.Error(t, err)

	revoke, err := approvalPayload(allowances, usdc, spender, "", true)
	require.NoError(t, err)
	require.Equal(t, p.Data[:4], revoke.Data[:4])
}
