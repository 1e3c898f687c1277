package dex

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"liquidityTrade/internal/model"
)

var (
	wethAddr    = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdcAddr    = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	factoryAddr = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	quoterAddr  = common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e")
	routerAddr  = common.HexToAddress("0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45")
	pool500     = common.HexToAddress("0x0000000000000000000000000000000000000500")
	pool3000    = common.HexToAddress("0x0000000000000000000000000000000000003000")

	eth  = model.NativeToken("ETH", 18)
	usdc = model.Token{Address: usdcAddr, Symbol: "USDC", Decimals: 6}
	weth = model.Token{Address: wethAddr, Symbol: "WETH", Decimals: 18}
)

func newSwapFixture(t *testing.T) (*fakeChain, *SwapProvider) {
	t.Helper()
	chain := newFakeChain()
	chain.on(factoryAddr, v3FactoryABI, "getPool", func(args []interface{}) ([]interface{}, error) {
		if args[0].(common.Address) != wethAddr && args[1].(common.Address) != wethAddr {
			return []interface{}{common.Address{}}, nil
		}
		switch args[2].(*big.Int).Uint64() {
		case 500:
			return []interface{}{pool500}, nil
		case 3000:
			return []interface{}{pool3000}, nil
		default:
			return []interface{}{common.Address{}}, nil
		}
	})
	chain.on(quoterAddr, quoterV2ABI, "quoteExactInputSingle", func(args []interface{}) ([]interface{}, error) {
		params := *abi.ConvertType(args[0], new(quoteExactInputSingleParams)).(*quoteExactInputSingleParams)
		out := new(big.Int).Mul(big.NewInt(1980), pow10(6))
		if params.Fee.Uint64() == 3000 {
			out = new(big.Int).Mul(big.NewInt(1990), pow10(6))
		}
		return []interface{}{out, big.NewInt(1), uint32(1), big.NewInt(100000)}, nil
	})
	chain.on(quoterAddr, quoterV2ABI, "quoteExactOutputSingle", func(args []interface{}) ([]interface{}, error) {
		in := new(big.Int).Div(pow10(18), big.NewInt(2000))
		return []interface{}{in, big.NewInt(1), uint32(1), big.NewInt(100000)}, nil
	})

	// USDC sorts before WETH: 1 USDC = 0.0005 WETH is 2000 USDC per ETH.
	sqrt, err := priceToSqrtRatio(decimal.RequireFromString("0.0005"), 6, 18)
	if err != nil {
		t.Fatalf("sqrt price: %v", err)
	}
	chain.on(pool3000, v3PoolABI, "slot0", returns(slot0Values(sqrt.ToBig(), 0)...))

	provider, err := NewSwapProvider(chain, SwapConfig{
		Factory: factoryAddr,
		Quoter:  quoterAddr,
		Router:  routerAddr,
		Wrapped: wethAddr,
	}, nil)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	provider.now = func() time.Time { return time.Unix(1700000000, 0) }
	return chain, provider
}

func TestSwapQuotePicksBestTier(t *testing.T) {
	_, provider := newSwapFixture(t)

	quote, err := provider.Quote(context.Background(), model.QuoteRequest{
		TokenIn:   eth,
		TokenOut:  usdc,
		Amount:    decimal.NewFromInt(1),
		Direction: model.ExactIn,
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.Fee != 3000 {
		t.Fatalf("expected fee 3000, got %d", quote.Fee)
	}
	if !quote.AmountOut.Equal(decimal.NewFromInt(1990)) {
		t.Fatalf("unexpected amount out %s", quote.AmountOut)
	}
	if !quote.ExecutionPrice.Equal(decimal.NewFromInt(1990)) {
		t.Fatalf("unexpected execution price %s", quote.ExecutionPrice)
	}
	if quote.PriceImpact == nil {
		t.Fatalf("expected price impact")
	}
	if quote.PriceImpact.LessThan(decimal.RequireFromString("0.49")) || quote.PriceImpact.GreaterThan(decimal.RequireFromString("0.51")) {
		t.Fatalf("unexpected price impact %s", quote.PriceImpact)
	}
	if quote.ImpactLevel() != model.ImpactNegligible {
		t.Fatalf("unexpected impact level %s", quote.ImpactLevel())
	}
}

func TestSwapQuoteExactOut(t *testing.T) {
	_, provider := newSwapFixture(t)

	quote, err := provider.Quote(context.Background(), model.QuoteRequest{
		TokenIn:   eth,
		TokenOut:  usdc,
		Amount:    decimal.NewFromInt(1),
		Direction: model.ExactOut,
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !quote.AmountOut.Equal(decimal.NewFromInt(1)) || !quote.AmountIn.Equal(decimal.RequireFromString("0.0005")) {
		t.Fatalf("unexpected amounts in=%s out=%s", quote.AmountIn, quote.AmountOut)
	}
}

func TestSwapQuoteNoPool(t *testing.T) {
	_, provider := newSwapFixture(t)
	other := model.Token{Address: common.HexToAddress("0x9999999999999999999999999999999999999999"), Decimals: 18}

	_, err := provider.Quote(context.Background(), model.QuoteRequest{
		TokenIn:   other,
		TokenOut:  usdc,
		Amount:    decimal.NewFromInt(1),
		Direction: model.ExactIn,
	})
	if !errors.Is(err, model.ErrTradeNotFound) {
		t.Fatalf("expected trade not found, got %v", err)
	}
}

func TestSwapQuoteWrapPairNotFound(t *testing.T) {
	chain, provider := newSwapFixture(t)

	_, err := provider.Quote(context.Background(), model.QuoteRequest{
		TokenIn:   eth,
		TokenOut:  weth,
		Amount:    decimal.NewFromInt(1),
		Direction: model.ExactIn,
	})
	if !errors.Is(err, model.ErrTradeNotFound) {
		t.Fatalf("expected trade not found, got %v", err)
	}
	if chain.count("quoteExactInputSingle") != 0 {
		t.Fatalf("wrap pair should not reach the quoter")
	}
}

func TestSwapPoolLookupIsCached(t *testing.T) {
	chain, provider := newSwapFixture(t)
	req := model.QuoteRequest{TokenIn: eth, TokenOut: usdc, Amount: decimal.NewFromInt(1), Direction: model.ExactIn}

	for i := 0; i < 3; i++ {
		if _, err := provider.Quote(context.Background(), req); err != nil {
			t.Fatalf("quote: %v", err)
		}
	}
	if got := chain.count("getPool"); got != len(DefaultFeeTiers) {
		t.Fatalf("expected %d getPool calls, got %d", len(DefaultFeeTiers), got)
	}
}

func decodeMulticall(t *testing.T, data []byte) [][]byte {
	t.Helper()
	routerABI, err := swapRouterABI.get()
	if err != nil {
		t.Fatalf("router abi: %v", err)
	}
	method, err := routerABI.MethodById(data[:4])
	if err != nil || method.Name != "multicall" {
		t.Fatalf("expected multicall, got %v %v", method, err)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		t.Fatalf("unpack multicall: %v", err)
	}
	if args[0].(*big.Int).Int64() != 1700000000+1200 {
		t.Fatalf("unexpected deadline %s", args[0])
	}
	return args[1].([][]byte)
}

func TestSwapBuildExactInNative(t *testing.T) {
	_, provider := newSwapFixture(t)
	recipient := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	quote := model.Quote{
		TokenIn:   eth,
		TokenOut:  usdc,
		Direction: model.ExactIn,
		AmountIn:  decimal.NewFromInt(1),
		AmountOut: decimal.NewFromInt(1990),
		Fee:       3000,
	}
	payload, err := provider.BuildTransaction(context.Background(), quote, model.TradeOptions{
		Slippage:  decimal.RequireFromString("0.5"),
		Deadline:  20 * time.Minute,
		Recipient: &recipient,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if payload.To != routerAddr {
		t.Fatalf("unexpected target %s", payload.To.Hex())
	}
	if payload.Value.Cmp(pow10(18)) != 0 {
		t.Fatalf("unexpected value %s", payload.Value)
	}

	calls := decodeMulticall(t, payload.Data)
	if len(calls) != 1 {
		t.Fatalf("expected one call, got %d", len(calls))
	}
	routerABI, _ := swapRouterABI.get()
	method, err := routerABI.MethodById(calls[0][:4])
	if err != nil || method.Name != "exactInputSingle" {
		t.Fatalf("expected exactInputSingle, got %v %v", method, err)
	}
	args, err := method.Inputs.Unpack(calls[0][4:])
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	params := *abi.ConvertType(args[0], new(exactInputSingleParams)).(*exactInputSingleParams)
	if params.TokenIn != wethAddr || params.TokenOut != usdcAddr || params.Recipient != recipient {
		t.Fatalf("unexpected params %+v", params)
	}
	if params.AmountOutMinimum.Cmp(big.NewInt(1980050000)) != 0 {
		t.Fatalf("unexpected minimum out %s", params.AmountOutMinimum)
	}
}

func TestSwapBuildExactOutToNative(t *testing.T) {
	_, provider := newSwapFixture(t)
	recipient := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	quote := model.Quote{
		TokenIn:   usdc,
		TokenOut:  eth,
		Direction: model.ExactOut,
		AmountIn:  decimal.NewFromInt(2000),
		AmountOut: decimal.NewFromInt(1),
		Fee:       500,
	}
	payload, err := provider.BuildTransaction(context.Background(), quote, model.TradeOptions{
		Slippage:  decimal.NewFromInt(1),
		Deadline:  20 * time.Minute,
		Recipient: &recipient,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if payload.Value.Sign() != 0 {
		t.Fatalf("erc20 input should not carry value")
	}

	calls := decodeMulticall(t, payload.Data)
	if len(calls) != 2 {
		t.Fatalf("expected swap and unwrap, got %d calls", len(calls))
	}
	routerABI, _ := swapRouterABI.get()
	method, _ := routerABI.MethodById(calls[0][:4])
	args, err := method.Inputs.Unpack(calls[0][4:])
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	params := *abi.ConvertType(args[0], new(exactOutputSingleParams)).(*exactOutputSingleParams)
	if params.Recipient != routerSelf {
		t.Fatalf("native output should be held by the router, got %s", params.Recipient.Hex())
	}
	if params.AmountInMaximum.Cmp(big.NewInt(2020000000)) != 0 {
		t.Fatalf("unexpected maximum in %s", params.AmountInMaximum)
	}
	unwrap, _ := routerABI.MethodById(calls[1][:4])
	if unwrap.Name != "unwrapWETH9" {
		t.Fatalf("expected unwrapWETH9, got %s", unwrap.Name)
	}
}

func TestSwapBuildRequiresRecipient(t *testing.T) {
	_, provider := newSwapFixture(t)
	_, err := provider.BuildTransaction(context.Background(), model.Quote{TokenIn: eth, TokenOut: usdc}, model.DefaultTradeOptions())
	if err == nil {
		t.Fatalf("expected error without recipient")
	}
}
