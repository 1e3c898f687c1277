package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityTrade/internal/model"
)

// DefaultFeeTiers are tried in order; ties keep the earlier tier.
var DefaultFeeTiers = []uint32{500, 3000, 10000, 100}

// routerSelf tells SwapRouter02 to keep the output for a follow-up call in the same multicall.
var routerSelf = common.HexToAddress("0x0000000000000000000000000000000000000002")

const priceScale = 18

type SwapConfig struct {
	Factory  common.Address
	Quoter   common.Address
	Router   common.Address
	Wrapped  common.Address
	FeeTiers []uint32
	Spacing  int32

	// PoolCacheSize bounds the factory lookup cache; zero uses the default.
	PoolCacheSize int
}

// SwapProvider quotes single-pool swaps through QuoterV2 and builds SwapRouter02 calls.
type SwapProvider struct {
	TickMath

	caller Caller
	cfg    SwapConfig
	pools  *PoolLocator
	logger *zap.Logger
	now    func() time.Time
}

func NewSwapProvider(caller Caller, cfg SwapConfig, logger *zap.Logger) (*SwapProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.FeeTiers) == 0 {
		cfg.FeeTiers = DefaultFeeTiers
	}
	pools, err := NewPoolLocator(caller, cfg.Factory, cfg.PoolCacheSize)
	if err != nil {
		return nil, err
	}
	return &SwapProvider{
		TickMath: TickMath{Wrapped: cfg.Wrapped, Spacing: cfg.Spacing},
		caller:   caller,
		cfg:      cfg,
		pools:    pools,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (p *SwapProvider) Name() string { return "uniswap-v3-swap" }

type quoteExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

type quoteExactOutputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Amount            *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

type tierQuote struct {
	fee    uint32
	pool   common.Address
	amount *big.Int
}

// Quote picks the best fee tier for the request.
func (p *SwapProvider) Quote(ctx context.Context, req model.QuoteRequest) (model.Quote, error) {
	if req.TokenIn.Equal(req.TokenOut) || model.IsWrapPair(req.TokenIn, req.TokenOut, p.cfg.Wrapped) {
		return model.Quote{}, model.ErrTradeNotFound
	}

	quoterABI, err := quoterV2ABI.get()
	if err != nil {
		return model.Quote{}, fmt.Errorf("parse quoter abi: %w", err)
	}

	tokenIn := req.TokenIn.ProtocolAddress(p.cfg.Wrapped)
	tokenOut := req.TokenOut.ProtocolAddress(p.cfg.Wrapped)
	exactIn := req.Direction == model.ExactIn
	amount := ToBaseUnits(req.Amount, req.TokenOut.Decimals)
	if exactIn {
		amount = ToBaseUnits(req.Amount, req.TokenIn.Decimals)
	}
	if amount.Sign() <= 0 {
		return model.Quote{}, fmt.Errorf("amount rounds to zero")
	}

	var (
		best    *tierQuote
		pools   int
		lastErr error
	)
	for _, fee := range p.cfg.FeeTiers {
		pool, err := p.pools.Pool(ctx, tokenIn, tokenOut, fee)
		if err != nil {
			lastErr = err
			continue
		}
		if pool == (common.Address{}) {
			continue
		}
		pools++

		var values []interface{}
		if exactIn {
			values, err = callMethod(ctx, p.caller, p.cfg.Quoter, quoterABI, "quoteExactInputSingle", quoteExactInputSingleParams{
				TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: amount, Fee: feeArg(fee), SqrtPriceLimitX96: new(big.Int),
			})
		} else {
			values, err = callMethod(ctx, p.caller, p.cfg.Quoter, quoterABI, "quoteExactOutputSingle", quoteExactOutputSingleParams{
				TokenIn: tokenIn, TokenOut: tokenOut, Amount: amount, Fee: feeArg(fee), SqrtPriceLimitX96: new(big.Int),
			})
		}
		if err != nil {
			p.logger.Debug("fee tier quote failed", zap.Uint32("fee", fee), zap.Error(err))
			lastErr = err
			continue
		}
		quoted, err := asBigInt(values[0])
		if err != nil {
			lastErr = err
			continue
		}
		if quoted.Sign() <= 0 {
			continue
		}
		if best == nil || (exactIn && quoted.Cmp(best.amount) > 0) || (!exactIn && quoted.Cmp(best.amount) < 0) {
			best = &tierQuote{fee: fee, pool: pool, amount: quoted}
		}
	}

	if best == nil {
		if pools > 0 && lastErr != nil {
			return model.Quote{}, fmt.Errorf("quote swap: %w", lastErr)
		}
		if pools == 0 && lastErr != nil {
			return model.Quote{}, fmt.Errorf("locate pool: %w", lastErr)
		}
		return model.Quote{}, model.ErrTradeNotFound
	}

	quote := model.Quote{
		Provider:  p.Name(),
		TokenIn:   req.TokenIn,
		TokenOut:  req.TokenOut,
		Direction: req.Direction,
		Fee:       best.fee,
		TickMode:  req.TickMode,
	}
	if exactIn {
		quote.AmountIn = req.Amount
		quote.AmountOut = FromBaseUnits(best.amount, req.TokenOut.Decimals)
	} else {
		quote.AmountIn = FromBaseUnits(best.amount, req.TokenIn.Decimals)
		quote.AmountOut = req.Amount
	}
	if quote.AmountIn.IsPositive() && quote.AmountOut.IsPositive() {
		quote.ExecutionPrice = quote.AmountOut.DivRound(quote.AmountIn, priceScale)
		quote.InvertedPrice = quote.AmountIn.DivRound(quote.AmountOut, priceScale)
	}

	slot0, err := FetchSlot0(ctx, p.caller, best.pool)
	if err != nil {
		p.logger.Debug("slot0 unavailable, skipping price impact", zap.String("pool", best.pool.Hex()), zap.Error(err))
		return quote, nil
	}
	if impact, ok := p.priceImpact(slot0, req.TokenIn, req.TokenOut, quote.ExecutionPrice); ok {
		quote.PriceImpact = &impact
	}
	return quote, nil
}

// priceImpact compares the execution price with the pool's spot price, in percent.
func (p *SwapProvider) priceImpact(slot0 PoolSlot0, tokenIn, tokenOut model.Token, execution decimal.Decimal) (decimal.Decimal, bool) {
	if !execution.IsPositive() || slot0.SqrtPriceX96 == nil || slot0.SqrtPriceX96.Sign() <= 0 {
		return decimal.Zero, false
	}

	var spot decimal.Decimal
	if p.SortsBefore(tokenIn, tokenOut) {
		price, err := sqrtRatioToPrice(slot0.SqrtPriceX96, tokenIn.Decimals, tokenOut.Decimals)
		if err != nil {
			return decimal.Zero, false
		}
		spot = price
	} else {
		price, err := sqrtRatioToPrice(slot0.SqrtPriceX96, tokenOut.Decimals, tokenIn.Decimals)
		if err != nil || !price.IsPositive() {
			return decimal.Zero, false
		}
		spot = decimal.NewFromInt(1).DivRound(price, 36)
	}
	if !spot.IsPositive() {
		return decimal.Zero, false
	}

	impact := spot.Sub(execution).Div(spot).Mul(decimal.NewFromInt(100))
	if impact.IsNegative() {
		impact = decimal.Zero
	}
	return impact.Round(4), true
}

type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

type exactOutputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	AmountOut         *big.Int
	AmountInMaximum   *big.Int
	SqrtPriceLimitX96 *big.Int
}

// BuildTransaction encodes a SwapRouter02 multicall for the quote.
func (p *SwapProvider) BuildTransaction(_ context.Context, quote model.Quote, opts model.TradeOptions) (model.TransactionPayload, error) {
	if opts.Recipient == nil {
		return model.TransactionPayload{}, errors.New("recipient is required")
	}
	routerABI, err := swapRouterABI.get()
	if err != nil {
		return model.TransactionPayload{}, fmt.Errorf("parse router abi: %w", err)
	}

	tokenIn := quote.TokenIn.ProtocolAddress(p.cfg.Wrapped)
	tokenOut := quote.TokenOut.ProtocolAddress(p.cfg.Wrapped)
	amountIn := ToBaseUnits(quote.AmountIn, quote.TokenIn.Decimals)
	amountOut := ToBaseUnits(quote.AmountOut, quote.TokenOut.Decimals)

	swapRecipient := *opts.Recipient
	if quote.TokenOut.Native {
		swapRecipient = routerSelf
	}

	var (
		calls  [][]byte
		value  = new(big.Int)
		minOut = amountOut
	)
	if quote.Direction == model.ExactIn {
		minOut = applySlippage(amountOut, opts.Slippage, true)
		data, err := routerABI.Pack("exactInputSingle", exactInputSingleParams{
			TokenIn:           tokenIn,
			TokenOut:          tokenOut,
			Fee:               feeArg(quote.Fee),
			Recipient:         swapRecipient,
			AmountIn:          amountIn,
			AmountOutMinimum:  minOut,
			SqrtPriceLimitX96: new(big.Int),
		})
		if err != nil {
			return model.TransactionPayload{}, fmt.Errorf("pack exactInputSingle: %w", err)
		}
		calls = append(calls, data)
		if quote.TokenIn.Native {
			value = amountIn
		}
	} else {
		maxIn := applySlippage(amountIn, opts.Slippage, false)
		data, err := routerABI.Pack("exactOutputSingle", exactOutputSingleParams{
			TokenIn:           tokenIn,
			TokenOut:          tokenOut,
			Fee:               feeArg(quote.Fee),
			Recipient:         swapRecipient,
			AmountOut:         amountOut,
			AmountInMaximum:   maxIn,
			SqrtPriceLimitX96: new(big.Int),
		})
		if err != nil {
			return model.TransactionPayload{}, fmt.Errorf("pack exactOutputSingle: %w", err)
		}
		calls = append(calls, data)
		if quote.TokenIn.Native {
			value = maxIn
			refund, err := routerABI.Pack("refundETH")
			if err != nil {
				return model.TransactionPayload{}, fmt.Errorf("pack refundETH: %w", err)
			}
			calls = append(calls, refund)
		}
	}

	if quote.TokenOut.Native {
		unwrap, err := routerABI.Pack("unwrapWETH9", minOut, *opts.Recipient)
		if err != nil {
			return model.TransactionPayload{}, fmt.Errorf("pack unwrapWETH9: %w", err)
		}
		calls = append(calls, unwrap)
	}

	deadline := big.NewInt(p.now().Add(opts.Deadline).Unix())
	data, err := routerABI.Pack("multicall", deadline, calls)
	if err != nil {
		return model.TransactionPayload{}, fmt.Errorf("pack multicall: %w", err)
	}

	return model.TransactionPayload{
		To:          p.cfg.Router,
		Value:       value,
		Data:        data,
		Description: fmt.Sprintf("swap %s %s for %s %s", quote.AmountIn, quote.TokenIn, quote.AmountOut, quote.TokenOut),
	}, nil
}

func feeArg(fee uint32) *big.Int {
	return new(big.Int).SetUint64(uint64(fee))
}
