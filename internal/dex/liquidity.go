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

// ErrAmountOutsideRange is returned when the chosen range cannot hold the entered token.
var ErrAmountOutsideRange = errors.New("position range does not accept this token")

type LiquidityConfig struct {
	Factory         common.Address
	PositionManager common.Address
	Wrapped         common.Address
	Fee             uint32
	PoolCacheSize   int
}

// LiquidityProvider sizes V3 positions against the live pool price and builds
// NonfungiblePositionManager mints.
type LiquidityProvider struct {
	TickMath

	caller Caller
	cfg    LiquidityConfig
	pools  *PoolLocator
	logger *zap.Logger
	now    func() time.Time
}

func NewLiquidityProvider(caller Caller, cfg LiquidityConfig, logger *zap.Logger) (*LiquidityProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Fee == 0 {
		cfg.Fee = 3000
	}
	pools, err := NewPoolLocator(caller, cfg.Factory, cfg.PoolCacheSize)
	if err != nil {
		return nil, err
	}
	return &LiquidityProvider{
		TickMath: TickMath{Wrapped: cfg.Wrapped, Spacing: defaultSpacing(cfg.Fee)},
		caller:   caller,
		cfg:      cfg,
		pools:    pools,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (p *LiquidityProvider) Name() string { return "uniswap-v3-liquidity" }

// Quote returns the paired deposit amount for the entered side. AmountIn and AmountOut are the
// deposits of TokenIn and TokenOut.
func (p *LiquidityProvider) Quote(ctx context.Context, req model.QuoteRequest) (model.Quote, error) {
	if req.TokenIn.Equal(req.TokenOut) || model.IsWrapPair(req.TokenIn, req.TokenOut, p.cfg.Wrapped) {
		return model.Quote{}, model.ErrTradeNotFound
	}

	inIsToken0 := p.SortsBefore(req.TokenIn, req.TokenOut)
	token0, token1 := req.TokenIn, req.TokenOut
	if !inIsToken0 {
		token0, token1 = req.TokenOut, req.TokenIn
	}

	pool, err := p.pools.Pool(ctx, token0.ProtocolAddress(p.cfg.Wrapped), token1.ProtocolAddress(p.cfg.Wrapped), p.cfg.Fee)
	if err != nil {
		return model.Quote{}, fmt.Errorf("locate pool: %w", err)
	}
	if pool == (common.Address{}) {
		return model.Quote{}, model.ErrTradeNotFound
	}

	slot0, err := FetchSlot0(ctx, p.caller, pool)
	if err != nil {
		return model.Quote{}, err
	}
	spacing, err := FetchTickSpacing(ctx, p.caller, pool)
	if err != nil {
		p.logger.Debug("tick spacing unavailable, using fee default", zap.String("pool", pool.Hex()), zap.Error(err))
		spacing = p.TickSpacing()
	}

	lower, upper, err := resolveRange(req.TickMode, slot0.Tick, spacing)
	if err != nil {
		return model.Quote{}, err
	}
	sqrtA, err := SqrtRatioAtTick(lower)
	if err != nil {
		return model.Quote{}, err
	}
	sqrtB, err := SqrtRatioAtTick(upper)
	if err != nil {
		return model.Quote{}, err
	}

	knownToken, otherToken := req.TokenIn, req.TokenOut
	if req.Direction == model.ExactOut {
		knownToken, otherToken = req.TokenOut, req.TokenIn
	}
	knownIsToken0 := knownToken.Equal(token0)
	known := ToBaseUnits(req.Amount, knownToken.Decimals)

	paired, err := pairedAmount(known, knownIsToken0, slot0.SqrtPriceX96, sqrtA.ToBig(), sqrtB.ToBig())
	if err != nil {
		return model.Quote{}, err
	}

	quote := model.Quote{
		Provider:  p.Name(),
		TokenIn:   req.TokenIn,
		TokenOut:  req.TokenOut,
		Direction: req.Direction,
		Fee:       p.cfg.Fee,
		TickMode:  req.TickMode,
		Ticks: &model.QuoteTicks{
			Current: slot0.Tick,
			Lower:   lower,
			Upper:   upper,
			Spacing: spacing,
		},
	}
	if req.Direction == model.ExactIn {
		quote.AmountIn = req.Amount
		quote.AmountOut = FromBaseUnits(paired, otherToken.Decimals)
	} else {
		quote.AmountIn = FromBaseUnits(paired, otherToken.Decimals)
		quote.AmountOut = req.Amount
	}
	if quote.AmountIn.IsPositive() && quote.AmountOut.IsPositive() {
		quote.ExecutionPrice = quote.AmountOut.DivRound(quote.AmountIn, priceScale)
		quote.InvertedPrice = quote.AmountIn.DivRound(quote.AmountOut, priceScale)
	}
	return quote, nil
}

type mintParams struct {
	Token0         common.Address
	Token1         common.Address
	Fee            *big.Int
	TickLower      *big.Int
	TickUpper      *big.Int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Recipient      common.Address
	Deadline       *big.Int
}

// BuildTransaction encodes a mint, wrapped with refundETH when native value is attached.
func (p *LiquidityProvider) BuildTransaction(_ context.Context, quote model.Quote, opts model.TradeOptions) (model.TransactionPayload, error) {
	if opts.Recipient == nil {
		return model.TransactionPayload{}, errors.New("recipient is required")
	}
	if quote.Ticks == nil {
		return model.TransactionPayload{}, errors.New("quote has no tick range")
	}
	managerABI, err := positionManagerABI.get()
	if err != nil {
		return model.TransactionPayload{}, fmt.Errorf("parse position manager abi: %w", err)
	}

	amountIn := ToBaseUnits(quote.AmountIn, quote.TokenIn.Decimals)
	amountOut := ToBaseUnits(quote.AmountOut, quote.TokenOut.Decimals)
	token0, token1 := quote.TokenIn, quote.TokenOut
	amount0, amount1 := amountIn, amountOut
	if !p.SortsBefore(quote.TokenIn, quote.TokenOut) {
		token0, token1 = quote.TokenOut, quote.TokenIn
		amount0, amount1 = amountOut, amountIn
	}

	mint, err := managerABI.Pack("mint", mintParams{
		Token0:         token0.ProtocolAddress(p.cfg.Wrapped),
		Token1:         token1.ProtocolAddress(p.cfg.Wrapped),
		Fee:            feeArg(quote.Fee),
		TickLower:      big.NewInt(int64(quote.Ticks.Lower)),
		TickUpper:      big.NewInt(int64(quote.Ticks.Upper)),
		Amount0Desired: amount0,
		Amount1Desired: amount1,
		Amount0Min:     applySlippage(amount0, opts.Slippage, true),
		Amount1Min:     applySlippage(amount1, opts.Slippage, true),
		Recipient:      *opts.Recipient,
		Deadline:       big.NewInt(p.now().Add(opts.Deadline).Unix()),
	})
	if err != nil {
		return model.TransactionPayload{}, fmt.Errorf("pack mint: %w", err)
	}

	value := new(big.Int)
	switch {
	case token0.Native:
		value = amount0
	case token1.Native:
		value = amount1
	}

	data := mint
	if value.Sign() > 0 {
		refund, err := managerABI.Pack("refundETH")
		if err != nil {
			return model.TransactionPayload{}, fmt.Errorf("pack refundETH: %w", err)
		}
		data, err = managerABI.Pack("multicall", [][]byte{mint, refund})
		if err != nil {
			return model.TransactionPayload{}, fmt.Errorf("pack multicall: %w", err)
		}
	}

	return model.TransactionPayload{
		To:          p.cfg.PositionManager,
		Value:       value,
		Data:        data,
		Description: fmt.Sprintf("add liquidity %s %s + %s %s [%d, %d]", quote.AmountIn, quote.TokenIn, quote.AmountOut, quote.TokenOut, quote.Ticks.Lower, quote.Ticks.Upper),
	}, nil
}

// resolveRange turns a tick mode into spacing-aligned bounds.
func resolveRange(mode model.TickMode, current, spacing int32) (int32, int32, error) {
	minUsable := NearestUsableTick(model.MinTick, spacing)
	maxUsable := NearestUsableTick(model.MaxTick, spacing)

	var lower, upper int32
	switch mode.Kind {
	case model.TickModeRange:
		lower, upper = minUsable, maxUsable
		if mode.Lower != nil {
			lower = NearestUsableTick(*mode.Lower, spacing)
		}
		if mode.Upper != nil {
			upper = NearestUsableTick(*mode.Upper, spacing)
		}
	case model.TickModeMultiplier:
		if mode.Multiplier.LessThanOrEqual(decimal.NewFromInt(1)) {
			return 0, 0, fmt.Errorf("multiplier must be above 1: %s", mode.Multiplier)
		}
		sqrt, err := priceToSqrtRatio(mode.Multiplier, 0, 0)
		if err != nil {
			return 0, 0, err
		}
		delta, err := TickAtSqrtRatio(sqrt)
		if err != nil {
			return 0, 0, err
		}
		lower = NearestUsableTick(clampTick(int64(current)-int64(delta)), spacing)
		upper = NearestUsableTick(clampTick(int64(current)+int64(delta)), spacing)
	default:
		lower, upper = minUsable, maxUsable
	}

	if lower >= upper {
		return 0, 0, fmt.Errorf("range collapses after spacing alignment: [%d, %d]", lower, upper)
	}
	return lower, upper, nil
}

func clampTick(tick int64) int32 {
	if tick < int64(model.MinTick) {
		return model.MinTick
	}
	if tick > int64(model.MaxTick) {
		return model.MaxTick
	}
	return int32(tick)
}

// pairedAmount returns the amount of the other token a position needs given one side's deposit.
func pairedAmount(known *big.Int, knownIsToken0 bool, sqrtP, sqrtA, sqrtB *big.Int) (*big.Int, error) {
	if knownIsToken0 {
		if sqrtP.Cmp(sqrtB) >= 0 {
			return nil, ErrAmountOutsideRange
		}
		if sqrtP.Cmp(sqrtA) <= 0 {
			return new(big.Int), nil
		}
		liquidity := liquidityForAmount0(sqrtP, sqrtB, known)
		return amount1ForLiquidity(sqrtA, sqrtP, liquidity), nil
	}

	if sqrtP.Cmp(sqrtA) <= 0 {
		return nil, ErrAmountOutsideRange
	}
	if sqrtP.Cmp(sqrtB) >= 0 {
		return new(big.Int), nil
	}
	liquidity := liquidityForAmount1(sqrtA, sqrtP, known)
	return amount0ForLiquidity(sqrtP, sqrtB, liquidity), nil
}

func liquidityForAmount0(sqrtA, sqrtB, amount0 *big.Int) *big.Int {
	num := new(big.Int).Mul(amount0, sqrtA)
	num.Mul(num, sqrtB)
	num.Quo(num, q96)
	return num.Quo(num, new(big.Int).Sub(sqrtB, sqrtA))
}

func liquidityForAmount1(sqrtA, sqrtB, amount1 *big.Int) *big.Int {
	num := new(big.Int).Mul(amount1, q96)
	return num.Quo(num, new(big.Int).Sub(sqrtB, sqrtA))
}

func amount0ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	num := new(big.Int).Mul(liquidity, q96)
	num.Mul(num, new(big.Int).Sub(sqrtB, sqrtA))
	num.Quo(num, sqrtB)
	return num.Quo(num, sqrtA)
}

func amount1ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	num := new(big.Int).Mul(liquidity, new(big.Int).Sub(sqrtB, sqrtA))
	return num.Quo(num, q96)
}

func defaultSpacing(fee uint32) int32 {
	switch fee {
	case 100:
		return 1
	case 500:
		return 10
	case 10000:
		return 200
	default:
		return 60
	}
}
