package ticks

import (
	"fmt"

	"github.com/shopspring/decimal"

	"liquidityTrade/internal/model"
)

// PriceMath adds the tick to price direction to Math.
type PriceMath interface {
	Math
	TickToPrice(tick int32, token0, token1 model.Token) (decimal.Decimal, error)
}

// PriceTick converts a price of tokenIn quoted in tokenOut into a protocol tick. When tokenIn is
// not token0 the price is inverted first, and a zero price maps to MaxTick instead of MinTick.
// The result is not clamped.
func PriceTick(math Math, price decimal.Decimal, tokenIn, tokenOut model.Token) (int32, error) {
	if price.IsNegative() {
		return 0, fmt.Errorf("negative price: %s", price)
	}
	if math.SortsBefore(tokenIn, tokenOut) {
		if price.IsZero() {
			return math.MinTick(), nil
		}
		return math.PriceToTick(price, tokenIn, tokenOut)
	}
	if price.IsZero() {
		return math.MaxTick(), nil
	}
	inverted := decimal.NewFromInt(1).DivRound(price, 36)
	return math.PriceToTick(inverted, tokenOut, tokenIn)
}

// TickPrice is the inverse of PriceTick: the price of tokenIn quoted in tokenOut at tick.
func TickPrice(math PriceMath, tick int32, tokenIn, tokenOut model.Token) (decimal.Decimal, error) {
	if math.SortsBefore(tokenIn, tokenOut) {
		return math.TickToPrice(tick, tokenIn, tokenOut)
	}
	price, err := math.TickToPrice(tick, tokenOut, tokenIn)
	if err != nil {
		return decimal.Zero, err
	}
	if !price.IsPositive() {
		return decimal.Zero, nil
	}
	return decimal.NewFromInt(1).DivRound(price, 18), nil
}
