package dex

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// ToBaseUnits scales a human amount to the token's integer units, truncating extra precision.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) *big.Int {
	return amount.Shift(int32(decimals)).Truncate(0).BigInt()
}

// FromBaseUnits scales integer units back to a human amount.
func FromBaseUnits(value *big.Int, decimals uint8) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, -int32(decimals))
}

// applySlippage returns value * (100 - pct) / 100 when down, value * (100 + pct) / 100 otherwise.
func applySlippage(value *big.Int, pct decimal.Decimal, down bool) *big.Int {
	hundred := decimal.NewFromInt(100)
	factor := hundred.Add(pct)
	if down {
		factor = hundred.Sub(pct)
		if factor.IsNegative() {
			factor = decimal.Zero
		}
	}
	return decimal.NewFromBigInt(value, 0).Mul(factor).Div(hundred).Truncate(0).BigInt()
}
