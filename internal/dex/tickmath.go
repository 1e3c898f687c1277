package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"liquidityTrade/internal/model"
)

var (
	// MinSqrtRatio is the sqrt ratio at MinTick.
	MinSqrtRatio = uint256.MustFromDecimal("4295128739")
	// MaxSqrtRatio is the sqrt ratio at MaxTick.
	MaxSqrtRatio = uint256.MustFromDecimal("1461446703485210103287273052203988822378723970342")
)

var (
	q96     = new(big.Int).Lsh(big.NewInt(1), 96)
	maxU256 = new(uint256.Int).SetAllOne()

	sqrtRatioFactors = []*uint256.Int{
		uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
		uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
		uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
		uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
		uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
		uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
		uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
		uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
		uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
		uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
		uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
		uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
		uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
		uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
		uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
		uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
		uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
		uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
		uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
	}
	sqrtRatioOdd = uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001")
	sqrtRatioOne = new(uint256.Int).Lsh(uint256.NewInt(1), 128)
)

// SqrtRatioAtTick returns sqrt(1.0001^tick) as a Q64.96 value.
func SqrtRatioAtTick(tick int32) (*uint256.Int, error) {
	if tick < model.MinTick || tick > model.MaxTick {
		return nil, fmt.Errorf("tick out of range: %d", tick)
	}
	absTick := uint32(tick)
	if tick < 0 {
		absTick = uint32(-tick)
	}

	ratio := new(uint256.Int).Set(sqrtRatioOne)
	if absTick&1 != 0 {
		ratio.Set(sqrtRatioOdd)
	}
	for i, factor := range sqrtRatioFactors {
		if absTick&(1<<uint(i+1)) != 0 {
			ratio.Mul(ratio, factor)
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		ratio.Div(maxU256, ratio)
	}

	// round up when converting from Q128.128 to Q64.96
	rem := new(uint256.Int).And(ratio, uint256.NewInt(0xffffffff))
	ratio.Rsh(ratio, 32)
	if !rem.IsZero() {
		ratio.AddUint64(ratio, 1)
	}
	return ratio, nil
}

// TickAtSqrtRatio returns the greatest tick whose sqrt ratio is <= sqrtRatio.
func TickAtSqrtRatio(sqrtRatio *uint256.Int) (int32, error) {
	if sqrtRatio.Lt(MinSqrtRatio) || !sqrtRatio.Lt(MaxSqrtRatio) {
		return 0, fmt.Errorf("sqrt ratio out of range: %s", sqrtRatio.ToBig().String())
	}

	lo, hi := model.MinTick, model.MaxTick
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		ratio, err := SqrtRatioAtTick(mid)
		if err != nil {
			return 0, err
		}
		if ratio.Gt(sqrtRatio) {
			hi = mid - 1
		} else {
			lo = mid
		}
	}
	return lo, nil
}

// TickMath implements tick arithmetic for one pool family. Native tokens are ordered
// by their wrapped contract.
type TickMath struct {
	Wrapped common.Address
	Spacing int32
}

func (m TickMath) MinTick() int32 { return model.MinTick }

func (m TickMath) MaxTick() int32 { return model.MaxTick }

func (m TickMath) TickSpacing() int32 {
	if m.Spacing <= 0 {
		return 1
	}
	return m.Spacing
}

func (m TickMath) SortsBefore(a, b model.Token) bool {
	return model.SortsBefore(a.ProtocolAddress(m.Wrapped), b.ProtocolAddress(m.Wrapped))
}

// PriceToTick converts the human price of token0 quoted in token1 into a tick.
func (m TickMath) PriceToTick(price decimal.Decimal, token0, token1 model.Token) (int32, error) {
	sqrt, err := priceToSqrtRatio(price, token0.Decimals, token1.Decimals)
	if err != nil {
		return 0, err
	}
	return TickAtSqrtRatio(sqrt)
}

// TickToPrice is the inverse of PriceToTick.
func (m TickMath) TickToPrice(tick int32, token0, token1 model.Token) (decimal.Decimal, error) {
	sqrt, err := SqrtRatioAtTick(tick)
	if err != nil {
		return decimal.Zero, err
	}
	return sqrtRatioToPrice(sqrt.ToBig(), token0.Decimals, token1.Decimals)
}

// NearestUsableTick rounds tick to a multiple of spacing that stays inside the protocol limits.
func NearestUsableTick(tick, spacing int32) int32 {
	if spacing <= 0 {
		return tick
	}
	rounded := int32(roundDiv(int64(tick), int64(spacing))) * spacing
	minUsable := -(model.MaxTick / spacing) * spacing
	maxUsable := (model.MaxTick / spacing) * spacing
	if rounded < minUsable {
		return minUsable
	}
	if rounded > maxUsable {
		return maxUsable
	}
	return rounded
}

func roundDiv(a, b int64) int64 {
	q := a / b
	r := a % b
	if r*2 >= b {
		q++
	} else if r*2 <= -b {
		q--
	}
	return q
}

func priceToSqrtRatio(price decimal.Decimal, decimals0, decimals1 uint8) (*uint256.Int, error) {
	if !price.IsPositive() {
		return nil, fmt.Errorf("price must be positive: %s", price)
	}
	raw, ok := new(big.Float).SetPrec(256).SetString(price.String())
	if !ok {
		return nil, fmt.Errorf("parse price %s", price)
	}
	raw.Mul(raw, pow10Float(decimals1))
	raw.Quo(raw, pow10Float(decimals0))

	sqrt := new(big.Float).SetPrec(256).Sqrt(raw)
	sqrt.Mul(sqrt, new(big.Float).SetInt(q96))
	scaled, _ := sqrt.Int(nil)

	if scaled.Cmp(MinSqrtRatio.ToBig()) < 0 {
		return new(uint256.Int).Set(MinSqrtRatio), nil
	}
	if scaled.Cmp(MaxSqrtRatio.ToBig()) >= 0 {
		return new(uint256.Int).SubUint64(MaxSqrtRatio, 1), nil
	}
	out, overflow := uint256.FromBig(scaled)
	if overflow {
		return nil, fmt.Errorf("sqrt ratio overflow for price %s", price)
	}
	return out, nil
}

func sqrtRatioToPrice(sqrt *big.Int, decimals0, decimals1 uint8) (decimal.Decimal, error) {
	f := new(big.Float).SetPrec(256).SetInt(sqrt)
	f.Quo(f, new(big.Float).SetInt(q96))
	f.Mul(f, f)
	f.Mul(f, pow10Float(decimals0))
	f.Quo(f, pow10Float(decimals1))
	return decimal.NewFromString(f.Text('g', 40))
}

func pow10Float(n uint8) *big.Float {
	return new(big.Float).SetPrec(256).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil))
}
