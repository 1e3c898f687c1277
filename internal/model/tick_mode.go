package model

import "github.com/shopspring/decimal"

// Protocol tick limits of V3 pools.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

// TickModeKind tags the active TickMode variant.
type TickModeKind int

const (
	TickModeFull TickModeKind = iota
	TickModeRange
	TickModeMultiplier
)

func (k TickModeKind) String() string {
	switch k {
	case TickModeRange:
		return "range"
	case TickModeMultiplier:
		return "multiplier"
	default:
		return "full"
	}
}

// TickMode is a tagged union; only the fields of Kind are meaningful.
type TickMode struct {
	Kind       TickModeKind
	Lower      *int32
	Upper      *int32
	Multiplier decimal.Decimal
}

// FullRangeMode returns the Full variant.
func FullRangeMode() TickMode {
	return TickMode{Kind: TickModeFull}
}

// RangeMode returns the Range variant; either bound may be nil.
func RangeMode(lower, upper *int32) TickMode {
	return TickMode{Kind: TickModeRange, Lower: copyTick(lower), Upper: copyTick(upper)}
}

// MultiplierMode returns the Multiplier variant.
func MultiplierMode(value decimal.Decimal) TickMode {
	return TickMode{Kind: TickModeMultiplier, Multiplier: value}
}

// Equal compares only the fields of the active variant.
func (m TickMode) Equal(other TickMode) bool {
	if m.Kind != other.Kind {
		return false
	}
	switch m.Kind {
	case TickModeRange:
		return equalTick(m.Lower, other.Lower) && equalTick(m.Upper, other.Upper)
	case TickModeMultiplier:
		return m.Multiplier.Equal(other.Multiplier)
	default:
		return true
	}
}

// ValidRange is false only for a Range with both bounds set and upper <= lower.
func (m TickMode) ValidRange() bool {
	if m.Kind != TickModeRange || m.Lower == nil || m.Upper == nil {
		return true
	}
	return *m.Upper > *m.Lower
}

// Tick returns a pointer to a copy of v.
func Tick(v int32) *int32 {
	return &v
}

func copyTick(v *int32) *int32 {
	if v == nil {
		return nil
	}
	return Tick(*v)
}

func equalTick(a, b *int32) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
