// Package ticks keeps the lower/upper tick bounds of a concentrated-liquidity position.
//
// Bounds are stored in protocol coordinates (token0/token1 by address order). Edits arrive in
// the user's coordinates (tokenIn priced in tokenOut), so every entry point branches on the
// pair's ordering before touching a bound.
package ticks

import (
	"fmt"

	"github.com/shopspring/decimal"

	"liquidityTrade/internal/model"
)

// Edge selects a bound as the user sees it.
type Edge int

const (
	Lower Edge = iota
	Upper
)

func (e Edge) opposite() Edge {
	if e == Lower {
		return Upper
	}
	return Lower
}

func (e Edge) String() string {
	if e == Upper {
		return "upper"
	}
	return "lower"
}

// Step moves a bound by one spacing unit.
type Step int

const (
	Minus Step = iota
	Plus
)

func (s Step) opposite() Step {
	if s == Plus {
		return Minus
	}
	return Plus
}

// Math is the tick arithmetic a quote provider exposes.
type Math interface {
	// PriceToTick converts a human price of token0 quoted in token1 into a tick.
	PriceToTick(price decimal.Decimal, token0, token1 model.Token) (int32, error)
	MinTick() int32
	MaxTick() int32
	SortsBefore(a, b model.Token) bool
}

// Manager owns the tick mode and the stored bounds. It is not safe for concurrent use.
type Manager struct {
	math       Math
	kind       model.TickModeKind
	lower      *int32
	upper      *int32
	multiplier decimal.Decimal
}

// NewManager starts in full range.
func NewManager(math Math) *Manager {
	m := &Manager{math: math}
	m.SetFullRange()
	return m
}

// Mode returns the active tick mode.
func (m *Manager) Mode() model.TickMode {
	switch m.kind {
	case model.TickModeRange:
		return model.RangeMode(m.lower, m.upper)
	case model.TickModeMultiplier:
		return model.MultiplierMode(m.multiplier)
	default:
		return model.FullRangeMode()
	}
}

// Bounds returns copies of the stored bounds in protocol coordinates. Full range always
// reports the protocol limits, whatever spacing-aligned bounds the last quote stored.
func (m *Manager) Bounds() (lower, upper *int32) {
	if m.kind == model.TickModeFull {
		return model.Tick(m.math.MinTick()), model.Tick(m.math.MaxTick())
	}
	return copyBound(m.lower), copyBound(m.upper)
}

// SetMode replaces the mode. Range bounds are clamped to the protocol limits and a range
// spanning both limits becomes full range; bound order is left to the caller's range check.
// It reports whether anything changed.
func (m *Manager) SetMode(mode model.TickMode) bool {
	mode = m.canonical(mode)
	if m.Mode().Equal(mode) {
		return false
	}
	switch mode.Kind {
	case model.TickModeRange:
		m.kind = model.TickModeRange
		m.lower = copyBound(mode.Lower)
		m.upper = copyBound(mode.Upper)
		m.multiplier = decimal.Zero
	case model.TickModeMultiplier:
		m.SetMultiplierRange(mode.Multiplier)
	default:
		m.SetFullRange()
	}
	return true
}

// SyncFromQuote overwrites the stored bounds with the ones implied by the latest quote.
func (m *Manager) SyncFromQuote(lower, upper *int32) {
	m.lower = copyBound(lower)
	m.upper = copyBound(upper)
}

// SetFullRange switches to full range and drops any partially entered bounds.
func (m *Manager) SetFullRange() bool {
	changed := m.kind != model.TickModeFull
	m.kind = model.TickModeFull
	m.lower = model.Tick(m.math.MinTick())
	m.upper = model.Tick(m.math.MaxTick())
	m.multiplier = decimal.Zero
	return changed
}

// SetMultiplierRange switches to a price multiplier around the current price.
func (m *Manager) SetMultiplierRange(value decimal.Decimal) bool {
	changed := m.kind != model.TickModeMultiplier || !m.multiplier.Equal(value)
	m.kind = model.TickModeMultiplier
	m.multiplier = value
	m.lower = nil
	m.upper = nil
	return changed
}

// SetBoundFromPrice sets one user edge from a price of tokenIn quoted in tokenOut.
func (m *Manager) SetBoundFromPrice(edge Edge, price decimal.Decimal, tokenIn, tokenOut model.Token) (bool, error) {
	internal := edge
	if !m.math.SortsBefore(tokenIn, tokenOut) {
		internal = edge.opposite()
	}
	tick, err := PriceTick(m.math, price, tokenIn, tokenOut)
	if err != nil {
		return false, fmt.Errorf("price to tick: %w", err)
	}
	return m.apply(internal, m.clamp(tick)), nil
}

// StepBound moves one user edge by a single spacing unit.
func (m *Manager) StepBound(edge Edge, step Step, spacing int32, tokenIn, tokenOut model.Token) bool {
	if spacing <= 0 {
		spacing = 1
	}

	internal, dir := edge, step
	if !m.math.SortsBefore(tokenIn, tokenOut) {
		internal, dir = edge.opposite(), step.opposite()
	}

	current := m.effective(internal)
	next := int64(current) + int64(spacing)
	if dir == Minus {
		next = int64(current) - int64(spacing)
	}
	clamped := m.clamp64(next)
	if clamped == current {
		return false
	}
	return m.apply(internal, clamped)
}

// apply writes an internal bound unless it would meet or cross the opposite one.
func (m *Manager) apply(internal Edge, tick int32) bool {
	if m.kind == model.TickModeFull {
		m.lower = model.Tick(m.math.MinTick())
		m.upper = model.Tick(m.math.MaxTick())
	}
	if internal == Lower {
		if tick >= m.effective(Upper) {
			return false
		}
		if m.lower != nil && *m.lower == tick && m.kind != model.TickModeMultiplier {
			return false
		}
		m.lower = model.Tick(tick)
	} else {
		if tick <= m.effective(Lower) {
			return false
		}
		if m.upper != nil && *m.upper == tick && m.kind != model.TickModeMultiplier {
			return false
		}
		m.upper = model.Tick(tick)
	}

	m.kind = model.TickModeRange
	m.multiplier = decimal.Zero
	m.normalize()
	return true
}

// normalize folds a range equal to the protocol limits back into full range.
func (m *Manager) normalize() {
	if m.lower == nil || m.upper == nil {
		return
	}
	if *m.lower == m.math.MinTick() && *m.upper == m.math.MaxTick() {
		m.kind = model.TickModeFull
	}
}

func (m *Manager) canonical(mode model.TickMode) model.TickMode {
	if mode.Kind != model.TickModeRange {
		return mode
	}
	var lower, upper *int32
	if mode.Lower != nil {
		lower = model.Tick(m.clamp(*mode.Lower))
	}
	if mode.Upper != nil {
		upper = model.Tick(m.clamp(*mode.Upper))
	}
	if lower != nil && upper != nil && *lower == m.math.MinTick() && *upper == m.math.MaxTick() {
		return model.FullRangeMode()
	}
	return model.RangeMode(lower, upper)
}

func (m *Manager) effective(edge Edge) int32 {
	if m.kind == model.TickModeFull {
		if edge == Lower {
			return m.math.MinTick()
		}
		return m.math.MaxTick()
	}
	if edge == Lower {
		if m.lower == nil {
			return m.math.MinTick()
		}
		return *m.lower
	}
	if m.upper == nil {
		return m.math.MaxTick()
	}
	return *m.upper
}

func (m *Manager) clamp(tick int32) int32 {
	return m.clamp64(int64(tick))
}

func (m *Manager) clamp64(tick int64) int32 {
	if tick < int64(m.math.MinTick()) {
		return m.math.MinTick()
	}
	if tick > int64(m.math.MaxTick()) {
		return m.math.MaxTick()
	}
	return int32(tick)
}

func copyBound(v *int32) *int32 {
	if v == nil {
		return nil
	}
	return model.Tick(*v)
}
