package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrTradeNotFound is returned by quote providers when no route or pool serves the pair.
var ErrTradeNotFound = errors.New("trade not found")

// ErrorKind is the closed set of conditions that keep a trade from being ready.
type ErrorKind int

const (
	KindInvalidTickRange ErrorKind = iota + 1
	KindTradeNotFound
	KindWrapUnwrapNotAllowed
	KindProviderFailure
	KindInsufficientBalance
	KindNoBalance
	KindInsufficientAllowance
	KindNeedRevokeAllowance
	KindForbiddenPriceImpact
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidTickRange:
		return "invalid_tick_range"
	case KindTradeNotFound:
		return "trade_not_found"
	case KindWrapUnwrapNotAllowed:
		return "wrap_unwrap_not_allowed"
	case KindProviderFailure:
		return "provider_failure"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindNoBalance:
		return "no_balance"
	case KindInsufficientAllowance:
		return "insufficient_allowance"
	case KindNeedRevokeAllowance:
		return "need_revoke_allowance"
	case KindForbiddenPriceImpact:
		return "forbidden_price_impact"
	default:
		return fmt.Sprintf("error_kind(%d)", int(k))
	}
}

// Side names which token of the pair an error refers to.
type Side int

const (
	SideNone Side = iota
	SideIn
	SideOut
)

func (s Side) String() string {
	switch s {
	case SideIn:
		return "in"
	case SideOut:
		return "out"
	default:
		return ""
	}
}

// TradeError is one entry of the error list.
type TradeError struct {
	Kind      ErrorKind
	Side      Side
	Allowance decimal.Decimal
	Provider  string
	Err       error
}

func (e *TradeError) Error() string {
	switch e.Kind {
	case KindNeedRevokeAllowance:
		return fmt.Sprintf("%s %s: current allowance %s", e.Kind, e.Side, e.Allowance.String())
	case KindForbiddenPriceImpact:
		return fmt.Sprintf("%s: %s", e.Kind, e.Provider)
	case KindProviderFailure:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Kind, e.Err)
		}
	}
	if e.Side != SideNone {
		return fmt.Sprintf("%s %s", e.Kind, e.Side)
	}
	return e.Kind.String()
}

func (e *TradeError) Unwrap() error {
	return e.Err
}

// Is matches another *TradeError of the same kind and side.
func (e *TradeError) Is(target error) bool {
	t, ok := target.(*TradeError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Side == SideNone || t.Side == e.Side)
}

// NewTradeError builds an error of the given kind.
func NewTradeError(kind ErrorKind, side Side) *TradeError {
	return &TradeError{Kind: kind, Side: side}
}

// ProviderFailure wraps an error reported by an external provider.
func ProviderFailure(side Side, err error) *TradeError {
	return &TradeError{Kind: KindProviderFailure, Side: side, Err: err}
}

// KindOf returns the kind of err when it is a *TradeError, 0 otherwise.
func KindOf(err error) ErrorKind {
	var te *TradeError
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}
