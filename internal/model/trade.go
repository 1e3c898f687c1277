package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TradeDirection selects which amount the user owns.
type TradeDirection int

const (
	ExactIn TradeDirection = iota
	ExactOut
)

func (d TradeDirection) String() string {
	if d == ExactOut {
		return "exact_out"
	}
	return "exact_in"
}

// TradeOptions are applied when the final payload is built.
type TradeOptions struct {
	Slippage  decimal.Decimal `json:"slippage"`
	Deadline  time.Duration   `json:"deadline"`
	Recipient *common.Address `json:"recipient,omitempty"`
}

// Equal compares option values.
func (o TradeOptions) Equal(other TradeOptions) bool {
	if !o.Slippage.Equal(other.Slippage) || o.Deadline != other.Deadline {
		return false
	}
	if o.Recipient == nil || other.Recipient == nil {
		return o.Recipient == nil && other.Recipient == nil
	}
	return *o.Recipient == *other.Recipient
}

// DefaultTradeOptions mirrors common wallet defaults: 0.5% slippage, 20 minute deadline.
func DefaultTradeOptions() TradeOptions {
	return TradeOptions{
		Slippage: decimal.NewFromFloat(0.5),
		Deadline: 20 * time.Minute,
	}
}

// WithDefaults fills the zero fields from DefaultTradeOptions and keeps everything else.
func (o TradeOptions) WithDefaults() TradeOptions {
	def := DefaultTradeOptions()
	if o.Slippage.IsZero() {
		o.Slippage = def.Slippage
	}
	if o.Deadline == 0 {
		o.Deadline = def.Deadline
	}
	return o
}

// QuoteRequest is the immutable input of one provider call.
type QuoteRequest struct {
	TokenIn   Token
	TokenOut  Token
	Amount    decimal.Decimal
	Direction TradeDirection
	TickMode  TickMode
}

// QuoteTicks carries tick metadata implied by a quote.
type QuoteTicks struct {
	Current int32 `json:"current"`
	Lower   int32 `json:"lower"`
	Upper   int32 `json:"upper"`
	Spacing int32 `json:"spacing"`
}

// Quote is the result of one successful provider call.
type Quote struct {
	Provider       string           `json:"provider"`
	TokenIn        Token            `json:"token_in"`
	TokenOut       Token            `json:"token_out"`
	Direction      TradeDirection   `json:"direction"`
	AmountIn       decimal.Decimal  `json:"amount_in"`
	AmountOut      decimal.Decimal  `json:"amount_out"`
	ExecutionPrice decimal.Decimal  `json:"execution_price"`
	InvertedPrice  decimal.Decimal  `json:"inverted_price"`
	PriceImpact    *decimal.Decimal `json:"price_impact,omitempty"`
	Fee            uint32           `json:"fee"`
	Ticks          *QuoteTicks      `json:"ticks,omitempty"`
	TickMode       TickMode         `json:"-"`
}

// ImpactLevel classifies the quote's price impact; a missing impact is negligible.
func (q Quote) ImpactLevel() PriceImpactLevel {
	if q.PriceImpact == nil {
		return ImpactNegligible
	}
	return ImpactLevelOf(*q.PriceImpact)
}

// PriceImpactLevel is ordered: a higher impact never maps to a lower level.
type PriceImpactLevel int

const (
	ImpactNegligible PriceImpactLevel = iota
	ImpactNormal
	ImpactWarning
	ImpactForbidden
)

var (
	impactNormalThreshold    = decimal.NewFromInt(1)
	impactWarningThreshold   = decimal.NewFromInt(5)
	impactForbiddenThreshold = decimal.NewFromInt(20)
)

// ImpactLevelOf maps a percentage to its level.
func ImpactLevelOf(impact decimal.Decimal) PriceImpactLevel {
	switch {
	case impact.LessThan(impactNormalThreshold):
		return ImpactNegligible
	case impact.LessThan(impactWarningThreshold):
		return ImpactNormal
	case impact.LessThan(impactForbiddenThreshold):
		return ImpactWarning
	default:
		return ImpactForbidden
	}
}

func (l PriceImpactLevel) String() string {
	switch l {
	case ImpactNormal:
		return "normal"
	case ImpactWarning:
		return "warning"
	case ImpactForbidden:
		return "forbidden"
	default:
		return "negligible"
	}
}

// TransactionPayload is an unsigned EVM call ready to hand to a sender.
type TransactionPayload struct {
	To          common.Address `json:"to"`
	Value       *big.Int       `json:"value"`
	Data        []byte         `json:"data"`
	Description string         `json:"description,omitempty"`
}
