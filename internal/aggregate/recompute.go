// Package aggregate folds the quote, allowance and balance states of a trade into one
// readiness state plus an ordered error list.
package aggregate

import (
	"github.com/shopspring/decimal"

	"liquidityTrade/internal/allowance"
	"liquidityTrade/internal/model"
	"liquidityTrade/internal/quote"
)

// BalanceProvider answers with the holder's balance of token, if it is known.
type BalanceProvider interface {
	Balance(token model.Token) (decimal.Decimal, bool)
}

// Side is one token the trade spends.
type Side struct {
	Side     model.Side
	Token    *model.Token
	Required decimal.Decimal
	// Allowance is nil when the side needs no approval (native coin, untracked side).
	Allowance  *allowance.State
	MustRevoke bool
	Pending    model.PendingApprovalState
}

// PayloadStatus tracks the transaction build for the current ready quote.
type PayloadStatus int

const (
	PayloadNone PayloadStatus = iota
	PayloadBuilding
	PayloadBuilt
	PayloadFailed
)

// Input is one snapshot of everything readiness depends on.
type Input struct {
	Quote    quote.State
	Sides    []Side
	Balances BalanceProvider

	PayloadStatus PayloadStatus
	Payload       *model.TransactionPayload
	PayloadErr    *model.TradeError

	// Previous is the error list published last; it is kept while anything is loading.
	Previous []*model.TradeError
}

type Result struct {
	State  model.AggregatedState
	Errors []*model.TradeError
	// NeedsPayload asks the caller to build the payload for the ready quote.
	NeedsPayload bool
}

// Primary returns the error a consumer should act on first.
func (r Result) Primary() *model.TradeError {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

// Recompute derives the aggregated state. It never fails and has no side effects.
func Recompute(in Input) Result {
	if loading(in) {
		return Result{State: model.AggregatedState{Kind: model.StateLoading}, Errors: in.Previous}
	}

	errs := collect(in)
	if len(errs) > 0 {
		return Result{State: model.AggregatedState{Kind: model.StateNotReady}, Errors: errs}
	}

	if in.Quote.Kind == model.StateReady {
		switch in.PayloadStatus {
		case PayloadBuilt:
			return Result{State: model.AggregatedState{Kind: model.StateReady, Payload: in.Payload}}
		case PayloadFailed:
			return Result{
				State:  model.AggregatedState{Kind: model.StateNotReady},
				Errors: append(errs, in.PayloadErr),
			}
		default:
			return Result{State: model.AggregatedState{Kind: model.StateLoading}, NeedsPayload: true}
		}
	}

	return Result{State: model.AggregatedState{Kind: model.StateNotReady}}
}

func loading(in Input) bool {
	if in.Quote.Kind == model.StateLoading || in.PayloadStatus == PayloadBuilding {
		return true
	}
	for _, side := range in.Sides {
		if side.Allowance != nil && side.Allowance.Kind == model.StateLoading {
			return true
		}
		if side.Pending == model.PendingApproving {
			return true
		}
	}
	return false
}

// collect gathers quote, allowance and balance errors, in that order.
func collect(in Input) []*model.TradeError {
	var errs []*model.TradeError
	errs = append(errs, in.Quote.Errors...)

	var checked []Side
	for _, side := range in.Sides {
		if side.Token != nil && side.Required.IsPositive() {
			checked = append(checked, side)
		}
	}

	for _, side := range checked {
		if side.Allowance == nil {
			continue
		}
		if err := allowance.Evaluate(*side.Allowance, side.Required, side.MustRevoke, side.Side); err != nil {
			errs = append(errs, err)
		}
	}

	if len(checked) == 0 {
		return errs
	}
	resolved := false
	for _, side := range checked {
		if in.Balances == nil {
			break
		}
		balance, ok := in.Balances.Balance(*side.Token)
		if !ok {
			continue
		}
		resolved = true
		if balance.LessThan(side.Required) {
			errs = append(errs, model.NewTradeError(model.KindInsufficientBalance, side.Side))
		}
	}
	if !resolved {
		errs = append(errs, model.NewTradeError(model.KindNoBalance, model.SideNone))
	}
	return errs
}
