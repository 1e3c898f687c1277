package allowance

import (
	"github.com/shopspring/decimal"

	"liquidityTrade/internal/model"
)

// Evaluate checks an allowance state against the amount a trade will spend.
//
// It returns at most one error. A token that must be revoked and holds a non-zero but
// insufficient allowance reports NeedRevokeAllowance instead of InsufficientAllowance.
func Evaluate(state State, required decimal.Decimal, mustRevoke bool, side model.Side) *model.TradeError {
	if state.Kind != model.StateReady {
		return state.Err
	}
	if state.Record == nil || !required.IsPositive() {
		return nil
	}

	current := state.Record.Value
	if current.GreaterThanOrEqual(required) {
		return nil
	}
	if mustRevoke && current.IsPositive() {
		return &model.TradeError{Kind: model.KindNeedRevokeAllowance, Side: side, Allowance: current}
	}
	return model.NewTradeError(model.KindInsufficientAllowance, side)
}
