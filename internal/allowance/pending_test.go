package allowance

import (
	"testing"

	"github.com/shopspring/decimal"

	"liquidityTrade/internal/model"
)

func TestCanTransition(t *testing.T) {
	states := []model.PendingApprovalState{
		model.PendingIdle, model.PendingApproving, model.PendingApproved, model.PendingRevoking,
	}
	allowed := map[[2]model.PendingApprovalState]bool{
		{model.PendingIdle, model.PendingApproving}:     true,
		{model.PendingApproving, model.PendingApproved}: true,
		{model.PendingApproving, model.PendingIdle}:     true,
		{model.PendingIdle, model.PendingRevoking}:      true,
		{model.PendingRevoking, model.PendingIdle}:      true,
		{model.PendingApproved, model.PendingIdle}:      true,
		{model.PendingApproved, model.PendingApproving}: true,
		{model.PendingApproved, model.PendingRevoking}:  true,
	}
	for _, from := range states {
		for _, to := range states {
			want := allowed[[2]model.PendingApprovalState{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Fatalf("%s -> %s: expected %v, got %v", from, to, want, got)
			}
		}
	}
}

func ready(value string) State {
	return State{
		Kind:   model.StateReady,
		Record: &model.AllowanceRecord{Value: decimal.RequireFromString(value)},
	}
}

func TestEvaluateMutualExclusion(t *testing.T) {
	required := decimal.NewFromInt(10)
	for _, current := range []string{"0", "0.5", "5", "9.999", "10", "15"} {
		for _, mustRevoke := range []bool{false, true} {
			err := Evaluate(ready(current), required, mustRevoke, model.SideIn)
			value := decimal.RequireFromString(current)

			switch {
			case value.GreaterThanOrEqual(required):
				if err != nil {
					t.Fatalf("allowance %s covers %s, got %v", current, required, err)
				}
			case mustRevoke && value.IsPositive():
				if err == nil || err.Kind != model.KindNeedRevokeAllowance {
					t.Fatalf("allowance %s with revoke policy: expected need revoke, got %v", current, err)
				}
				if !err.Allowance.Equal(value) {
					t.Fatalf("expected allowance %s on error, got %s", current, err.Allowance)
				}
			default:
				if err == nil || err.Kind != model.KindInsufficientAllowance {
					t.Fatalf("allowance %s: expected insufficient allowance, got %v", current, err)
				}
			}
			if err != nil && err.Side != model.SideIn {
				t.Fatalf("expected side in, got %s", err.Side)
			}
		}
	}
}

func TestEvaluateSkipsZeroRequirement(t *testing.T) {
	if err := Evaluate(ready("0"), decimal.Zero, true, model.SideIn); err != nil {
		t.Fatalf("expected no error for zero requirement, got %v", err)
	}
	if err := Evaluate(State{Kind: model.StateLoading}, decimal.NewFromInt(1), false, model.SideIn); err != nil {
		t.Fatalf("expected no error while loading, got %v", err)
	}
	failed := State{Kind: model.StateNotReady, Err: model.NewTradeError(model.KindProviderFailure, model.SideOut)}
	if err := Evaluate(failed, decimal.NewFromInt(1), false, model.SideOut); err != failed.Err {
		t.Fatalf("expected query error to pass through, got %v", err)
	}
}
