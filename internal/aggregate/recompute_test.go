package aggregate

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"liquidityTrade/internal/allowance"
	"liquidityTrade/internal/model"
	"liquidityTrade/internal/quote"
)

var (
	eth  = model.NativeToken("ETH", 18)
	usdc = model.Token{Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Symbol: "USDC", Decimals: 6}
	usdt = model.Token{Address: common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"), Symbol: "USDT", Decimals: 6}
)

type balances map[string]decimal.Decimal

func (b balances) Balance(token model.Token) (decimal.Decimal, bool) {
	v, ok := b[token.String()]
	return v, ok
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func readyQuote() quote.State {
	return quote.State{Kind: model.StateReady, Quote: &model.Quote{Provider: "fake"}, Seq: 1}
}

func allowanceOf(v string) *allowance.State {
	return &allowance.State{Kind: model.StateReady, Record: &model.AllowanceRecord{Value: dec(v)}}
}

func kinds(errs []*model.TradeError) []model.ErrorKind {
	out := make([]model.ErrorKind, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Kind)
	}
	return out
}

func equalKinds(a, b []model.ErrorKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRecomputeHappyPath(t *testing.T) {
	payload := &model.TransactionPayload{To: common.HexToAddress("0x01")}
	in := Input{
		Quote:    readyQuote(),
		Sides:    []Side{{Side: model.SideIn, Token: &eth, Required: dec("1")}},
		Balances: balances{"ETH": dec("2")},
	}

	res := Recompute(in)
	if res.State.Kind != model.StateLoading || !res.NeedsPayload {
		t.Fatalf("expected loading with payload request, got %v needs=%v", res.State.Kind, res.NeedsPayload)
	}

	in.PayloadStatus = PayloadBuilt
	in.Payload = payload
	res = Recompute(in)
	if res.State.Kind != model.StateReady || res.State.Payload != payload {
		t.Fatalf("expected ready with payload, got %+v", res.State)
	}
	if len(res.Errors) != 0 || res.Primary() != nil {
		t.Fatalf("expected no errors, got %v", res.Errors)
	}
}

func TestRecomputeLoadingKeepsPreviousErrors(t *testing.T) {
	previous := []*model.TradeError{model.NewTradeError(model.KindInsufficientBalance, model.SideIn)}
	cases := []struct {
		name string
		in   Input
	}{
		{"quote loading", Input{Quote: quote.State{Kind: model.StateLoading}}},
		{"allowance loading", Input{
			Quote: readyQuote(),
			Sides: []Side{{Side: model.SideIn, Token: &usdc, Required: dec("1"), Allowance: &allowance.State{Kind: model.StateLoading}}},
		}},
		{"approval pending", Input{
			Quote: readyQuote(),
			Sides: []Side{{Side: model.SideOut, Token: &usdc, Required: dec("1"), Allowance: allowanceOf("0"), Pending: model.PendingApproving}},
		}},
		{"payload building", Input{Quote: readyQuote(), PayloadStatus: PayloadBuilding}},
	}
	for _, tc := range cases {
		tc.in.Previous = previous
		res := Recompute(tc.in)
		if res.State.Kind != model.StateLoading {
			t.Fatalf("%s: expected loading, got %v", tc.name, res.State.Kind)
		}
		if len(res.Errors) != 1 || res.Errors[0] != previous[0] {
			t.Fatalf("%s: expected previous errors to persist, got %v", tc.name, res.Errors)
		}
	}
}

func TestRecomputeErrorOrder(t *testing.T) {
	in := Input{
		Quote: quote.State{
			Kind:   model.StateNotReady,
			Errors: []*model.TradeError{model.NewTradeError(model.KindTradeNotFound, model.SideNone)},
		},
		Sides: []Side{
			{Side: model.SideIn, Token: &usdt, Required: dec("10"), Allowance: allowanceOf("5"), MustRevoke: true},
			{Side: model.SideOut, Token: &usdc, Required: dec("10"), Allowance: allowanceOf("0")},
		},
		Balances: balances{"USDT": dec("1"), "USDC": dec("100")},
	}

	res := Recompute(in)
	want := []model.ErrorKind{
		model.KindTradeNotFound,
		model.KindNeedRevokeAllowance,
		model.KindInsufficientAllowance,
		model.KindInsufficientBalance,
	}
	if res.State.Kind != model.StateNotReady {
		t.Fatalf("expected not ready, got %v", res.State.Kind)
	}
	if got := kinds(res.Errors); !equalKinds(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if res.Errors[3].Side != model.SideIn {
		t.Fatalf("expected balance error on input side, got %s", res.Errors[3].Side)
	}
	if res.Primary().Kind != model.KindTradeNotFound {
		t.Fatalf("unexpected primary error %v", res.Primary())
	}
}

func TestRecomputeNoBalance(t *testing.T) {
	in := Input{
		Quote:    readyQuote(),
		Sides:    []Side{{Side: model.SideIn, Token: &usdc, Required: dec("1"), Allowance: allowanceOf("10")}},
		Balances: balances{},
	}
	res := Recompute(in)
	if got := kinds(res.Errors); !equalKinds(got, []model.ErrorKind{model.KindNoBalance}) {
		t.Fatalf("expected no balance, got %v", got)
	}

	in.Sides = append(in.Sides, Side{Side: model.SideOut, Token: &eth, Required: dec("1")})
	in.Balances = balances{"ETH": dec("5")}
	res = Recompute(in)
	if len(res.Errors) != 0 {
		t.Fatalf("one resolved side is enough, got %v", kinds(res.Errors))
	}
}

func TestRecomputeQuiescent(t *testing.T) {
	in := Input{
		Quote:    quote.State{Kind: model.StateNotReady},
		Sides:    []Side{{Side: model.SideIn, Token: &usdc, Required: decimal.Zero, Allowance: allowanceOf("0")}},
		Balances: balances{},
	}
	res := Recompute(in)
	if res.State.Kind != model.StateNotReady || len(res.Errors) != 0 || res.NeedsPayload {
		t.Fatalf("expected quiescent not ready, got %+v", res)
	}
}

func TestRecomputePayloadFailure(t *testing.T) {
	buildErr := model.ProviderFailure(model.SideNone, nil)
	in := Input{
		Quote:         readyQuote(),
		Sides:         []Side{{Side: model.SideIn, Token: &eth, Required: dec("1")}},
		Balances:      balances{"ETH": dec("1")},
		PayloadStatus: PayloadFailed,
		PayloadErr:    buildErr,
	}
	res := Recompute(in)
	if res.State.Kind != model.StateNotReady {
		t.Fatalf("expected not ready, got %v", res.State.Kind)
	}
	if len(res.Errors) != 1 || res.Errors[0] != buildErr {
		t.Fatalf("expected build error, got %v", res.Errors)
	}
}

func TestRecomputeIsDeterministic(t *testing.T) {
	in := Input{
		Quote: readyQuote(),
		Sides: []Side{
			{Side: model.SideIn, Token: &usdt, Required: dec("3"), Allowance: allowanceOf("1"), MustRevoke: true},
			{Side: model.SideOut, Token: &usdc, Required: dec("3"), Allowance: allowanceOf("1")},
		},
		Balances: balances{"USDT": dec("2"), "USDC": dec("2")},
	}
	first := kinds(Recompute(in).Errors)
	for i := 0; i < 20; i++ {
		if got := kinds(Recompute(in).Errors); !equalKinds(got, first) {
			t.Fatalf("run %d: expected %v, got %v", i, first, got)
		}
	}
}
