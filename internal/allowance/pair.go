package allowance

import (
	"github.com/shopspring/decimal"

	"liquidityTrade/internal/model"
)

// Pair tracks the allowances of both tokens of a liquidity position independently.
type Pair struct {
	In  *Reconciler
	Out *Reconciler
}

func NewPair(in, out *Reconciler) *Pair {
	return &Pair{In: in, Out: out}
}

// Loading is true while either side is still being queried.
func (p *Pair) Loading() bool {
	return p.In.Loading() || p.Out.Loading()
}

// Approving is true while either side waits for an approval to confirm.
func (p *Pair) Approving() bool {
	return p.In.Pending() == model.PendingApproving || p.Out.Pending() == model.PendingApproving
}

func (p *Pair) SetTokens(in, out *model.Token) bool {
	changedIn := p.In.SetToken(in)
	changedOut := p.Out.SetToken(out)
	return changedIn || changedOut
}

func (p *Pair) SyncAllowance() {
	p.In.SyncAllowance()
	p.Out.SyncAllowance()
}

// Errors evaluates both sides, input side first.
func (p *Pair) Errors(requiredIn, requiredOut decimal.Decimal) []*model.TradeError {
	var errs []*model.TradeError
	if err := p.In.Error(requiredIn); err != nil {
		errs = append(errs, err)
	}
	if err := p.Out.Error(requiredOut); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func (p *Pair) OnChange(fn func()) {
	p.In.OnChange(fn)
	p.Out.OnChange(fn)
}

func (p *Pair) Close() {
	p.In.Close()
	p.Out.Close()
}
