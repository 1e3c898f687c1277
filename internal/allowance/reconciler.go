// Package allowance tracks the ERC20 allowance a spender holds for one token, plus the
// optimistic approval state layered over it while approve/revoke transactions confirm.
//
// Like the quote engine, a Reconciler is owned by a coordination loop: its methods must run on
// that loop and query results are posted back onto it.
package allowance

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityTrade/internal/model"
)

var errUntracked = errors.New("token has no allowance to manage")

// Provider reads allowances and builds approval payloads.
type Provider interface {
	Allowance(ctx context.Context, token model.Token, spender common.Address) (decimal.Decimal, error)
	BuildApprove(token model.Token, spender common.Address, amount decimal.Decimal) (model.TransactionPayload, error)
	BuildRevoke(token model.Token, spender common.Address) (model.TransactionPayload, error)
}

// RevokePolicy reports tokens that must be reset to zero before a new non-zero approval.
type RevokePolicy func(model.Token) bool

// NeverRevoke is the policy for chains without reset-to-zero tokens.
func NeverRevoke(model.Token) bool { return false }

// RevokeList builds a policy from a fixed set of contract addresses.
func RevokeList(addresses ...common.Address) RevokePolicy {
	set := make(map[common.Address]struct{}, len(addresses))
	for _, a := range addresses {
		set[a] = struct{}{}
	}
	return func(token model.Token) bool {
		if token.Native {
			return false
		}
		_, ok := set[token.Address]
		return ok
	}
}

// State is the observed allowance. Record is set when Kind is StateReady, Err when a query failed.
type State struct {
	Kind   model.StateKind
	Record *model.AllowanceRecord
	Err    *model.TradeError
}

// Config identifies what a reconciler tracks.
type Config struct {
	Spender       common.Address
	Side          model.Side
	MustBeRevoked RevokePolicy
}

type Reconciler struct {
	ctx      context.Context
	provider Provider
	post     func(func()) bool
	cfg      Config
	logger   *zap.Logger

	token         *model.Token
	state         State
	pending       model.PendingApprovalState
	pendingAmount decimal.Decimal

	gen    uint64
	cancel context.CancelFunc

	onChange func()
}

func NewReconciler(ctx context.Context, provider Provider, post func(func()) bool, cfg Config, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MustBeRevoked == nil {
		cfg.MustBeRevoked = NeverRevoke
	}
	return &Reconciler{
		ctx:      ctx,
		provider: provider,
		post:     post,
		cfg:      cfg,
		logger:   logger.With(zap.String("side", cfg.Side.String())),
		state:    State{Kind: model.StateNotReady},
	}
}

// OnChange registers a listener called on the loop after every state or pending change.
func (r *Reconciler) OnChange(fn func()) { r.onChange = fn }

func (r *Reconciler) Token() *model.Token {
	if r.token == nil {
		return nil
	}
	t := *r.token
	return &t
}

func (r *Reconciler) State() State { return r.state }

func (r *Reconciler) Pending() model.PendingApprovalState { return r.pending }

func (r *Reconciler) Side() model.Side { return r.cfg.Side }

// Tracked is false for an unset or native token; neither needs an allowance.
func (r *Reconciler) Tracked() bool {
	return r.token != nil && !r.token.Native
}

func (r *Reconciler) Loading() bool {
	return r.Tracked() && r.state.Kind == model.StateLoading
}

// MustRevoke reports whether the tracked token is subject to revoke-before-approve.
func (r *Reconciler) MustRevoke() bool {
	return r.Tracked() && r.cfg.MustBeRevoked(*r.token)
}

// Error evaluates the current allowance against required.
func (r *Reconciler) Error(required decimal.Decimal) *model.TradeError {
	if !r.Tracked() {
		return nil
	}
	return Evaluate(r.state, required, r.MustRevoke(), r.cfg.Side)
}

// SetToken switches the tracked token, dropping the pending state and re-querying.
// It reports whether the token changed.
func (r *Reconciler) SetToken(token *model.Token) bool {
	if model.SameToken(r.token, token) {
		return false
	}
	if token == nil {
		r.token = nil
	} else {
		t := *token
		r.token = &t
	}
	r.pending = model.PendingIdle
	r.pendingAmount = decimal.Zero
	r.fetch(true)
	return true
}

// SyncAllowance re-queries the allowance and resolves the pending state from the result.
// The published state stays as is until the answer arrives.
func (r *Reconciler) SyncAllowance() {
	r.fetch(false)
}

// ApproveSubmitted marks an approve transaction for amount as sent.
func (r *Reconciler) ApproveSubmitted(amount decimal.Decimal) bool {
	if !r.setPending(model.PendingApproving) {
		return false
	}
	r.pendingAmount = amount
	r.notify()
	return true
}

// ApproveFailed returns a pending approval to idle.
func (r *Reconciler) ApproveFailed() bool {
	if r.pending != model.PendingApproving || !r.setPending(model.PendingIdle) {
		return false
	}
	r.pendingAmount = decimal.Zero
	r.notify()
	return true
}

// RevokeSubmitted marks a revoke transaction as sent.
func (r *Reconciler) RevokeSubmitted() bool {
	if !r.setPending(model.PendingRevoking) {
		return false
	}
	r.notify()
	return true
}

// ApproveData builds the approve payload for amount. Nothing is submitted.
func (r *Reconciler) ApproveData(amount decimal.Decimal) (model.TransactionPayload, error) {
	if !r.Tracked() {
		return model.TransactionPayload{}, errUntracked
	}
	return r.provider.BuildApprove(*r.token, r.cfg.Spender, amount)
}

// RevokeData builds the payload that resets the allowance to zero.
func (r *Reconciler) RevokeData() (model.TransactionPayload, error) {
	if !r.Tracked() {
		return model.TransactionPayload{}, errUntracked
	}
	return r.provider.BuildRevoke(*r.token, r.cfg.Spender)
}

// Close cancels the in-flight query.
func (r *Reconciler) Close() {
	r.stop()
}

func (r *Reconciler) setPending(to model.PendingApprovalState) bool {
	if !CanTransition(r.pending, to) {
		r.logger.Debug("pending transition refused",
			zap.String("from", r.pending.String()),
			zap.String("to", to.String()),
		)
		return false
	}
	r.pending = to
	return true
}

func (r *Reconciler) fetch(reset bool) {
	r.stop()
	if !r.Tracked() {
		r.state = State{Kind: model.StateNotReady}
		r.notify()
		return
	}

	r.gen++
	gen := r.gen
	token := *r.token
	spender := r.cfg.Spender
	ctx, cancel := context.WithCancel(r.ctx)
	r.cancel = cancel

	if reset {
		r.state = State{Kind: model.StateLoading}
		r.notify()
	}

	provider := r.provider
	go func() {
		value, err := provider.Allowance(ctx, token, spender)
		r.post(func() { r.apply(gen, token, value, err) })
	}()
}

func (r *Reconciler) apply(gen uint64, token model.Token, value decimal.Decimal, err error) {
	if gen != r.gen || r.token == nil || !r.token.Equal(token) {
		r.logger.Debug("allowance discarded", zap.String("token", token.String()), zap.Uint64("gen", gen))
		return
	}
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}

	if err != nil {
		r.logger.Warn("allowance query failed", zap.String("token", token.String()), zap.Error(err))
		r.state = State{
			Kind: model.StateNotReady,
			Err:  model.ProviderFailure(r.cfg.Side, fmt.Errorf("allowance %s: %w", token, err)),
		}
		r.notify()
		return
	}

	r.state = State{Kind: model.StateReady, Record: &model.AllowanceRecord{Token: token, Value: value}}
	r.resolvePending(value)
	r.notify()
}

// resolvePending settles the optimistic state once a fresh allowance is known.
func (r *Reconciler) resolvePending(value decimal.Decimal) {
	switch r.pending {
	case model.PendingApproving:
		if value.GreaterThanOrEqual(r.pendingAmount) && value.IsPositive() {
			r.setPending(model.PendingApproved)
		} else {
			r.setPending(model.PendingIdle)
		}
		r.pendingAmount = decimal.Zero
	case model.PendingRevoking, model.PendingApproved:
		r.setPending(model.PendingIdle)
	}
}

func (r *Reconciler) stop() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.gen++
}

func (r *Reconciler) notify() {
	if r.onChange != nil {
		r.onChange()
	}
}
