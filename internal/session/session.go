// Package session coordinates one trade: a quote engine, the allowance reconcilers of the
// tokens it spends, and the balance view, all serialized on a single loop.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityTrade/internal/aggregate"
	"liquidityTrade/internal/allowance"
	"liquidityTrade/internal/loop"
	"liquidityTrade/internal/model"
	"liquidityTrade/internal/quote"
	"liquidityTrade/internal/ticks"
)

var (
	// ErrNotReady is returned by Proceed while the aggregated state is not Ready.
	ErrNotReady = errors.New("trade is not ready")
	// ErrNoSuchSide is returned for approval commands on a side the session does not track.
	ErrNoSuchSide = errors.New("side has no allowance tracking")
	// ErrApprovalState is returned when the side's pending approval state refuses a command.
	ErrApprovalState = errors.New("approval state does not allow this command")
)

// Mode selects what the session trades.
type Mode int

const (
	ModeSwap Mode = iota
	ModeLiquidity
)

func (m Mode) String() string {
	if m == ModeLiquidity {
		return "liquidity"
	}
	return "swap"
}

// Balances is the balance view the session reads from and refreshes.
type Balances interface {
	aggregate.BalanceProvider
	Refresh(ctx context.Context, tokens ...model.Token) error
}

// Init is the trade the session opens with.
type Init struct {
	TokenIn   *model.Token
	TokenOut  *model.Token
	Amount    decimal.Decimal
	Direction model.TradeDirection
	TickMode  *model.TickMode
}

type Config struct {
	Mode Mode
	// Spender is the contract the spent tokens are approved for.
	Spender       common.Address
	MustBeRevoked allowance.RevokePolicy
	Quote         quote.Config
	Init          Init
}

type Session struct {
	id       string
	cfg      Config
	ctx      context.Context
	cancel   context.CancelFunc
	loop     *loop.Loop
	logger   *zap.Logger
	balances Balances

	engine *quote.Engine
	in     *allowance.Reconciler
	out    *allowance.Reconciler
	// pair is set in liquidity mode, where both tokens are spent.
	pair *allowance.Pair

	payloadSeq    uint64
	payloadStatus aggregate.PayloadStatus
	payload       *model.TransactionPayload
	payloadErr    *model.TradeError
	payloadCancel context.CancelFunc

	result    aggregate.Result
	published uint64
	last      Snapshot

	updates   chan Snapshot
	countdown chan float64
}

// New wires a session. Nothing runs until Run is called.
func New(parent context.Context, provider quote.Provider, allowances allowance.Provider, balances Balances, cfg Config, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	logger = logger.With(zap.String("session", id), zap.String("mode", cfg.Mode.String()))

	ctx, cancel := context.WithCancel(parent)
	l := loop.New()
	s := &Session{
		id:        id,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		loop:      l,
		logger:    logger,
		balances:  balances,
		updates:   make(chan Snapshot, 64),
		countdown: make(chan float64, 1),
		result:    aggregate.Result{State: model.AggregatedState{Kind: model.StateNotReady}},
	}

	s.engine = quote.NewEngine(ctx, provider, l.Post, cfg.Quote, logger)
	s.in = allowance.NewReconciler(ctx, allowances, l.Post, allowance.Config{
		Spender:       cfg.Spender,
		Side:          model.SideIn,
		MustBeRevoked: cfg.MustBeRevoked,
	}, logger)
	if cfg.Mode == ModeLiquidity {
		s.out = allowance.NewReconciler(ctx, allowances, l.Post, allowance.Config{
			Spender:       cfg.Spender,
			Side:          model.SideOut,
			MustBeRevoked: cfg.MustBeRevoked,
		}, logger)
		s.pair = allowance.NewPair(s.in, s.out)
	}

	s.engine.OnState(s.onQuoteState)
	s.engine.OnCountdown(func(f float64) { offer(s.countdown, f) })
	if s.pair != nil {
		s.pair.OnChange(s.recompute)
	} else {
		s.in.OnChange(s.recompute)
	}
	return s
}

func (s *Session) ID() string { return s.id }

// Updates delivers published snapshots. When the consumer falls behind the oldest are dropped.
// The channel is closed when Run returns.
func (s *Session) Updates() <-chan Snapshot { return s.updates }

// Countdown delivers the remaining fraction until the next forced re-quote.
func (s *Session) Countdown() <-chan float64 { return s.countdown }

// Run applies the initial trade and processes commands until ctx is done or Close is called.
func (s *Session) Run(ctx context.Context) error {
	sessionsActive.Inc()
	defer sessionsActive.Dec()
	defer close(s.updates)
	defer close(s.countdown)
	defer s.cancel()

	s.loop.Post(s.start)
	s.logger.Info("session started")

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		select {
		case <-s.ctx.Done():
			stop()
		case <-runCtx.Done():
		}
	}()

	err := s.loop.Run(runCtx)
	s.logger.Info("session stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close stops the session's loop and every outstanding request.
func (s *Session) Close() {
	s.cancel()
}

func (s *Session) start() {
	seed := s.cfg.Init
	if seed.TickMode != nil {
		s.engine.SetTickMode(*seed.TickMode)
	}
	s.engine.SetTokenIn(seed.TokenIn)
	s.engine.SetTokenOut(seed.TokenOut)
	s.engine.SetAmount(seed.Amount, seed.Direction)
	s.tokensChanged()
}

// Snapshot returns the last published snapshot.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.loop.Do(ctx, func() { snap = s.last })
	return snap, err
}

func (s *Session) SetTokenIn(ctx context.Context, token *model.Token) error {
	return s.loop.Do(ctx, func() {
		if s.engine.SetTokenIn(token) {
			s.tokensChanged()
		}
	})
}

func (s *Session) SetTokenOut(ctx context.Context, token *model.Token) error {
	return s.loop.Do(ctx, func() {
		if s.engine.SetTokenOut(token) {
			s.tokensChanged()
		}
	})
}

func (s *Session) SetAmount(ctx context.Context, value decimal.Decimal, direction model.TradeDirection) error {
	return s.loop.Do(ctx, func() { s.engine.SetAmount(value, direction) })
}

func (s *Session) SetTickMode(ctx context.Context, mode model.TickMode) error {
	return s.loop.Do(ctx, func() { s.engine.SetTickMode(mode) })
}

func (s *Session) SetOptions(ctx context.Context, opts model.TradeOptions) error {
	return s.loop.Do(ctx, func() { s.engine.SetOptions(opts) })
}

// SetBoundFromPrice sets a range edge from a price of the input token in the output token.
func (s *Session) SetBoundFromPrice(ctx context.Context, edge ticks.Edge, price decimal.Decimal) error {
	var err error
	if doErr := s.loop.Do(ctx, func() { _, err = s.engine.SetBoundFromPrice(edge, price) }); doErr != nil {
		return doErr
	}
	return err
}

func (s *Session) StepBound(ctx context.Context, edge ticks.Edge, step ticks.Step) error {
	return s.loop.Do(ctx, func() { s.engine.StepBound(edge, step) })
}

func (s *Session) SetFullRange(ctx context.Context) error {
	return s.loop.Do(ctx, func() { s.engine.SetFullRange() })
}

func (s *Session) SetMultiplierRange(ctx context.Context, value decimal.Decimal) error {
	return s.loop.Do(ctx, func() { s.engine.SetMultiplierRange(value) })
}

// Refresh re-quotes immediately.
func (s *Session) Refresh(ctx context.Context) error {
	return s.loop.Do(ctx, s.engine.Refresh)
}

// ApproveData builds the approve payload for one side.
func (s *Session) ApproveData(ctx context.Context, side model.Side, amount decimal.Decimal) (model.TransactionPayload, error) {
	var (
		payload model.TransactionPayload
		err     error
	)
	doErr := s.loop.Do(ctx, func() {
		r, sideErr := s.reconciler(side)
		if sideErr != nil {
			err = sideErr
			return
		}
		payload, err = r.ApproveData(amount)
	})
	if doErr != nil {
		return model.TransactionPayload{}, doErr
	}
	return payload, err
}

// RevokeData builds the payload resetting one side's allowance to zero.
func (s *Session) RevokeData(ctx context.Context, side model.Side) (model.TransactionPayload, error) {
	var (
		payload model.TransactionPayload
		err     error
	)
	doErr := s.loop.Do(ctx, func() {
		r, sideErr := s.reconciler(side)
		if sideErr != nil {
			err = sideErr
			return
		}
		payload, err = r.RevokeData()
	})
	if doErr != nil {
		return model.TransactionPayload{}, doErr
	}
	return payload, err
}

// ApproveSubmitted marks an approve transaction for amount as sent on one side.
func (s *Session) ApproveSubmitted(ctx context.Context, side model.Side, amount decimal.Decimal) error {
	return s.onSide(ctx, side, "approve submitted", func(r *allowance.Reconciler) bool { return r.ApproveSubmitted(amount) })
}

// ApproveFailed drops a pending approval on one side.
func (s *Session) ApproveFailed(ctx context.Context, side model.Side) error {
	return s.onSide(ctx, side, "approve failed", func(r *allowance.Reconciler) bool { return r.ApproveFailed() })
}

// RevokeSubmitted marks a revoke transaction as sent on one side.
func (s *Session) RevokeSubmitted(ctx context.Context, side model.Side) error {
	return s.onSide(ctx, side, "revoke submitted", func(r *allowance.Reconciler) bool { return r.RevokeSubmitted() })
}

// SyncAllowance re-reads every tracked allowance and settles pending approvals.
func (s *Session) SyncAllowance(ctx context.Context) error {
	return s.loop.Do(ctx, func() {
		if s.pair != nil {
			s.pair.SyncAllowance()
			return
		}
		s.in.SyncAllowance()
	})
}

// RefreshBalances reloads the balances of the current tokens and recomputes.
func (s *Session) RefreshBalances(ctx context.Context) error {
	if s.balances == nil {
		return nil
	}
	var tokens []model.Token
	if err := s.loop.Do(ctx, func() { tokens = s.tokens() }); err != nil {
		return err
	}
	refreshErr := s.balances.Refresh(ctx, tokens...)
	if err := s.loop.Do(ctx, s.recompute); err != nil {
		return err
	}
	if refreshErr != nil {
		return fmt.Errorf("refresh balances: %w", refreshErr)
	}
	return nil
}

// Proceed returns the payload to send. It refuses unless the trade is Ready, and refuses a
// quote whose price impact is forbidden even though the trade itself is Ready.
func (s *Session) Proceed(ctx context.Context) (model.TransactionPayload, error) {
	var (
		payload model.TransactionPayload
		err     error
	)
	doErr := s.loop.Do(ctx, func() {
		state := s.result.State
		if state.Kind != model.StateReady || state.Payload == nil {
			err = ErrNotReady
			proceedRefused.WithLabelValues("not_ready").Inc()
			return
		}
		q := s.engine.State().Quote
		if q != nil && q.ImpactLevel() == model.ImpactForbidden {
			err = &model.TradeError{Kind: model.KindForbiddenPriceImpact, Provider: q.Provider}
			proceedRefused.WithLabelValues(model.KindForbiddenPriceImpact.String()).Inc()
			return
		}
		payload = *state.Payload
	})
	if doErr != nil {
		return model.TransactionPayload{}, doErr
	}
	if err == nil {
		s.logger.Info("payload released", zap.String("to", payload.To.Hex()), zap.String("description", payload.Description))
	}
	return payload, err
}

func (s *Session) onSide(ctx context.Context, side model.Side, command string, fn func(*allowance.Reconciler) bool) error {
	var err error
	doErr := s.loop.Do(ctx, func() {
		r, sideErr := s.reconciler(side)
		if sideErr != nil {
			err = sideErr
			return
		}
		if !fn(r) {
			err = fmt.Errorf("%w: %s on %s side while %s", ErrApprovalState, command, side, r.Pending())
		}
	})
	if doErr != nil {
		return doErr
	}
	return err
}

func (s *Session) reconciler(side model.Side) (*allowance.Reconciler, error) {
	switch {
	case side == model.SideIn:
		return s.in, nil
	case side == model.SideOut && s.out != nil:
		return s.out, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrNoSuchSide, side.String())
	}
}

func (s *Session) tokens() []model.Token {
	var tokens []model.Token
	if t := s.engine.TokenIn(); t != nil {
		tokens = append(tokens, *t)
	}
	if t := s.engine.TokenOut(); t != nil && s.cfg.Mode == ModeLiquidity {
		tokens = append(tokens, *t)
	}
	return tokens
}

// tokensChanged points the reconcilers at the current tokens and reloads balances.
func (s *Session) tokensChanged() {
	if s.pair != nil {
		s.pair.SetTokens(s.engine.TokenIn(), s.engine.TokenOut())
	} else {
		s.in.SetToken(s.engine.TokenIn())
	}

	tokens := s.tokens()
	if len(tokens) > 0 && s.balances != nil {
		ctx := s.ctx
		go func() {
			if err := s.balances.Refresh(ctx, tokens...); err != nil {
				s.logger.Warn("balance refresh failed", zap.Error(err))
			}
			s.loop.Post(s.recompute)
		}()
	}
	s.recompute()
}

func (s *Session) onQuoteState(st quote.State) {
	if st.Kind != model.StateReady || st.Seq != s.payloadSeq {
		s.resetPayload()
	}
	s.recompute()
}

func (s *Session) sides() []aggregate.Side {
	sides := []aggregate.Side{s.side(s.in, s.engine.TokenIn(), s.engine.AmountIn())}
	if s.out != nil {
		sides = append(sides, s.side(s.out, s.engine.TokenOut(), s.engine.AmountOut()))
	}
	return sides
}

func (s *Session) side(r *allowance.Reconciler, token *model.Token, required decimal.Decimal) aggregate.Side {
	side := aggregate.Side{
		Side:       r.Side(),
		Token:      token,
		Required:   required,
		MustRevoke: r.MustRevoke(),
		Pending:    r.Pending(),
	}
	if r.Tracked() {
		st := r.State()
		side.Allowance = &st
	}
	return side
}

func (s *Session) recompute() {
	input := aggregate.Input{
		Quote:         s.engine.State(),
		Sides:         s.sides(),
		Balances:      s.balances,
		PayloadStatus: s.payloadStatus,
		Payload:       s.payload,
		PayloadErr:    s.payloadErr,
		Previous:      s.result.Errors,
	}
	res := aggregate.Recompute(input)
	if res.NeedsPayload {
		s.buildPayload(input.Quote)
		input.PayloadStatus = s.payloadStatus
		res = aggregate.Recompute(input)
	}
	s.result = res
	s.publish()
}

func (s *Session) buildPayload(st quote.State) {
	if st.Quote == nil {
		return
	}
	s.resetPayload()
	seq := st.Seq
	q := *st.Quote
	provider := s.engine.Provider()
	opts := s.engine.Options()
	ctx, cancel := context.WithCancel(s.ctx)

	s.payloadSeq = seq
	s.payloadStatus = aggregate.PayloadBuilding
	s.payloadCancel = cancel

	go func() {
		payload, err := provider.BuildTransaction(ctx, q, opts)
		s.loop.Post(func() { s.applyPayload(seq, payload, err) })
	}()
}

func (s *Session) applyPayload(seq uint64, payload model.TransactionPayload, err error) {
	if seq != s.payloadSeq || s.payloadStatus != aggregate.PayloadBuilding {
		return
	}
	if s.payloadCancel != nil {
		s.payloadCancel()
		s.payloadCancel = nil
	}

	if err != nil {
		name := s.engine.Provider().Name()
		s.logger.Warn("payload build failed", zap.Uint64("seq", seq), zap.Error(err))
		s.payloadStatus = aggregate.PayloadFailed
		s.payloadErr = &model.TradeError{
			Kind:     model.KindProviderFailure,
			Provider: name,
			Err:      fmt.Errorf("%s: build transaction: %w", name, err),
		}
	} else {
		s.payloadStatus = aggregate.PayloadBuilt
		s.payload = &payload
	}
	s.recompute()
}

func (s *Session) resetPayload() {
	if s.payloadCancel != nil {
		s.payloadCancel()
		s.payloadCancel = nil
	}
	s.payloadSeq = 0
	s.payloadStatus = aggregate.PayloadNone
	s.payload = nil
	s.payloadErr = nil
}

func (s *Session) publish() {
	s.published++
	lower, upper := s.engine.Bounds()
	snap := Snapshot{
		SessionID: s.id,
		Seq:       s.published,
		Mode:      s.cfg.Mode,
		State:     s.result.State,
		Errors:    append([]*model.TradeError(nil), s.result.Errors...),
		Quote:     s.engine.State(),
		TokenIn:   s.engine.TokenIn(),
		TokenOut:  s.engine.TokenOut(),
		AmountIn:  s.engine.AmountIn(),
		AmountOut: s.engine.AmountOut(),
		Direction: s.engine.Direction(),
		TickMode:  s.engine.TickMode(),
		Lower:     lower,
		Upper:     upper,
	}
	for _, r := range []*allowance.Reconciler{s.in, s.out} {
		if r == nil {
			continue
		}
		snap.Sides = append(snap.Sides, SideSnapshot{
			Side:      r.Side(),
			Token:     r.Token(),
			Tracked:   r.Tracked(),
			Allowance: r.State(),
			Pending:   r.Pending(),
		})
	}
	s.last = snap
	snapshotsPublished.WithLabelValues(snap.State.Kind.String()).Inc()

	if s.logger.Core().Enabled(zap.DebugLevel) {
		kinds := make([]string, 0, len(snap.Errors))
		for _, e := range snap.Errors {
			kinds = append(kinds, e.Kind.String())
		}
		s.logger.Debug("state published",
			zap.Uint64("seq", snap.Seq),
			zap.String("state", snap.State.Kind.String()),
			zap.Strings("errors", kinds),
		)
	}
	offer(s.updates, snap)
}

// offer sends v, dropping the oldest buffered value when the channel is full.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
