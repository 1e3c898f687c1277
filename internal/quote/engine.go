// Package quote keeps a trade's inputs and a live quote for them.
//
// Engine methods are not synchronized: they must run on the owner's coordination loop, and the
// engine hands its asynchronous results back through the post function it was built with.
package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityTrade/internal/model"
	"liquidityTrade/internal/ticks"
)

// Provider quotes trades and builds their transactions.
type Provider interface {
	ticks.Math
	Name() string
	TickSpacing() int32
	Quote(ctx context.Context, req model.QuoteRequest) (model.Quote, error)
	BuildTransaction(ctx context.Context, quote model.Quote, opts model.TradeOptions) (model.TransactionPayload, error)
}

// State is the engine's quote state. Quote is set only when Kind is StateReady.
type State struct {
	Kind   model.StateKind
	Quote  *model.Quote
	Errors []*model.TradeError
	// Seq identifies the request the state belongs to; zero when no request was involved.
	Seq uint64
}

type Config struct {
	RefreshInterval time.Duration
	WrappedNative   common.Address
	Options         model.TradeOptions
}

type Engine struct {
	ctx      context.Context
	provider Provider
	post     func(func()) bool
	cfg      Config
	logger   *zap.Logger

	tokenIn   *model.Token
	tokenOut  *model.Token
	amountIn  decimal.Decimal
	amountOut decimal.Decimal
	direction model.TradeDirection
	options   model.TradeOptions
	ticks     *ticks.Manager

	state   State
	seq     uint64
	spacing int32

	activeID    uint64
	cancelQuote context.CancelFunc

	countdownGen    uint64
	cancelCountdown context.CancelFunc

	onState     func(State)
	onCountdown func(float64)
}

// NewEngine builds an idle engine. ctx bounds every provider call it makes.
func NewEngine(ctx context.Context, provider Provider, post func(func()) bool, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Options = cfg.Options.WithDefaults()
	return &Engine{
		ctx:      ctx,
		provider: provider,
		post:     post,
		cfg:      cfg,
		logger:   logger,
		options:  cfg.Options,
		ticks:    ticks.NewManager(provider),
		state:    State{Kind: model.StateNotReady},
	}
}

// OnState registers the state listener. It is called on the loop.
func (e *Engine) OnState(fn func(State)) { e.onState = fn }

// OnCountdown registers the countdown listener. It is called on the loop.
func (e *Engine) OnCountdown(fn func(float64)) { e.onCountdown = fn }

func (e *Engine) Provider() Provider { return e.provider }

func (e *Engine) State() State { return e.state }

func (e *Engine) TokenIn() *model.Token { return copyToken(e.tokenIn) }

func (e *Engine) TokenOut() *model.Token { return copyToken(e.tokenOut) }

func (e *Engine) AmountIn() decimal.Decimal { return e.amountIn }

func (e *Engine) AmountOut() decimal.Decimal { return e.amountOut }

func (e *Engine) Direction() model.TradeDirection { return e.direction }

func (e *Engine) Options() model.TradeOptions { return e.options }

func (e *Engine) TickMode() model.TickMode { return e.ticks.Mode() }

// Bounds returns the stored tick bounds in protocol coordinates.
func (e *Engine) Bounds() (lower, upper *int32) { return e.ticks.Bounds() }

// SetTokenIn changes the input token. Choosing the current output token clears the output side.
func (e *Engine) SetTokenIn(token *model.Token) bool {
	if model.SameToken(e.tokenIn, token) {
		return false
	}
	if token != nil && e.tokenOut != nil && token.Equal(*e.tokenOut) {
		e.tokenOut = nil
		e.amountOut = decimal.Zero
	}
	e.tokenIn = copyToken(token)
	e.inputChanged()
	return true
}

// SetTokenOut changes the output token, clearing the input side when it would repeat it.
func (e *Engine) SetTokenOut(token *model.Token) bool {
	if model.SameToken(e.tokenOut, token) {
		return false
	}
	if token != nil && e.tokenIn != nil && token.Equal(*e.tokenIn) {
		e.tokenIn = nil
		e.amountIn = decimal.Zero
	}
	e.tokenOut = copyToken(token)
	e.inputChanged()
	return true
}

// SetAmount sets the user-owned amount. A direction change zeroes the dependent amount.
func (e *Engine) SetAmount(value decimal.Decimal, direction model.TradeDirection) bool {
	if value.IsNegative() {
		value = decimal.Zero
	}
	if direction == e.direction && e.owned().Equal(value) {
		return false
	}
	e.direction = direction
	if direction == model.ExactIn {
		e.amountIn = value
		e.amountOut = decimal.Zero
	} else {
		e.amountOut = value
		e.amountIn = decimal.Zero
	}
	e.inputChanged()
	return true
}

func (e *Engine) SetTickMode(mode model.TickMode) bool {
	if !e.ticks.SetMode(mode) {
		return false
	}
	e.inputChanged()
	return true
}

func (e *Engine) SetOptions(opts model.TradeOptions) bool {
	if e.options.Equal(opts) {
		return false
	}
	e.options = opts
	e.inputChanged()
	return true
}

// SetBoundFromPrice sets a user edge from a price of tokenIn in tokenOut.
func (e *Engine) SetBoundFromPrice(edge ticks.Edge, price decimal.Decimal) (bool, error) {
	if e.tokenIn == nil || e.tokenOut == nil {
		return false, errors.New("both tokens are required to set a price bound")
	}
	changed, err := e.ticks.SetBoundFromPrice(edge, price, *e.tokenIn, *e.tokenOut)
	if err != nil || !changed {
		return false, err
	}
	e.inputChanged()
	return true, nil
}

// StepBound moves a user edge by one tick spacing of the last quoted pool.
func (e *Engine) StepBound(edge ticks.Edge, step ticks.Step) bool {
	if e.tokenIn == nil || e.tokenOut == nil {
		return false
	}
	if !e.ticks.StepBound(edge, step, e.tickSpacing(), *e.tokenIn, *e.tokenOut) {
		return false
	}
	e.inputChanged()
	return true
}

func (e *Engine) SetFullRange() bool {
	if !e.ticks.SetFullRange() {
		return false
	}
	e.inputChanged()
	return true
}

func (e *Engine) SetMultiplierRange(value decimal.Decimal) bool {
	if !e.ticks.SetMultiplierRange(value) {
		return false
	}
	e.inputChanged()
	return true
}

// Refresh re-quotes the current inputs as if the countdown had elapsed.
func (e *Engine) Refresh() {
	e.inputChanged()
}

// Close stops the in-flight request and the countdown.
func (e *Engine) Close() {
	e.stopQuote()
	e.stopCountdown()
}

func (e *Engine) owned() decimal.Decimal {
	if e.direction == model.ExactOut {
		return e.amountOut
	}
	return e.amountIn
}

func (e *Engine) clearDependent() {
	if e.direction == model.ExactOut {
		e.amountIn = decimal.Zero
	} else {
		e.amountOut = decimal.Zero
	}
}

func (e *Engine) tickSpacing() int32 {
	if e.spacing > 0 {
		return e.spacing
	}
	return e.provider.TickSpacing()
}

// inputChanged cancels outstanding work, then dispatches a request if the inputs allow one.
func (e *Engine) inputChanged() {
	e.stopQuote()
	e.stopCountdown()

	if !e.ticks.Mode().ValidRange() {
		e.clearDependent()
		e.setState(State{
			Kind:   model.StateNotReady,
			Errors: []*model.TradeError{model.NewTradeError(model.KindInvalidTickRange, model.SideNone)},
		})
		return
	}
	if e.tokenIn == nil || e.tokenOut == nil || !e.owned().IsPositive() {
		e.clearDependent()
		e.setState(State{Kind: model.StateNotReady})
		return
	}

	e.dispatch()
}

func (e *Engine) dispatch() {
	e.seq++
	id := e.seq
	e.activeID = id

	req := model.QuoteRequest{
		TokenIn:   *e.tokenIn,
		TokenOut:  *e.tokenOut,
		Amount:    e.owned(),
		Direction: e.direction,
		TickMode:  e.ticks.Mode(),
	}
	ctx, cancel := context.WithCancel(e.ctx)
	e.cancelQuote = cancel

	e.setState(State{Kind: model.StateLoading, Seq: id})
	e.startCountdown()
	quotesDispatched.Inc()

	e.logger.Debug("quote dispatch",
		zap.Uint64("seq", id),
		zap.String("token_in", req.TokenIn.String()),
		zap.String("token_out", req.TokenOut.String()),
		zap.String("amount", req.Amount.String()),
		zap.String("direction", req.Direction.String()),
	)

	provider := e.provider
	go func() {
		start := time.Now()
		quote, err := provider.Quote(ctx, req)
		quoteLatency.Observe(time.Since(start).Seconds())
		e.post(func() { e.applyQuote(id, quote, err) })
	}()
}

func (e *Engine) applyQuote(id uint64, quote model.Quote, err error) {
	if id != e.activeID {
		quotesStale.Inc()
		e.logger.Debug("quote discarded", zap.Uint64("seq", id), zap.Uint64("active", e.activeID))
		return
	}
	e.activeID = 0
	if e.cancelQuote != nil {
		e.cancelQuote()
		e.cancelQuote = nil
	}

	if err != nil {
		te := e.classify(err)
		quotesFailed.WithLabelValues(te.Kind.String()).Inc()
		e.logger.Debug("quote failed", zap.Uint64("seq", id), zap.Error(err))
		e.clearDependent()
		e.setState(State{Kind: model.StateNotReady, Errors: []*model.TradeError{te}, Seq: id})
		return
	}

	if e.direction == model.ExactIn {
		e.amountOut = quote.AmountOut
	} else {
		e.amountIn = quote.AmountIn
	}
	if quote.Ticks != nil {
		e.ticks.SyncFromQuote(model.Tick(quote.Ticks.Lower), model.Tick(quote.Ticks.Upper))
		e.spacing = quote.Ticks.Spacing
	}
	e.setState(State{Kind: model.StateReady, Quote: &quote, Seq: id})
}

// classify maps a provider error onto the error taxonomy. The wrap pair remap is the only remap.
func (e *Engine) classify(err error) *model.TradeError {
	var te *model.TradeError
	if errors.As(err, &te) {
		return te
	}
	if errors.Is(err, model.ErrTradeNotFound) {
		if e.tokenIn != nil && e.tokenOut != nil && model.IsWrapPair(*e.tokenIn, *e.tokenOut, e.cfg.WrappedNative) {
			return model.NewTradeError(model.KindWrapUnwrapNotAllowed, model.SideNone)
		}
		return &model.TradeError{Kind: model.KindTradeNotFound, Provider: e.provider.Name(), Err: err}
	}
	return &model.TradeError{Kind: model.KindProviderFailure, Provider: e.provider.Name(), Err: fmt.Errorf("%s: %w", e.provider.Name(), err)}
}

func (e *Engine) setState(s State) {
	e.state = s
	if e.onState != nil {
		e.onState(s)
	}
}

func (e *Engine) stopQuote() {
	if e.cancelQuote != nil {
		e.cancelQuote()
		e.cancelQuote = nil
	}
	e.activeID = 0
}

func (e *Engine) startCountdown() {
	if e.cfg.RefreshInterval <= 0 {
		return
	}
	e.countdownGen++
	gen := e.countdownGen
	ctx, cancel := context.WithCancel(e.ctx)
	e.cancelCountdown = cancel

	go runCountdown(ctx, e.cfg.RefreshInterval, func(fraction float64, done bool) {
		e.post(func() { e.countdownTick(gen, fraction, done) })
	})
}

func (e *Engine) countdownTick(gen uint64, fraction float64, done bool) {
	if gen != e.countdownGen {
		return
	}
	if e.onCountdown != nil {
		e.onCountdown(fraction)
	}
	if done {
		e.logger.Debug("countdown elapsed, re-quoting")
		e.inputChanged()
	}
}

func (e *Engine) stopCountdown() {
	if e.cancelCountdown != nil {
		e.cancelCountdown()
		e.cancelCountdown = nil
	}
	e.countdownGen++
}

func copyToken(token *model.Token) *model.Token {
	if token == nil {
		return nil
	}
	t := *token
	return &t
}
