package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"liquidityTrade/internal/allowance"
	"liquidityTrade/internal/chain"
	"liquidityTrade/internal/config"
	"liquidityTrade/internal/dex"
	"liquidityTrade/internal/model"
	"liquidityTrade/internal/quote"
	"liquidityTrade/internal/session"
	"liquidityTrade/internal/storage"
	"liquidityTrade/internal/storage/postgres"
)

// addTradeFlags registers the flags shared by swap and liquidity.
func addTradeFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("rpc", "", "Ethereum RPC URL")
	flags.String("owner", "", "wallet address that trades and holds the tokens")
	flags.String("token-in", "", "input token: native symbol, 0xADDR or 0xADDR:DECIMALS")
	flags.String("token-out", "", "output token: native symbol, 0xADDR or 0xADDR:DECIMALS")
	flags.String("amount", "", "amount in human units")
	flags.Bool("exact-out", false, "treat --amount as the output amount")
	flags.String("wrapped-native", "", "wrapped native token address")
	flags.String("native-symbol", "", "symbol that selects the native coin")
	flags.String("factory", "", "Uniswap V3 factory address")
	flags.Int("pool-cache-size", 0, "pool lookup cache size")
	flags.Duration("refresh-interval", 0, "quote refresh interval")
	flags.String("slippage", "", "slippage tolerance in percent")
	flags.Duration("deadline", 0, "transaction deadline")
	flags.StringSlice("revoke-tokens", nil, "tokens that must be reset to zero before a new approval")
	flags.Int("max-retries", 0, "max RPC retries")
	flags.Duration("retry-backoff", 0, "base retry backoff")
	flags.String("out", "", "JSONL file that receives every snapshot")
	flags.String("pg-dsn", "", "Postgres DSN for snapshot storage")
	flags.String("metrics-addr", "", "listen address for /metrics")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("once", false, "exit after the first actionable snapshot")
	flags.Duration("timeout", 0, "give up after this long (0 waits until interrupted)")
}

// tradeSetup carries what a mode contributes to the shared runner.
type tradeSetup struct {
	mode     session.Mode
	spender  common.Address
	provider quote.Provider
	tickMode *model.TickMode
}

type setupFunc func(cmd *cobra.Command, cfg config.Config, client *chain.Client, logger *zap.Logger) (tradeSetup, error)

func runTrade(cmd *cobra.Command, setup setupFunc) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc is required")
	}
	owner, err := config.ParseAddress("owner", cfg.Owner)
	if err != nil {
		return err
	}
	wrapped, err := config.ParseAddress("wrapped-native", cfg.WrappedNative)
	if err != nil {
		return err
	}
	slippage, err := config.ParsePercent("slippage", cfg.Slippage)
	if err != nil {
		return err
	}
	revokeAddrs, err := config.ParseAddresses("revoke-tokens", cfg.RevokeTokens)
	if err != nil {
		return err
	}

	amountText, _ := cmd.Flags().GetString("amount")
	amount := decimal.Zero
	if amountText != "" {
		amount, err = decimal.NewFromString(amountText)
		if err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}
	}
	direction := model.ExactIn
	if exactOut, _ := cmd.Flags().GetBool("exact-out"); exactOut {
		direction = model.ExactOut
	}
	once, _ := cmd.Flags().GetBool("once")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	client, err := chain.NewClient(ctx, cfg.RPCURL, cfg.MaxRetries, cfg.RetryBackoff)
	if err != nil {
		return err
	}
	defer client.Close()

	chainID, err := client.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}
	block, err := client.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("latest block: %w", err)
	}

	resolver := newTokenResolver(client, cfg.NativeSymbol, logger)
	tokenIn, err := resolveFlagToken(ctx, cmd, resolver, "token-in")
	if err != nil {
		return err
	}
	tokenOut, err := resolveFlagToken(ctx, cmd, resolver, "token-out")
	if err != nil {
		return err
	}

	ts, err := setup(cmd, cfg, client, logger)
	if err != nil {
		return err
	}

	recorder, closeRecorder, err := openRecorder(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRecorder()

	balances := dex.NewBalanceCache(client, owner, logger)

	logger.Info("starting trade session",
		zap.String("mode", ts.mode.String()),
		zap.String("chain_id", chainID.String()),
		zap.Uint64("block", block),
		zap.String("owner", owner.Hex()),
		zap.String("spender", ts.spender.Hex()),
		zap.String("provider", ts.provider.Name()),
		zap.String("token_in", tokenName(tokenIn)),
		zap.String("token_out", tokenName(tokenOut)),
		zap.String("amount", amount.String()),
		zap.String("direction", direction.String()),
	)

	s := session.New(ctx, ts.provider, dex.NewERC20Allowances(client, owner), balances, session.Config{
		Mode:          ts.mode,
		Spender:       ts.spender,
		MustBeRevoked: allowance.RevokeList(revokeAddrs...),
		Quote: quote.Config{
			RefreshInterval: cfg.RefreshInterval,
			WrappedNative:   wrapped,
			Options: model.TradeOptions{
				Slippage:  slippage,
				Deadline:  cfg.Deadline,
				Recipient: &owner,
			},
		},
		Init: session.Init{
			TokenIn:   tokenIn,
			TokenOut:  tokenOut,
			Amount:    amount,
			Direction: direction,
			TickMode:  ts.tickMode,
		},
	}, logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return s.Run(gctx)
	})
	g.Go(func() error {
		c := &consumer{session: s, recorder: recorder, once: once, logger: logger, done: cancel}
		return c.run(gctx)
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.MetricsAddr, logger)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func resolveFlagToken(ctx context.Context, cmd *cobra.Command, resolver *tokenResolver, name string) (*model.Token, error) {
	spec, _ := cmd.Flags().GetString(name)
	if spec == "" {
		return nil, nil
	}
	token, err := resolver.resolve(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &token, nil
}

func tokenName(t *model.Token) string {
	if t == nil {
		return ""
	}
	return t.String()
}

// openRecorder builds the snapshot sinks selected by --out and --pg-dsn.
func openRecorder(ctx context.Context, cfg config.Config) (storage.Recorder, func(), error) {
	var (
		sinks   storage.Multi
		closers []func()
	)
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Out))
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		sinks = append(sinks, store)
		closers = append(closers, store.Close)
	}
	return sinks, func() {
		for _, fn := range closers {
			fn()
		}
	}, nil
}

// consumer reads session snapshots, records them and, with --once, acts on the first
// actionable one.
type consumer struct {
	session  *session.Session
	recorder storage.Recorder
	once     bool
	logger   *zap.Logger
	done     func()
}

func (c *consumer) run(ctx context.Context) error {
	updates := c.session.Updates()
	countdown := c.session.Countdown()
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			stopNow, err := c.handle(ctx, snap)
			if err != nil {
				return err
			}
			if stopNow {
				c.done()
				return nil
			}
		case fraction, ok := <-countdown:
			if !ok {
				countdown = nil
				continue
			}
			c.logger.Debug("quote refresh", zap.Float64("remaining", fraction))
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *consumer) handle(ctx context.Context, snap session.Snapshot) (bool, error) {
	if err := c.recorder.PutSnapshots(ctx, []model.SnapshotRecord{snap.Record(time.Now())}); err != nil {
		c.logger.Warn("record snapshot failed", zap.Uint64("seq", snap.Seq), zap.Error(err))
	}

	fields := []zap.Field{
		zap.Uint64("seq", snap.Seq),
		zap.String("state", snap.State.Kind.String()),
		zap.String("amount_in", snap.AmountIn.String()),
		zap.String("amount_out", snap.AmountOut.String()),
	}
	if q := snap.Quote.Quote; q != nil {
		fields = append(fields, zap.String("provider", q.Provider), zap.Uint32("fee", q.Fee))
		if q.PriceImpact != nil {
			fields = append(fields, zap.String("price_impact", q.PriceImpact.String()))
		}
	}
	if snap.Lower != nil {
		fields = append(fields, zap.Int32("lower", *snap.Lower))
	}
	if snap.Upper != nil {
		fields = append(fields, zap.Int32("upper", *snap.Upper))
	}
	if len(snap.Errors) > 0 {
		errs := make([]string, 0, len(snap.Errors))
		for _, e := range snap.Errors {
			errs = append(errs, e.Error())
		}
		fields = append(fields, zap.Strings("errors", errs))
	}
	c.logger.Info("trade snapshot", fields...)

	if !c.once {
		return false, nil
	}

	switch snap.State.Kind {
	case model.StateReady:
		payload, err := c.session.Proceed(ctx)
		if err != nil {
			return true, err
		}
		return true, printPayload(payload)
	case model.StateNotReady:
		primary := snap.PrimaryError()
		if primary == nil {
			return false, nil
		}
		switch primary.Kind {
		case model.KindInsufficientAllowance:
			payload, err := c.session.ApproveData(ctx, primary.Side, requiredFor(snap, primary.Side))
			if err != nil {
				return true, err
			}
			return true, printPayload(payload)
		case model.KindNeedRevokeAllowance:
			payload, err := c.session.RevokeData(ctx, primary.Side)
			if err != nil {
				return true, err
			}
			return true, printPayload(payload)
		case model.KindProviderFailure:
			// transient; the refresh timer retries
			return false, nil
		default:
			return true, primary
		}
	}
	return false, nil
}

func requiredFor(snap session.Snapshot, side model.Side) decimal.Decimal {
	if side == model.SideOut {
		return snap.AmountOut
	}
	return snap.AmountIn
}

type payloadJSON struct {
	To          string `json:"to"`
	Value       string `json:"value"`
	Data        string `json:"data"`
	Description string `json:"description,omitempty"`
}

func printPayload(p model.TransactionPayload) error {
	value := "0"
	if p.Value != nil {
		value = p.Value.String()
	}
	return printJSON(payloadJSON{
		To:          p.To.Hex(),
		Value:       value,
		Data:        hexutil.Encode(p.Data),
		Description: p.Description,
	})
}

func serveMetrics(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
