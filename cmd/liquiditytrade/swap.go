package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityTrade/internal/chain"
	"liquidityTrade/internal/config"
	"liquidityTrade/internal/dex"
	"liquidityTrade/internal/session"
)

func newSwapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Quote a single-pool swap and build the router call once it is ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrade(cmd, setupSwap)
		},
	}

	addTradeFlags(cmd)
	cmd.Flags().String("quoter", "", "QuoterV2 address")
	cmd.Flags().String("router", "", "SwapRouter02 address")
	cmd.Flags().StringSlice("fee-tiers", nil, "fee tiers to search, in hundredths of a bip")

	return cmd
}

func setupSwap(_ *cobra.Command, cfg config.Config, client *chain.Client, logger *zap.Logger) (tradeSetup, error) {
	factory, err := config.ParseAddress("factory", cfg.Factory)
	if err != nil {
		return tradeSetup{}, err
	}
	quoter, err := config.ParseAddress("quoter", cfg.Quoter)
	if err != nil {
		return tradeSetup{}, err
	}
	router, err := config.ParseAddress("router", cfg.Router)
	if err != nil {
		return tradeSetup{}, err
	}
	wrapped, err := config.ParseAddress("wrapped-native", cfg.WrappedNative)
	if err != nil {
		return tradeSetup{}, err
	}
	tiers, err := config.ParseFeeTiers(cfg.FeeTiers)
	if err != nil {
		return tradeSetup{}, err
	}

	provider, err := dex.NewSwapProvider(client, dex.SwapConfig{
		Factory:       factory,
		Quoter:        quoter,
		Router:        router,
		Wrapped:       wrapped,
		FeeTiers:      tiers,
		PoolCacheSize: cfg.PoolCacheSize,
	}, logger)
	if err != nil {
		return tradeSetup{}, err
	}

	return tradeSetup{
		mode:     session.ModeSwap,
		spender:  router,
		provider: provider,
	}, nil
}
