package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityTrade/internal/chain"
	"liquidityTrade/internal/config"
	"liquidityTrade/internal/dex"
	"liquidityTrade/internal/model"
	"liquidityTrade/internal/session"
)

func newLiquidityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "liquidity",
		Short: "Size a concentrated liquidity position and build the mint once it is ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrade(cmd, setupLiquidity)
		},
	}

	addTradeFlags(cmd)
	cmd.Flags().String("position-manager", "", "NonfungiblePositionManager address")
	cmd.Flags().Uint32("fee", 0, "pool fee tier")
	cmd.Flags().Int32("lower", 0, "lower tick of the range")
	cmd.Flags().Int32("upper", 0, "upper tick of the range")
	cmd.Flags().String("multiplier", "", "symmetric range around the current price, e.g. 1.5")
	cmd.Flags().Bool("full-range", false, "use the full tick range")

	return cmd
}

func setupLiquidity(cmd *cobra.Command, cfg config.Config, client *chain.Client, logger *zap.Logger) (tradeSetup, error) {
	factory, err := config.ParseAddress("factory", cfg.Factory)
	if err != nil {
		return tradeSetup{}, err
	}
	npm, err := config.ParseAddress("position-manager", cfg.PositionManager)
	if err != nil {
		return tradeSetup{}, err
	}
	wrapped, err := config.ParseAddress("wrapped-native", cfg.WrappedNative)
	if err != nil {
		return tradeSetup{}, err
	}
	mode, err := tickModeFromFlags(cmd)
	if err != nil {
		return tradeSetup{}, err
	}

	provider, err := dex.NewLiquidityProvider(client, dex.LiquidityConfig{
		Factory:         factory,
		PositionManager: npm,
		Wrapped:         wrapped,
		Fee:             cfg.Fee,
		PoolCacheSize:   cfg.PoolCacheSize,
	}, logger)
	if err != nil {
		return tradeSetup{}, err
	}

	return tradeSetup{
		mode:     session.ModeLiquidity,
		spender:  npm,
		provider: provider,
		tickMode: &mode,
	}, nil
}

// tickModeFromFlags picks the range mode: multiplier, explicit bounds, or full range.
func tickModeFromFlags(cmd *cobra.Command) (model.TickMode, error) {
	flags := cmd.Flags()
	full, _ := flags.GetBool("full-range")
	multiplier, _ := flags.GetString("multiplier")
	hasBounds := flags.Changed("lower") || flags.Changed("upper")

	switch {
	case full && (multiplier != "" || hasBounds):
		return model.TickMode{}, fmt.Errorf("--full-range cannot be combined with --multiplier or tick bounds")
	case multiplier != "" && hasBounds:
		return model.TickMode{}, fmt.Errorf("--multiplier cannot be combined with tick bounds")
	case multiplier != "":
		value, err := decimal.NewFromString(multiplier)
		if err != nil {
			return model.TickMode{}, fmt.Errorf("invalid multiplier: %w", err)
		}
		if value.LessThanOrEqual(decimal.NewFromInt(1)) {
			return model.TickMode{}, fmt.Errorf("multiplier must be greater than 1, got %s", multiplier)
		}
		return model.MultiplierMode(value), nil
	case hasBounds:
		var lower, upper *int32
		if flags.Changed("lower") {
			v, _ := flags.GetInt32("lower")
			lower = model.Tick(v)
		}
		if flags.Changed("upper") {
			v, _ := flags.GetInt32("upper")
			upper = model.Tick(v)
		}
		return model.RangeMode(lower, upper), nil
	default:
		return model.FullRangeMode(), nil
	}
}
