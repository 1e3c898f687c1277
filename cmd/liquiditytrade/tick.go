package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"liquidityTrade/internal/config"
	"liquidityTrade/internal/dex"
	"liquidityTrade/internal/model"
	"liquidityTrade/internal/ticks"
)

type tickResult struct {
	Token0     string `json:"token0"`
	Token1     string `json:"token1"`
	Tick       int32  `json:"tick"`
	UsableTick int32  `json:"usable_tick"`
	Spacing    int32  `json:"spacing"`
	Price      string `json:"price"`
}

func newTickCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Convert between a price of --base in --quote and a pool tick",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env, err := newToolEnv(ctx, cmd)
			if err != nil {
				return err
			}
			defer env.close()

			wrapped, err := config.ParseAddress("wrapped-native", env.cfg.WrappedNative)
			if err != nil {
				return err
			}

			baseSpec, _ := cmd.Flags().GetString("base")
			quoteSpec, _ := cmd.Flags().GetString("quote")
			base, err := env.resolver.resolve(ctx, baseSpec)
			if err != nil {
				return fmt.Errorf("base: %w", err)
			}
			quoteToken, err := env.resolver.resolve(ctx, quoteSpec)
			if err != nil {
				return fmt.Errorf("quote: %w", err)
			}
			if base.Equal(quoteToken) {
				return fmt.Errorf("base and quote must differ")
			}

			spacing, _ := cmd.Flags().GetInt32("spacing")
			priceText, _ := cmd.Flags().GetString("price")
			var tick *int32
			if cmd.Flags().Changed("tick") {
				v, _ := cmd.Flags().GetInt32("tick")
				tick = model.Tick(v)
			}

			res, err := convertTick(dex.TickMath{Wrapped: wrapped, Spacing: spacing}, base, quoteToken, priceText, tick)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}

	addToolFlags(cmd)
	cmd.Flags().String("base", "", "priced token: native symbol, 0xADDR or 0xADDR:DECIMALS")
	cmd.Flags().String("quote", "", "token the price is expressed in")
	cmd.Flags().String("price", "", "price of one base token in quote tokens")
	cmd.Flags().Int32("tick", 0, "pool tick to convert into a price")
	cmd.Flags().Int32("spacing", 60, "tick spacing used for the usable tick")

	return cmd
}

// convertTick maps a base/quote price to a pool tick, or a tick back to a base/quote price.
// Exactly one of priceText and tick must be set.
func convertTick(m dex.TickMath, base, quote model.Token, priceText string, tick *int32) (tickResult, error) {
	if (priceText == "") == (tick == nil) {
		return tickResult{}, fmt.Errorf("exactly one of --price and --tick is required")
	}

	var raw int32
	if tick != nil {
		if *tick < model.MinTick || *tick > model.MaxTick {
			return tickResult{}, fmt.Errorf("tick %d outside [%d, %d]", *tick, model.MinTick, model.MaxTick)
		}
		raw = *tick
	} else {
		price, err := decimal.NewFromString(priceText)
		if err != nil {
			return tickResult{}, fmt.Errorf("invalid price: %w", err)
		}
		if !price.IsPositive() {
			return tickResult{}, fmt.Errorf("price must be positive")
		}
		raw, err = ticks.PriceTick(m, price, base, quote)
		if err != nil {
			return tickResult{}, err
		}
	}

	usable := dex.NearestUsableTick(raw, m.TickSpacing())
	at := usable
	if tick != nil {
		at = raw
	}
	price, err := ticks.TickPrice(m, at, base, quote)
	if err != nil {
		return tickResult{}, err
	}

	token0, token1 := base, quote
	if !m.SortsBefore(base, quote) {
		token0, token1 = quote, base
	}
	return tickResult{
		Token0:     token0.String(),
		Token1:     token1.String(),
		Tick:       raw,
		UsableTick: usable,
		Spacing:    m.TickSpacing(),
		Price:      price.String(),
	}, nil
}
