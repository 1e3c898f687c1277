package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityTrade/internal/config"
	"liquidityTrade/internal/dex"
	"liquidityTrade/internal/model"
)

func newApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Print the approve or revoke call for a token and spender",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env, err := newToolEnv(ctx, cmd)
			if err != nil {
				return err
			}
			defer env.close()

			tokenSpec, _ := cmd.Flags().GetString("token")
			token, err := env.resolver.resolve(ctx, tokenSpec)
			if err != nil {
				return fmt.Errorf("token: %w", err)
			}
			spenderText, _ := cmd.Flags().GetString("spender")
			spender, err := config.ParseAddress("spender", spenderText)
			if err != nil {
				return err
			}

			var owner common.Address
			if ownerText, _ := cmd.Flags().GetString("owner"); ownerText != "" {
				owner, err = config.ParseAddress("owner", ownerText)
				if err != nil {
					return err
				}
			}
			allowances := dex.NewERC20Allowances(env.caller, owner)

			if env.caller != nil && owner != (common.Address{}) && !token.Native {
				current, err := allowances.Allowance(ctx, token, spender)
				if err != nil {
					return err
				}
				env.logger.Info("current allowance",
					zap.String("token", token.String()),
					zap.String("owner", owner.Hex()),
					zap.String("spender", spender.Hex()),
					zap.String("allowance", current.String()),
				)
			}

			revoke, _ := cmd.Flags().GetBool("revoke")
			amountText, _ := cmd.Flags().GetString("amount")
			payload, err := approvalPayload(allowances, token, spender, amountText, revoke)
			if err != nil {
				return err
			}
			return printPayload(payload)
		},
	}

	addToolFlags(cmd)
	cmd.Flags().String("token", "", "token to approve: 0xADDR or 0xADDR:DECIMALS")
	cmd.Flags().String("spender", "", "spender address (router or position manager)")
	cmd.Flags().String("owner", "", "owner address; with --rpc the current allowance is logged")
	cmd.Flags().String("amount", "", "amount to approve in human units")
	cmd.Flags().Bool("revoke", false, "build approve(spender, 0) instead")

	return cmd
}

func approvalPayload(allowances *dex.ERC20Allowances, token model.Token, spender common.Address, amountText string, revoke bool) (model.TransactionPayload, error) {
	if revoke {
		if amountText != "" {
			return model.TransactionPayload{}, fmt.Errorf("--amount cannot be combined with --revoke")
		}
		return allowances.BuildRevoke(token, spender)
	}
	amount, err := decimal.NewFromString(amountText)
	if err != nil {
		return model.TransactionPayload{}, fmt.Errorf("invalid amount: %w", err)
	}
	if !amount.IsPositive() {
		return model.TransactionPayload{}, fmt.Errorf("amount must be positive")
	}
	return allowances.BuildApprove(token, spender, amount)
}
