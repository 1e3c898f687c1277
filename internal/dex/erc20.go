package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"liquidityTrade/internal/model"
)

var errNativeAllowance = errors.New("native coin has no allowance")

// ERC20Allowances reads and builds allowances for a single owner.
type ERC20Allowances struct {
	caller Caller
	owner  common.Address
}

func NewERC20Allowances(caller Caller, owner common.Address) *ERC20Allowances {
	return &ERC20Allowances{caller: caller, owner: owner}
}

// Allowance returns the owner's allowance for spender in human units.
func (a *ERC20Allowances) Allowance(ctx context.Context, token model.Token, spender common.Address) (decimal.Decimal, error) {
	if token.Native {
		return decimal.Zero, errNativeAllowance
	}
	erc20, err := erc20ABIString.get()
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, a.caller, token.Address, erc20, "allowance", a.owner, spender)
	if err != nil {
		return decimal.Zero, err
	}
	raw, err := asBigInt(values[0])
	if err != nil {
		return decimal.Zero, fmt.Errorf("allowance: %w", err)
	}
	return FromBaseUnits(raw, token.Decimals), nil
}

// BuildApprove encodes approve(spender, amount).
func (a *ERC20Allowances) BuildApprove(token model.Token, spender common.Address, amount decimal.Decimal) (model.TransactionPayload, error) {
	return buildApprove(token, spender, ToBaseUnits(amount, token.Decimals), fmt.Sprintf("approve %s %s", amount, token))
}

// BuildRevoke encodes approve(spender, 0).
func (a *ERC20Allowances) BuildRevoke(token model.Token, spender common.Address) (model.TransactionPayload, error) {
	return buildApprove(token, spender, new(big.Int), fmt.Sprintf("revoke %s", token))
}

func buildApprove(token model.Token, spender common.Address, amount *big.Int, description string) (model.TransactionPayload, error) {
	if token.Native {
		return model.TransactionPayload{}, errNativeAllowance
	}
	erc20, err := erc20ABIString.get()
	if err != nil {
		return model.TransactionPayload{}, fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := erc20.Pack("approve", spender, amount)
	if err != nil {
		return model.TransactionPayload{}, fmt.Errorf("pack approve: %w", err)
	}
	return model.TransactionPayload{
		To:          token.Address,
		Value:       new(big.Int),
		Data:        data,
		Description: description,
	}, nil
}
