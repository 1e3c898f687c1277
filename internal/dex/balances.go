package dex

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityTrade/internal/model"
)

// BalanceReader reads ERC20 and native balances.
type BalanceReader interface {
	Caller
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type balanceKey struct {
	native  bool
	address common.Address
}

func keyOf(token model.Token) balanceKey {
	if token.Native {
		return balanceKey{native: true}
	}
	return balanceKey{address: token.Address}
}

// BalanceCache holds the last known balances of one account. Reads never block on the network.
type BalanceCache struct {
	reader BalanceReader
	owner  common.Address
	logger *zap.Logger

	mu       sync.RWMutex
	balances map[balanceKey]decimal.Decimal
}

func NewBalanceCache(reader BalanceReader, owner common.Address, logger *zap.Logger) *BalanceCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BalanceCache{
		reader:   reader,
		owner:    owner,
		logger:   logger,
		balances: make(map[balanceKey]decimal.Decimal),
	}
}

// Balance returns the cached balance, false when it was never loaded.
func (c *BalanceCache) Balance(token model.Token) (decimal.Decimal, bool) {
	c.mu.RLock()
	value, ok := c.balances[keyOf(token)]
	c.mu.RUnlock()
	return value, ok
}

// Set overrides a cached balance.
func (c *BalanceCache) Set(token model.Token, value decimal.Decimal) {
	c.mu.Lock()
	c.balances[keyOf(token)] = value
	c.mu.Unlock()
}

// Refresh reloads the given tokens. Failed tokens keep their previous value.
func (c *BalanceCache) Refresh(ctx context.Context, tokens ...model.Token) error {
	var firstErr error
	for _, token := range tokens {
		value, err := c.fetch(ctx, token)
		if err != nil {
			c.logger.Warn("balance refresh failed", zap.String("token", token.String()), zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("balance of %s: %w", token, err)
			}
			continue
		}
		c.Set(token, value)
	}
	return firstErr
}

func (c *BalanceCache) fetch(ctx context.Context, token model.Token) (decimal.Decimal, error) {
	if token.Native {
		raw, err := c.reader.BalanceAt(ctx, c.owner, nil)
		if err != nil {
			return decimal.Zero, err
		}
		return FromBaseUnits(raw, token.Decimals), nil
	}

	erc20, err := erc20ABIString.get()
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, c.reader, token.Address, erc20, "balanceOf", c.owner)
	if err != nil {
		return decimal.Zero, err
	}
	raw, err := asBigInt(values[0])
	if err != nil {
		return decimal.Zero, err
	}
	return FromBaseUnits(raw, token.Decimals), nil
}
