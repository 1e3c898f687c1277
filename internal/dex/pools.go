package dex

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"

	"liquidityTrade/internal/model"
)

type poolKey struct {
	token0 common.Address
	token1 common.Address
	fee    uint32
}

// PoolLocator resolves factory pools and remembers the answers, including missing pools.
type PoolLocator struct {
	caller  Caller
	factory common.Address
	cache   *lru.Cache[poolKey, common.Address]
}

func NewPoolLocator(caller Caller, factory common.Address, size int) (*PoolLocator, error) {
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[poolKey, common.Address](size)
	if err != nil {
		return nil, fmt.Errorf("pool cache: %w", err)
	}
	return &PoolLocator{caller: caller, factory: factory, cache: cache}, nil
}

// Pool returns the pool address for the pair and fee; the zero address means no pool.
func (l *PoolLocator) Pool(ctx context.Context, tokenA, tokenB common.Address, fee uint32) (common.Address, error) {
	key := poolKey{token0: tokenA, token1: tokenB, fee: fee}
	if !model.SortsBefore(tokenA, tokenB) {
		key.token0, key.token1 = tokenB, tokenA
	}
	if pool, ok := l.cache.Get(key); ok {
		return pool, nil
	}

	factoryABI, err := v3FactoryABI.get()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse factory abi: %w", err)
	}
	values, err := callMethod(ctx, l.caller, l.factory, factoryABI, "getPool", key.token0, key.token1, feeArg(fee))
	if err != nil {
		return common.Address{}, err
	}
	pool, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, fmt.Errorf("getPool: %w", err)
	}
	l.cache.Add(key, pool)
	return pool, nil
}
