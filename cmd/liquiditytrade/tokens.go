package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"liquidityTrade/internal/config"
	"liquidityTrade/internal/dex"
	"liquidityTrade/internal/model"
)

// tokenResolver turns command-line token specs into tokens.
//
// Accepted forms: the native symbol (e.g. ETH), "0xADDR:DECIMALS", or a bare "0xADDR" which
// needs an RPC connection to read the ERC20 metadata.
type tokenResolver struct {
	caller       dex.Caller
	cache        *dex.TokenMetaCache
	nativeSymbol string
	logger       *zap.Logger
}

func newTokenResolver(caller dex.Caller, nativeSymbol string, logger *zap.Logger) *tokenResolver {
	if nativeSymbol == "" {
		nativeSymbol = "ETH"
	}
	return &tokenResolver{
		caller:       caller,
		cache:        dex.NewTokenMetaCache(),
		nativeSymbol: nativeSymbol,
		logger:       logger,
	}
}

func (r *tokenResolver) resolve(ctx context.Context, spec string) (model.Token, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return model.Token{}, fmt.Errorf("token is required")
	}
	if strings.EqualFold(spec, r.nativeSymbol) || strings.EqualFold(spec, "native") {
		return model.NativeToken(strings.ToUpper(r.nativeSymbol), 18), nil
	}

	addrPart, decPart, hasDecimals := strings.Cut(spec, ":")
	addr, err := config.ParseAddress("token", addrPart)
	if err != nil {
		return model.Token{}, err
	}
	if hasDecimals {
		decimals, err := strconv.ParseUint(decPart, 10, 8)
		if err != nil {
			return model.Token{}, fmt.Errorf("invalid decimals in %q: %w", spec, err)
		}
		return model.Token{Address: addr, Decimals: uint8(decimals)}, nil
	}

	if r.caller == nil {
		return model.Token{}, fmt.Errorf("token %s needs decimals (ADDR:DECIMALS) or --rpc", addrPart)
	}
	return dex.ResolveToken(ctx, r.caller, r.cache, addr, r.logger)
}
