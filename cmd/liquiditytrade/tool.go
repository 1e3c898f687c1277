package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityTrade/internal/chain"
	"liquidityTrade/internal/config"
	"liquidityTrade/internal/dex"
)

// toolEnv is the setup shared by the offline commands. caller stays nil without --rpc.
type toolEnv struct {
	cfg      config.ToolConfig
	logger   *zap.Logger
	caller   dex.Caller
	resolver *tokenResolver
	close    func()
}

func addToolFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "Ethereum RPC URL, needed to look up token metadata")
	cmd.Flags().String("wrapped-native", "", "wrapped native token address")
	cmd.Flags().String("native-symbol", "", "symbol that selects the native coin")
	cmd.Flags().String("log-level", "", "log level (debug, info, warn, error)")
}

func newToolEnv(ctx context.Context, cmd *cobra.Command) (*toolEnv, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadTool(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	env := &toolEnv{cfg: cfg, logger: logger, close: func() { _ = logger.Sync() }}
	if cfg.RPCURL != "" {
		client, err := chain.NewClient(ctx, cfg.RPCURL, cfg.MaxRetries, cfg.RetryBackoff)
		if err != nil {
			return nil, err
		}
		env.caller = client
		env.close = func() {
			client.Close()
			_ = logger.Sync()
		}
	}
	env.resolver = newTokenResolver(env.caller, cfg.NativeSymbol, logger)
	return env, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
