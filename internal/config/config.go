package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Ethereum mainnet deployments used when nothing else is configured.
const (
	DefaultWrappedNative   = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	DefaultFactory         = "0x1F98431c8aD98523631AE4a59f267346ea31F984"
	DefaultQuoter          = "0x61fFE014bA17989E743c5F6cB21bF9697530B21e"
	DefaultRouter          = "0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45"
	DefaultPositionManager = "0xC36442b4a4522E871399CD717aBDD847Ab11FE88"
	// USDT refuses to change a non-zero allowance to another non-zero value.
	DefaultRevokeToken = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
)

// Config holds configuration for the swap and liquidity commands.
type Config struct {
	RPCURL          string
	Owner           string
	WrappedNative   string
	NativeSymbol    string
	Factory         string
	Quoter          string
	Router          string
	PositionManager string
	FeeTiers        []string
	Fee             uint32
	PoolCacheSize   int
	RefreshInterval time.Duration
	Slippage        string
	Deadline        time.Duration
	RevokeTokens    []string
	MaxRetries      int
	RetryBackoff    time.Duration
	Out             string
	PGDSN           string
	MetricsAddr     string
	LogLevel        string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("wrapped-native", DefaultWrappedNative)
		v.SetDefault("native-symbol", "ETH")
		v.SetDefault("factory", DefaultFactory)
		v.SetDefault("quoter", DefaultQuoter)
		v.SetDefault("router", DefaultRouter)
		v.SetDefault("position-manager", DefaultPositionManager)
		v.SetDefault("fee-tiers", []string{"500", "3000", "10000", "100"})
		v.SetDefault("fee", 3000)
		v.SetDefault("pool-cache-size", 256)
		v.SetDefault("refresh-interval", 15*time.Second)
		v.SetDefault("slippage", "0.5")
		v.SetDefault("deadline", 20*time.Minute)
		v.SetDefault("revoke-tokens", []string{DefaultRevokeToken})
		v.SetDefault("max-retries", 3)
		v.SetDefault("retry-backoff", 500*time.Millisecond)
		v.SetDefault("log-level", "info")
	})
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:          v.GetString("rpc"),
		Owner:           v.GetString("owner"),
		WrappedNative:   v.GetString("wrapped-native"),
		NativeSymbol:    v.GetString("native-symbol"),
		Factory:         v.GetString("factory"),
		Quoter:          v.GetString("quoter"),
		Router:          v.GetString("router"),
		PositionManager: v.GetString("position-manager"),
		FeeTiers:        getStringSlice(v, "fee-tiers"),
		Fee:             v.GetUint32("fee"),
		PoolCacheSize:   v.GetInt("pool-cache-size"),
		RefreshInterval: v.GetDuration("refresh-interval"),
		Slippage:        v.GetString("slippage"),
		Deadline:        v.GetDuration("deadline"),
		RevokeTokens:    getStringSlice(v, "revoke-tokens"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		Out:             v.GetString("out"),
		PGDSN:           v.GetString("pg-dsn"),
		MetricsAddr:     v.GetString("metrics-addr"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}

// newViper reads env (LIQTRADE_*), the optional config file and bound flags, in viper's
// precedence order.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(*viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("LIQTRADE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if defaults != nil {
		defaults(v)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
