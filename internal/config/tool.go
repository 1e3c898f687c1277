package config

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ToolConfig holds configuration for the offline tick and approve commands.
type ToolConfig struct {
	RPCURL        string
	WrappedNative string
	NativeSymbol  string
	MaxRetries    int
	RetryBackoff  time.Duration
	LogLevel      string
}

// LoadTool merges config file, environment variables, and flags into ToolConfig.
func LoadTool(cfgFile string, flags *pflag.FlagSet) (ToolConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("wrapped-native", DefaultWrappedNative)
		v.SetDefault("native-symbol", "ETH")
		v.SetDefault("max-retries", 3)
		v.SetDefault("retry-backoff", 500*time.Millisecond)
		v.SetDefault("log-level", "info")
	})
	if err != nil {
		return ToolConfig{}, err
	}

	return ToolConfig{
		RPCURL:        v.GetString("rpc"),
		WrappedNative: v.GetString("wrapped-native"),
		NativeSymbol:  v.GetString("native-symbol"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		LogLevel:      v.GetString("log-level"),
	}, nil
}
