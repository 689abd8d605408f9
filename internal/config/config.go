package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"clmmScope/internal/pool"
)

// newViper merges defaults, environment variables with the CLMM prefix, bound flags and the
// config file. Without an explicit file, config.yaml in the working directory is read if present.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]any) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("CLMM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetDefault("log-level", "info")

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

// PoolOverrides replaces fee rates of a snapshot's AMM config. Nil fields keep the snapshot value.
// Tick spacing is fixed by the snapshot's tick arrays and cannot be overridden.
type PoolOverrides struct {
	TradeFeeRate    *uint32
	ProtocolFeeRate *uint32
	FundFeeRate     *uint32
}

func loadOverrides(v *viper.Viper) PoolOverrides {
	get := func(key string) *uint32 {
		if !v.IsSet(key) {
			return nil
		}
		rate := v.GetUint32(key)
		return &rate
	}
	return PoolOverrides{
		TradeFeeRate:    get("trade-fee-rate"),
		ProtocolFeeRate: get("protocol-fee-rate"),
		FundFeeRate:     get("fund-fee-rate"),
	}
}

// Apply returns cfg with the overrides applied and validated.
func (o PoolOverrides) Apply(cfg pool.AmmConfig) (pool.AmmConfig, error) {
	if o.TradeFeeRate != nil {
		cfg.TradeFeeRate = *o.TradeFeeRate
	}
	if o.ProtocolFeeRate != nil {
		cfg.ProtocolFeeRate = *o.ProtocolFeeRate
	}
	if o.FundFeeRate != nil {
		cfg.FundFeeRate = *o.FundFeeRate
	}
	if err := cfg.Validate(); err != nil {
		return pool.AmmConfig{}, fmt.Errorf("amm config: %w", err)
	}
	return cfg, nil
}
