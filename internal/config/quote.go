package config

import (
	"github.com/spf13/pflag"
)

// QuoteConfig holds configuration for the quote command.
type QuoteConfig struct {
	Snapshot  string
	Amount    string
	Decimals0 uint8
	Decimals1 uint8
	// ZeroForOne sells token0 for token1.
	ZeroForOne  bool
	ExactOutput bool
	// PriceLimit is a human price; empty means no limit.
	PriceLimit string
	Threshold  string
	Timestamp  uint64
	MaxSteps   int
	Out        string
	LogLevel   string
	Overrides  PoolOverrides
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"zero-for-one": true,
		"max-steps":    0,
	})
	if err != nil {
		return QuoteConfig{}, err
	}

	return QuoteConfig{
		Snapshot:    v.GetString("snapshot"),
		Amount:      v.GetString("amount"),
		Decimals0:   uint8(v.GetUint("decimals0")),
		Decimals1:   uint8(v.GetUint("decimals1")),
		ZeroForOne:  v.GetBool("zero-for-one"),
		ExactOutput: v.GetBool("exact-output"),
		PriceLimit:  v.GetString("price-limit"),
		Threshold:   v.GetString("threshold"),
		Timestamp:   v.GetUint64("timestamp"),
		MaxSteps:    v.GetInt("max-steps"),
		Out:         v.GetString("out"),
		LogLevel:    v.GetString("log-level"),
		Overrides:   loadOverrides(v),
	}, nil
}

// AuditConfig holds configuration for the audit command.
type AuditConfig struct {
	Snapshot  string
	Timestamp uint64
	Decimals0 uint8
	Decimals1 uint8
	LogLevel  string
}

// LoadAudit merges config file, environment variables, and flags into AuditConfig.
func LoadAudit(cfgFile string, flags *pflag.FlagSet) (AuditConfig, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return AuditConfig{}, err
	}
	return AuditConfig{
		Snapshot:  v.GetString("snapshot"),
		Timestamp: v.GetUint64("timestamp"),
		Decimals0: uint8(v.GetUint("decimals0")),
		Decimals1: uint8(v.GetUint("decimals1")),
		LogLevel:  v.GetString("log-level"),
	}, nil
}
