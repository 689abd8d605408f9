package config

import (
	"github.com/spf13/pflag"
)

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	Snapshot    string
	Ops         string
	Out         string
	Errors      string
	SnapshotOut string
	BatchSize   uint64
	FailFast    bool
	MaxSteps    int
	PGDSN       string
	PoolName    string
	LogLevel    string
	Overrides   PoolOverrides
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"out":          "./data/results.jsonl",
		"errors":       "./data/errors.jsonl",
		"snapshot-out": "./data/snapshot.json",
		"batch-size":   uint64(500),
		"fail-fast":    false,
		"pool-name":    "default",
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	return ReplayConfig{
		Snapshot:    v.GetString("snapshot"),
		Ops:         v.GetString("ops"),
		Out:         v.GetString("out"),
		Errors:      v.GetString("errors"),
		SnapshotOut: v.GetString("snapshot-out"),
		BatchSize:   v.GetUint64("batch-size"),
		FailFast:    v.GetBool("fail-fast"),
		MaxSteps:    v.GetInt("max-steps"),
		PGDSN:       v.GetString("pg-dsn"),
		PoolName:    v.GetString("pool-name"),
		LogLevel:    v.GetString("log-level"),
		Overrides:   loadOverrides(v),
	}, nil
}
