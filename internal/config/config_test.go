package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"

	"clmmScope/internal/pool"
)

func replayFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("replay", pflag.ContinueOnError)
	flags.String("snapshot", "", "")
	flags.String("ops", "", "")
	flags.Uint64("batch-size", 500, "")
	flags.Bool("fail-fast", false, "")
	flags.Uint32("trade-fee-rate", 0, "")
	return flags
}

func TestLoadReplayPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "clmm.yaml")
	content := "snapshot: from-file.json\nops: from-file.jsonl\nbatch-size: 10\npool-name: usdc-sol\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CLMM_OPS", "from-env.jsonl")

	flags := replayFlags()
	if err := flags.Parse([]string{"--snapshot", "from-flag.json", "--fail-fast"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadReplay(cfgPath, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Snapshot != "from-flag.json" {
		t.Fatalf("flag should win: %q", cfg.Snapshot)
	}
	if cfg.Ops != "from-env.jsonl" {
		t.Fatalf("env should beat file: %q", cfg.Ops)
	}
	if cfg.BatchSize != 10 || cfg.PoolName != "usdc-sol" || !cfg.FailFast {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Out != "./data/results.jsonl" || cfg.LogLevel != "info" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Overrides.TradeFeeRate != nil {
		t.Fatalf("unset flag produced an override")
	}
}

func TestOverridesApply(t *testing.T) {
	flags := replayFlags()
	if err := flags.Parse([]string{"--trade-fee-rate", "500"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := LoadReplay(filepath.Join(t.TempDir(), "missing-ok.yaml"), nil)
	if err == nil {
		t.Fatalf("expected error for missing explicit config file, got %+v", cfg)
	}

	cfg, err = LoadReplay("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	amm, err := cfg.Overrides.Apply(pool.AmmConfig{TickSpacing: 10, TradeFeeRate: 2500, ProtocolFeeRate: 120000})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if amm.TradeFeeRate != 500 || amm.ProtocolFeeRate != 120000 || amm.TickSpacing != 10 {
		t.Fatalf("unexpected amm config: %+v", amm)
	}

	bad := uint32(1_000_000)
	if _, err := (PoolOverrides{TradeFeeRate: &bad}).Apply(amm); err == nil {
		t.Fatalf("expected validation error")
	}
}
