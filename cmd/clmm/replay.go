package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clmmScope/internal/config"
	"clmmScope/internal/replay"
	"clmmScope/internal/storage"
	"clmmScope/internal/storage/postgres"
)

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Apply an op log to a snapshot and record every result",
		Args:  cobra.NoArgs,
		RunE:  runReplay,
	}
	cmd.Flags().String("snapshot", "", "input pool snapshot JSON")
	cmd.Flags().String("ops", "", "op log JSONL")
	cmd.Flags().String("out", "./data/results.jsonl", "results JSONL (ignored with --pg-dsn)")
	cmd.Flags().String("errors", "./data/errors.jsonl", "rejected operations JSONL (ignored with --pg-dsn)")
	cmd.Flags().String("snapshot-out", "./data/snapshot.json", "snapshot written after every batch")
	cmd.Flags().Uint64("batch-size", 500, "operations per batch")
	cmd.Flags().Bool("fail-fast", false, "stop at the first rejected operation")
	cmd.Flags().Int("max-steps", 0, "swap step ceiling, 0 means the default")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN; results go to Postgres when set")
	cmd.Flags().String("pool-name", "default", "pool name used as the Postgres key")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	addFeeOverrideFlags(cmd)
	return cmd
}

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Ops == "" {
		return fmt.Errorf("ops path is required")
	}
	st, err := loadSnapshot(cfg.Snapshot, cfg.Overrides)
	if err != nil {
		return err
	}
	ops, err := replay.LoadOps(cfg.Ops)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink storage.Storage
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN, cfg.PoolName)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if last, ok, err := store.LastSeq(ctx); err != nil {
			return fmt.Errorf("load last seq: %w", err)
		} else if ok && last > st.Seq {
			logger.Warn("postgres holds results past the snapshot; they will be overwritten",
				zap.Uint64("stored_seq", last), zap.Uint64("snapshot_seq", st.Seq))
		}
		sink = store
	} else {
		sink = storage.NewJsonlStorage(cfg.Out, cfg.Errors)
	}

	logger.Info("replay start",
		zap.String("snapshot", cfg.Snapshot),
		zap.String("ops", cfg.Ops),
		zap.Int("op_count", len(ops)),
		zap.Uint64("snapshot_seq", st.Seq),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Bool("fail_fast", cfg.FailFast),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.String("snapshot_out", cfg.SnapshotOut),
	)

	runner := replay.NewRunner(replay.RunConfig{
		BatchSize:    cfg.BatchSize,
		FailFast:     cfg.FailFast,
		SnapshotPath: cfg.SnapshotOut,
		MaxSwapSteps: cfg.MaxSteps,
	}, sink, logger)

	summary, err := runner.Run(ctx, st, ops)
	logger.Info("replay complete",
		zap.Int("applied", summary.Applied),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Uint64("last_seq", summary.LastSeq),
	)
	return err
}
