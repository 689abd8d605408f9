// Package replay applies an op log to a pool snapshot and records every outcome.
package replay

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"clmmScope/internal/model"
	"clmmScope/internal/pool"
	"clmmScope/internal/snapshot"
	"clmmScope/internal/storage"
)

// RunConfig holds runtime settings for a replay.
type RunConfig struct {
	BatchSize uint64
	// FailFast stops at the first rejected operation instead of recording it and moving on.
	FailFast bool
	// SnapshotPath, when set, receives the state after every batch.
	SnapshotPath string
	MaxSwapSteps int
}

// Summary counts what a run did.
type Summary struct {
	Applied int
	Failed  int
	Skipped int
	LastSeq uint64
}

// Runner applies operations in batches and writes results to storage.
type Runner struct {
	cfg     RunConfig
	engine  *pool.Engine
	storage storage.Storage
	logger  *zap.Logger
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, storageSink storage.Storage, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:     cfg,
		engine:  pool.NewEngine(pool.EngineConfig{MaxSteps: cfg.MaxSwapSteps}, logger),
		storage: storageSink,
		logger:  logger,
	}
}

// Run applies every op with a sequence above st.Seq, updating st in place.
func (r *Runner) Run(ctx context.Context, st *snapshot.State, ops []model.Operation) (Summary, error) {
	var summary Summary
	if st == nil || st.Pool == nil {
		return summary, fmt.Errorf("snapshot is nil")
	}
	if r.storage == nil {
		return summary, fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return summary, fmt.Errorf("batch size must be greater than zero")
	}

	pending := ops
	for len(pending) > 0 && pending[0].Seq <= st.Seq {
		pending = pending[1:]
		summary.Skipped++
	}
	summary.LastSeq = st.Seq
	if summary.Skipped > 0 {
		r.logger.Info("resume from snapshot", zap.Uint64("snapshot_seq", st.Seq), zap.Int("skipped", summary.Skipped))
	}
	if len(pending) == 0 {
		r.logger.Info("nothing to replay", zap.Uint64("snapshot_seq", st.Seq))
		return summary, nil
	}

	ranges, err := SplitRange(0, uint64(len(pending)-1), r.cfg.BatchSize)
	if err != nil {
		return summary, err
	}

	for _, batch := range ranges {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		chunk := pending[batch.From : batch.To+1]
		results := make([]model.OperationResult, 0, len(chunk))
		var failures []model.OperationError
		var stopErr error

		for _, op := range chunk {
			res, err := Apply(r.engine, st, op)
			if err != nil {
				summary.Failed++
				r.logger.Warn("operation rejected",
					zap.Uint64("seq", op.Seq),
					zap.String("kind", string(op.Kind)),
					zap.String("position_id", op.PositionID),
					zap.Error(err),
				)
				failures = append(failures, model.OperationError{Seq: op.Seq, Kind: op.Kind, PositionID: op.PositionID, Error: err.Error()})
				if r.cfg.FailFast {
					stopErr = fmt.Errorf("op %d: %w", op.Seq, err)
					break
				}
			} else {
				summary.Applied++
				results = append(results, res)
			}
			st.Seq = op.Seq
			summary.LastSeq = op.Seq
		}

		if err := r.flush(ctx, st, results, failures); err != nil {
			return summary, err
		}
		if stopErr != nil {
			return summary, stopErr
		}

		r.logger.Info("batch complete",
			zap.Int("ops", len(chunk)),
			zap.Int("failed", len(failures)),
			zap.Uint64("last_seq", st.Seq),
			zap.Int32("tick", st.Pool.State.TickCurrent),
		)
	}

	return summary, nil
}

func (r *Runner) flush(ctx context.Context, st *snapshot.State, results []model.OperationResult, failures []model.OperationError) error {
	if err := r.storage.PutResultBatch(ctx, results); err != nil {
		return fmt.Errorf("store results: %w", err)
	}
	if err := r.storage.PutErrorBatch(ctx, failures); err != nil {
		return fmt.Errorf("store errors: %w", err)
	}
	if r.cfg.SnapshotPath != "" {
		if err := snapshot.WriteFile(r.cfg.SnapshotPath, st); err != nil {
			return err
		}
	}
	return nil
}
