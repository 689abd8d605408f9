package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sugawarayuuta/sonnet"

	"clmmScope/internal/model"
)

// Store persists operation results to Postgres. Rows are keyed by pool name and op sequence, so
// replaying the same log twice overwrites instead of duplicating.
type Store struct {
	pool     *pgxpool.Pool
	poolName string
}

func NewStore(ctx context.Context, dsn, poolName string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	if poolName == "" {
		return nil, fmt.Errorf("pool name is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, poolName: poolName}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func numeric(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// PutResultBatch upserts operation results.
func (s *Store) PutResultBatch(ctx context.Context, results []model.OperationResult) error {
	if len(results) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range results {
		var rewards []byte
		if len(r.Rewards) > 0 {
			raw, err := sonnet.Marshal(r.Rewards)
			if err != nil {
				return fmt.Errorf("marshal rewards: %w", err)
			}
			rewards = raw
		}
		batch.Queue(`
			INSERT INTO clmm_operation_results (
				pool_name, seq, kind, ts, position_id, amount0, amount1, fees0, fees1, fee_amount, protocol_fee, fund_fee,
				rewards, swap_status, steps, crossings, twap_tick, position_liquidity,
				sqrt_price_x64, tick_current, pool_liquidity, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,now(),now())
			ON CONFLICT (pool_name, seq)
			DO UPDATE SET
				kind = EXCLUDED.kind,
				ts = EXCLUDED.ts,
				position_id = EXCLUDED.position_id,
				amount0 = EXCLUDED.amount0,
				amount1 = EXCLUDED.amount1,
				fees0 = EXCLUDED.fees0,
				fees1 = EXCLUDED.fees1,
				fee_amount = EXCLUDED.fee_amount,
				protocol_fee = EXCLUDED.protocol_fee,
				fund_fee = EXCLUDED.fund_fee,
				rewards = EXCLUDED.rewards,
				swap_status = EXCLUDED.swap_status,
				steps = EXCLUDED.steps,
				crossings = EXCLUDED.crossings,
				twap_tick = EXCLUDED.twap_tick,
				position_liquidity = EXCLUDED.position_liquidity,
				sqrt_price_x64 = EXCLUDED.sqrt_price_x64,
				tick_current = EXCLUDED.tick_current,
				pool_liquidity = EXCLUDED.pool_liquidity,
				updated_at = now()
		`,
			s.poolName,
			int64(r.Seq),
			string(r.Kind),
			int64(r.Timestamp),
			nullable(r.PositionID),
			numeric(r.Amount0),
			numeric(r.Amount1),
			numeric(r.Fees0),
			numeric(r.Fees1),
			numeric(r.FeeAmount),
			numeric(r.ProtocolFee),
			numeric(r.FundFee),
			rewards,
			nullable(r.SwapStatus),
			r.Steps,
			r.Crossings,
			r.TwapTick,
			nullable(r.PositionLiquidity),
			r.SqrtPriceX64,
			r.TickCurrent,
			r.PoolLiquidity,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range results {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutErrorBatch upserts rejected operations.
func (s *Store) PutErrorBatch(ctx context.Context, failures []model.OperationError) error {
	if len(failures) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, f := range failures {
		batch.Queue(`
			INSERT INTO clmm_operation_errors (pool_name, seq, kind, position_id, error, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (pool_name, seq)
			DO UPDATE SET kind = EXCLUDED.kind, position_id = EXCLUDED.position_id, error = EXCLUDED.error
		`, s.poolName, int64(f.Seq), string(f.Kind), nullable(f.PositionID), f.Error)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range failures {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LastSeq returns the highest stored sequence for the pool.
func (s *Store) LastSeq(ctx context.Context) (uint64, bool, error) {
	var seq *int64
	row := s.pool.QueryRow(ctx, `SELECT max(seq) FROM clmm_operation_results WHERE pool_name=$1`, s.poolName)
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if seq == nil {
		return 0, false, nil
	}
	return uint64(*seq), true, nil
}
