package replay

import (
	"fmt"
	"math"
	"math/big"

	gmath "github.com/ethereum/go-ethereum/common/math"
	"lukechampine.com/uint128"

	"clmmScope/internal/fixedpoint"
	"clmmScope/internal/model"
	"clmmScope/internal/pool"
	"clmmScope/internal/snapshot"
)

func u128Of(h *gmath.HexOrDecimal256) (uint128.Uint128, error) {
	if h == nil {
		return uint128.Zero, nil
	}
	return fixedpoint.U128FromBig((*big.Int)(h))
}

// Apply runs op against st. On success st holds the new pool and positions; on failure st is
// unchanged. st.Seq is left to the caller.
func Apply(engine *pool.Engine, st *snapshot.State, op model.Operation) (model.OperationResult, error) {
	res := model.OperationResult{Seq: op.Seq, Kind: op.Kind, Timestamp: op.Timestamp, PositionID: op.PositionID}
	var (
		next *pool.Pool
		err  error
	)

	switch op.Kind {
	case model.OpSwap:
		next, err = applySwap(engine, st, op, &res)
	case model.OpIncrease, model.OpDecrease, model.OpCollect, model.OpCollectRewards, model.OpClose:
		next, err = applyPosition(st, op, &res)
	case model.OpInitReward:
		next, err = applyInitReward(st, op)
	case model.OpObserve:
		next, err = applyObserve(st, op, &res)
	default:
		err = fmt.Errorf("unknown kind %q", op.Kind)
	}
	if err != nil {
		return model.OperationResult{}, err
	}

	st.Pool = next
	res.SqrtPriceX64 = next.State.SqrtPriceX64.String()
	res.TickCurrent = next.State.TickCurrent
	res.PoolLiquidity = next.State.Liquidity.String()
	return res, nil
}

func applySwap(engine *pool.Engine, st *snapshot.State, op model.Operation, res *model.OperationResult) (*pool.Pool, error) {
	limit, err := u128Of(op.SqrtPriceLimitX64)
	if err != nil {
		return nil, fmt.Errorf("sqrt price limit: %w", err)
	}
	params := pool.SwapParams{
		AmountSpecified:   op.AmountSpecified,
		SqrtPriceLimitX64: limit,
		ZeroForOne:        op.ZeroForOne,
		ExactInput:        op.ExactInput,
		BlockTimestamp:    op.Timestamp,
	}

	var out pool.SwapResult
	if op.OtherAmountThreshold != nil {
		out, err = engine.SwapExact(st.Pool, params, *op.OtherAmountThreshold)
	} else {
		out, err = engine.Swap(st.Pool, params)
	}
	if err != nil {
		return nil, err
	}

	res.Amount0 = out.Amount0
	res.Amount1 = out.Amount1
	res.FeeAmount = out.FeeAmount
	res.ProtocolFee = out.ProtocolFee
	res.FundFee = out.FundFee
	res.SwapStatus = out.Status.String()
	res.Steps = len(out.Steps)
	res.Crossings = len(out.Crossings)
	return out.Pool, nil
}

func applyPosition(st *snapshot.State, op model.Operation, res *model.OperationResult) (*pool.Pool, error) {
	pos, exists := st.Positions[op.PositionID]
	if !exists && op.Kind != model.OpIncrease {
		return nil, fmt.Errorf("position %q not found", op.PositionID)
	}
	if !exists {
		pos = pool.Position{TickLower: op.TickLower, TickUpper: op.TickUpper}
	} else if (op.TickLower != 0 || op.TickUpper != 0) && (op.TickLower != pos.TickLower || op.TickUpper != pos.TickUpper) {
		return nil, fmt.Errorf("position %q spans [%d, %d), op names [%d, %d)", op.PositionID, pos.TickLower, pos.TickUpper, op.TickLower, op.TickUpper)
	}

	liquidity, err := u128Of(op.Liquidity)
	if err != nil {
		return nil, fmt.Errorf("liquidity: %w", err)
	}

	var change pool.LiquidityChange
	switch op.Kind {
	case model.OpIncrease:
		max0, max1 := op.Amount0, op.Amount1
		if liquidity.IsZero() {
			liquidity, err = st.Pool.LiquidityForAmounts(pos.TickLower, pos.TickUpper, max0, max1)
			if err != nil {
				return nil, err
			}
		}
		if max0 == 0 {
			max0 = math.MaxUint64
		}
		if max1 == 0 {
			max1 = math.MaxUint64
		}
		change, err = st.Pool.IncreaseLiquidity(pos, liquidity, max0, max1, op.Timestamp)
	case model.OpDecrease:
		change, err = st.Pool.DecreaseLiquidity(pos, liquidity, op.Amount0, op.Amount1, st.RewardVaults, op.Timestamp)
	case model.OpCollect:
		req0, req1 := op.Amount0, op.Amount1
		if req0 == 0 && req1 == 0 {
			req0, req1 = math.MaxUint64, math.MaxUint64
		}
		change, err = st.Pool.CollectFees(pos, req0, req1, op.Timestamp)
	case model.OpCollectRewards:
		change, err = st.Pool.CollectRewards(pos, st.RewardVaults, op.Timestamp)
	case model.OpClose:
		if err := pool.CheckClosable(pos); err != nil {
			return nil, err
		}
		delete(st.Positions, op.PositionID)
		return st.Pool, nil
	}
	if err != nil {
		return nil, err
	}

	if op.Kind == model.OpDecrease || op.Kind == model.OpCollectRewards {
		for i, amount := range change.Rewards {
			st.RewardVaults[i] -= amount
		}
		res.Rewards = change.Rewards[:]
	}
	st.Positions[op.PositionID] = change.Position
	res.Amount0 = change.Amount0
	res.Amount1 = change.Amount1
	res.Fees0 = change.Fees0
	res.Fees1 = change.Fees1
	res.PositionLiquidity = change.Position.Liquidity.String()
	return change.Pool, nil
}

func applyInitReward(st *snapshot.State, op model.Operation) (*pool.Pool, error) {
	emissions, err := u128Of(op.EmissionsPerSecondX64)
	if err != nil {
		return nil, fmt.Errorf("emissions: %w", err)
	}
	if op.RewardIndex < 0 || op.RewardIndex >= len(st.RewardVaults) {
		return nil, fmt.Errorf("reward index %d out of range", op.RewardIndex)
	}
	vault, overflow := gmath.SafeAdd(st.RewardVaults[op.RewardIndex], op.RewardFunding)
	if overflow {
		return nil, fmt.Errorf("reward vault %d overflows", op.RewardIndex)
	}
	next, err := st.Pool.InitReward(op.RewardIndex, op.RewardOpenTime, op.RewardEndTime, emissions, op.Timestamp)
	if err != nil {
		return nil, err
	}
	st.RewardVaults[op.RewardIndex] = vault
	return next, nil
}

func applyObserve(st *snapshot.State, op model.Operation, res *model.OperationResult) (*pool.Pool, error) {
	ps := st.Pool.State
	obs, _, err := st.Pool.Oracle.Observe(op.Timestamp, ps.TickCurrent, ps.Liquidity)
	if err != nil {
		return nil, err
	}
	twap, err := obs.TimeWeightedAverageTick(op.Timestamp, uint64(op.SecondsAgo), ps.TickCurrent, ps.Liquidity)
	if err != nil {
		return nil, err
	}
	next := st.Pool.Clone()
	next.Oracle = obs
	res.TwapTick = &twap
	return next, nil
}
