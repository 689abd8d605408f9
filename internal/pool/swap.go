package pool

import (
	"fmt"

	gmath "github.com/ethereum/go-ethereum/common/math"
	"go.uber.org/zap"
	"lukechampine.com/uint128"

	"clmmScope/internal/accrual"
	"clmmScope/internal/ammerr"
	"clmmScope/internal/fixedpoint"
	"clmmScope/internal/liquiditymath"
	"clmmScope/internal/swapmath"
	"clmmScope/internal/tickarray"
	"clmmScope/internal/tickmath"
)

// MaxTickArrayCrossings bounds the tick arrays one swap may walk through.
const MaxTickArrayCrossings = 10

// DefaultMaxSwapSteps is the iteration ceiling of the swap loop.
const DefaultMaxSwapSteps = tickarray.TickArraySize * MaxTickArrayCrossings

// SwapStatus is the state of the swap loop.
type SwapStatus uint8

const (
	SwapActive SwapStatus = iota
	SwapLimitReached
	SwapExhausted
)

func (s SwapStatus) String() string {
	switch s {
	case SwapLimitReached:
		return "limit_reached"
	case SwapExhausted:
		return "exhausted"
	default:
		return "active"
	}
}

// EngineConfig tunes the swap engine.
type EngineConfig struct {
	MaxSteps int
}

// Engine runs swaps.
type Engine struct {
	cfg    EngineConfig
	logger *zap.Logger
}

// NewEngine builds an Engine. A non-positive MaxSteps selects DefaultMaxSwapSteps.
func NewEngine(cfg EngineConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSwapSteps
	}
	return &Engine{cfg: cfg, logger: logger}
}

// SwapParams describes one swap. A zero SqrtPriceLimitX64 means no limit.
type SwapParams struct {
	AmountSpecified   uint64
	SqrtPriceLimitX64 uint128.Uint128
	ZeroForOne        bool
	ExactInput        bool
	BlockTimestamp    uint64
}

// SwapStep records one iteration of the swap loop.
type SwapStep struct {
	SqrtPriceStartX64 uint128.Uint128
	SqrtPriceNextX64  uint128.Uint128
	TickNext          int32
	Initialized       bool
	AmountIn          uint64
	AmountOut         uint64
	FeeAmount         uint64
	ProtocolFee       uint64
	FundFee           uint64
}

// SwapResult is the outcome of a swap. Pool is the updated pool; Crossings holds the crossed
// ticks as they stand after the crossing.
type SwapResult struct {
	Pool        *Pool
	Amount0     uint64
	Amount1     uint64
	FeeAmount   uint64
	ProtocolFee uint64
	FundFee     uint64
	Status      SwapStatus
	Steps       []SwapStep
	Crossings   []tickarray.TickState
}

// AmountIn is the amount paid into the pool, fee included.
func (r SwapResult) AmountIn(zeroForOne bool) uint64 {
	if zeroForOne {
		return r.Amount0
	}
	return r.Amount1
}

// AmountOut is the amount paid out of the pool.
func (r SwapResult) AmountOut(zeroForOne bool) uint64 {
	if zeroForOne {
		return r.Amount1
	}
	return r.Amount0
}

func resolvePriceLimit(limit, current uint128.Uint128, zeroForOne bool) (uint128.Uint128, error) {
	if limit.IsZero() {
		if zeroForOne {
			return tickmath.MinSqrtPriceX64.Add64(1), nil
		}
		return tickmath.MaxSqrtPriceX64.Sub64(1), nil
	}
	var ok bool
	if zeroForOne {
		ok = limit.Cmp(current) < 0 && limit.Cmp(tickmath.MinSqrtPriceX64) > 0
	} else {
		ok = limit.Cmp(current) > 0 && limit.Cmp(tickmath.MaxSqrtPriceX64) < 0
	}
	if !ok {
		return uint128.Zero, fmt.Errorf("limit %s from price %s: %w", limit, current, ammerr.ErrPriceLimitViolated)
	}
	return limit, nil
}

// carve takes rate parts per FeeRateDenominator out of fee.
func carve(fee uint64, rate uint32) (uint64, error) {
	if rate == 0 || fee == 0 {
		return 0, nil
	}
	delta, err := fixedpoint.MulDivFloor(uint128.From64(fee), uint128.From64(uint64(rate)), uint128.From64(swapmath.FeeRateDenominator))
	if err != nil {
		return 0, err
	}
	return fixedpoint.ToUint64(delta)
}

// Swap moves the pool price until the specified amount is used up or the price limit is reached,
// crossing initialized ticks on the way.
func (e *Engine) Swap(p *Pool, params SwapParams) (SwapResult, error) {
	if !p.State.Status.Allows(StatusSwap) {
		return SwapResult{}, fmt.Errorf("swap: %w", ammerr.ErrNotApproved)
	}
	if params.AmountSpecified == 0 {
		return SwapResult{}, fmt.Errorf("swap: %w", ammerr.ErrZeroAmount)
	}
	zeroForOne := params.ZeroForOne
	limit, err := resolvePriceLimit(params.SqrtPriceLimitX64, p.State.SqrtPriceX64, zeroForOne)
	if err != nil {
		return SwapResult{}, err
	}

	next := p.Clone()
	spacing := next.Config.TickSpacing
	state := &next.State

	infos, err := accrual.UpdateRewardInfos(state.RewardInfos, params.BlockTimestamp, state.Liquidity)
	if err != nil {
		return SwapResult{}, fmt.Errorf("update rewards: %w", err)
	}
	rewardGrowths := accrual.GrowthsGlobal(infos)
	observed, _, err := next.Oracle.Observe(params.BlockTimestamp, state.TickCurrent, state.Liquidity)
	if err != nil {
		return SwapResult{}, fmt.Errorf("observe: %w", err)
	}

	var (
		remaining   = params.AmountSpecified
		calculated  uint64
		sqrtPrice   = state.SqrtPriceX64
		tick        = state.TickCurrent
		liquidity   = state.Liquidity
		feeGrowth   = state.FeeGrowthGlobal1X64
		feeTotal    uint64
		protocolFee uint64
		fundFee     uint64
		res         SwapResult
	)
	if zeroForOne {
		feeGrowth = state.FeeGrowthGlobal0X64
	}

	for remaining != 0 && !sqrtPrice.Equals(limit) {
		if len(res.Steps) >= e.cfg.MaxSteps {
			return SwapResult{}, fmt.Errorf("after %d steps: %w", len(res.Steps), ammerr.ErrSwapStepLimitExceeded)
		}

		nextTick, found, err := tickarray.NextInitializedTick(&state.TickArrayBitmap, next.Ticks, tick, spacing, zeroForOne)
		if err != nil {
			return SwapResult{}, fmt.Errorf("next initialized tick: %w", err)
		}
		step := SwapStep{SqrtPriceStartX64: sqrtPrice, Initialized: found}
		switch {
		case found:
			step.TickNext = nextTick.Tick
		case liquidity.IsZero():
			return SwapResult{}, fmt.Errorf("at tick %d with %d remaining: %w", tick, remaining, ammerr.ErrInsufficientLiquidity)
		case zeroForOne:
			step.TickNext = tickmath.MinTick
		default:
			step.TickNext = tickmath.MaxTick
		}
		if step.TickNext < tickmath.MinTick {
			step.TickNext = tickmath.MinTick
		} else if step.TickNext > tickmath.MaxTick {
			step.TickNext = tickmath.MaxTick
		}

		tickPrice, err := tickmath.SqrtPriceAtTick(step.TickNext)
		if err != nil {
			return SwapResult{}, err
		}
		target := tickPrice
		if (zeroForOne && tickPrice.Cmp(limit) < 0) || (!zeroForOne && tickPrice.Cmp(limit) > 0) {
			target = limit
		}

		sr, err := swapmath.ComputeSwapStep(sqrtPrice, target, liquidity, remaining, next.Config.TradeFeeRate, params.ExactInput)
		if err != nil {
			return SwapResult{}, fmt.Errorf("swap step %d: %w", len(res.Steps), err)
		}
		sqrtPrice = sr.SqrtPriceNextX64
		step.SqrtPriceNextX64 = sr.SqrtPriceNextX64
		step.AmountIn, step.AmountOut, step.FeeAmount = sr.AmountIn, sr.AmountOut, sr.FeeAmount

		inWithFee, overflow := gmath.SafeAdd(sr.AmountIn, sr.FeeAmount)
		if overflow {
			return SwapResult{}, fmt.Errorf("step input: %w", ammerr.ErrOverflow)
		}
		consumed, produced := inWithFee, sr.AmountOut
		if !params.ExactInput {
			consumed, produced = sr.AmountOut, inWithFee
		}
		if remaining, overflow = gmath.SafeSub(remaining, consumed); overflow {
			return SwapResult{}, fmt.Errorf("step consumed %d of %d: %w", consumed, remaining, ammerr.ErrOverflow)
		}
		if calculated, overflow = gmath.SafeAdd(calculated, produced); overflow {
			return SwapResult{}, fmt.Errorf("amount calculated: %w", ammerr.ErrOverflow)
		}

		lpFee := sr.FeeAmount
		if step.ProtocolFee, err = carve(sr.FeeAmount, next.Config.ProtocolFeeRate); err != nil {
			return SwapResult{}, fmt.Errorf("protocol fee: %w", err)
		}
		if step.FundFee, err = carve(sr.FeeAmount, next.Config.FundFeeRate); err != nil {
			return SwapResult{}, fmt.Errorf("fund fee: %w", err)
		}
		lpFee -= step.ProtocolFee + step.FundFee
		protocolFee += step.ProtocolFee
		fundFee += step.FundFee

		if !liquidity.IsZero() {
			delta, err := accrual.FeeGrowthDelta(lpFee, liquidity)
			if err != nil {
				return SwapResult{}, fmt.Errorf("fee growth: %w", err)
			}
			if feeGrowth, err = fixedpoint.CheckedAdd(feeGrowth, delta); err != nil {
				return SwapResult{}, fmt.Errorf("fee growth global: %w", err)
			}
			feeTotal += lpFee
		}

		e.logger.Debug("swap step",
			zap.Int("step", len(res.Steps)),
			zap.Stringer("sqrt_price_start", step.SqrtPriceStartX64),
			zap.Stringer("sqrt_price_next", step.SqrtPriceNextX64),
			zap.Int32("tick", tick),
			zap.Int32("tick_next", step.TickNext),
			zap.Stringer("liquidity", liquidity),
			zap.Uint64("amount_in", step.AmountIn),
			zap.Uint64("amount_out", step.AmountOut),
			zap.Uint64("fee", step.FeeAmount),
			zap.Uint64("protocol_fee", step.ProtocolFee),
			zap.Uint64("fund_fee", step.FundFee),
		)

		if sqrtPrice.Equals(tickPrice) {
			if found {
				fg0, fg1 := state.FeeGrowthGlobal0X64, feeGrowth
				if zeroForOne {
					fg0, fg1 = feeGrowth, state.FeeGrowthGlobal1X64
				}
				net := nextTick.Cross(fg0, fg1, rewardGrowths)
				if err := next.Ticks.SetTick(nextTick, &state.TickArrayBitmap); err != nil {
					return SwapResult{}, fmt.Errorf("store crossed tick %d: %w", nextTick.Tick, err)
				}
				res.Crossings = append(res.Crossings, nextTick)
				if zeroForOne {
					if net, err = net.Negate(); err != nil {
						return SwapResult{}, err
					}
				}
				if liquidity, err = liquiditymath.AddDelta(liquidity, net); err != nil {
					return SwapResult{}, fmt.Errorf("cross tick %d: %w", nextTick.Tick, err)
				}
			}
			tick = step.TickNext
			if zeroForOne {
				tick--
			}
		} else if !sqrtPrice.Equals(step.SqrtPriceStartX64) {
			if tick, err = tickmath.TickAtSqrtPrice(sqrtPrice); err != nil {
				return SwapResult{}, err
			}
		}
		res.Steps = append(res.Steps, step)
	}

	used := params.AmountSpecified - remaining
	if zeroForOne == params.ExactInput {
		res.Amount0, res.Amount1 = used, calculated
	} else {
		res.Amount0, res.Amount1 = calculated, used
	}

	state.SqrtPriceX64 = sqrtPrice
	state.TickCurrent = tick
	state.Liquidity = liquidity
	state.RewardInfos = infos
	next.Oracle = observed
	if err := applyTotals(state, zeroForOne, res.Amount0, res.Amount1, feeGrowth, feeTotal, protocolFee, fundFee); err != nil {
		return SwapResult{}, err
	}

	res.Pool = next
	res.FeeAmount = feeTotal
	res.ProtocolFee = protocolFee
	res.FundFee = fundFee
	res.Status = SwapLimitReached
	if remaining == 0 {
		res.Status = SwapExhausted
	}
	return res, nil
}

func applyTotals(state *PoolState, zeroForOne bool, amount0, amount1 uint64, feeGrowth uint128.Uint128, fee, protocolFee, fundFee uint64) error {
	var (
		overflow [3]bool
		errIn    error
		errOut   error
	)
	if zeroForOne {
		state.FeeGrowthGlobal0X64 = feeGrowth
		state.TotalFeesToken0, overflow[0] = gmath.SafeAdd(state.TotalFeesToken0, fee)
		state.ProtocolFeesToken0, overflow[1] = gmath.SafeAdd(state.ProtocolFeesToken0, protocolFee)
		state.FundFeesToken0, overflow[2] = gmath.SafeAdd(state.FundFeesToken0, fundFee)
		state.SwapInAmountToken0, errIn = fixedpoint.CheckedAdd(state.SwapInAmountToken0, uint128.From64(amount0))
		state.SwapOutAmountToken1, errOut = fixedpoint.CheckedAdd(state.SwapOutAmountToken1, uint128.From64(amount1))
	} else {
		state.FeeGrowthGlobal1X64 = feeGrowth
		state.TotalFeesToken1, overflow[0] = gmath.SafeAdd(state.TotalFeesToken1, fee)
		state.ProtocolFeesToken1, overflow[1] = gmath.SafeAdd(state.ProtocolFeesToken1, protocolFee)
		state.FundFeesToken1, overflow[2] = gmath.SafeAdd(state.FundFeesToken1, fundFee)
		state.SwapInAmountToken1, errIn = fixedpoint.CheckedAdd(state.SwapInAmountToken1, uint128.From64(amount1))
		state.SwapOutAmountToken0, errOut = fixedpoint.CheckedAdd(state.SwapOutAmountToken0, uint128.From64(amount0))
	}
	for _, o := range overflow {
		if o {
			return fmt.Errorf("pool fee totals: %w", ammerr.ErrOverflow)
		}
	}
	if errIn != nil || errOut != nil {
		return fmt.Errorf("pool swap totals: %w", ammerr.ErrOverflow)
	}
	return nil
}

// checkPriceMoved requires the swap to have moved the price strictly in its direction.
func checkPriceMoved(before, after uint128.Uint128, zeroForOne bool) error {
	if (zeroForOne && after.Cmp(before) < 0) || (!zeroForOne && after.Cmp(before) > 0) {
		return nil
	}
	return fmt.Errorf("sqrt price %s -> %s: %w", before, after, ammerr.ErrZeroAmount)
}

// SwapExact runs Swap and checks the other side against otherAmountThreshold: a minimum output
// for exact input, a maximum input for exact output.
func (e *Engine) SwapExact(p *Pool, params SwapParams, otherAmountThreshold uint64) (SwapResult, error) {
	res, err := e.Swap(p, params)
	if err != nil {
		return SwapResult{}, err
	}
	if res.Amount0 == 0 || res.Amount1 == 0 {
		return SwapResult{}, fmt.Errorf("amount0 %d amount1 %d: %w", res.Amount0, res.Amount1, ammerr.ErrZeroAmount)
	}
	if err := checkPriceMoved(p.State.SqrtPriceX64, res.Pool.State.SqrtPriceX64, params.ZeroForOne); err != nil {
		return SwapResult{}, err
	}
	if params.ExactInput {
		if out := res.AmountOut(params.ZeroForOne); out < otherAmountThreshold {
			return SwapResult{}, fmt.Errorf("output %d below minimum %d: %w", out, otherAmountThreshold, ammerr.ErrSlippage)
		}
	} else if in := res.AmountIn(params.ZeroForOne); in > otherAmountThreshold {
		return SwapResult{}, fmt.Errorf("input %d above maximum %d: %w", in, otherAmountThreshold, ammerr.ErrSlippage)
	}
	return res, nil
}
