package tickarray

import (
	"lukechampine.com/uint128"

	"clmmScope/internal/accrual"
	"clmmScope/internal/fixedpoint"
	"clmmScope/internal/liquiditymath"
)

// TickState is the per-tick record referenced by position boundaries.
type TickState struct {
	Tick int32
	// LiquidityNet is added to active liquidity when price crosses the tick upward.
	LiquidityNet   fixedpoint.I128
	LiquidityGross uint128.Uint128

	FeeGrowthOutside0X64    uint128.Uint128
	FeeGrowthOutside1X64    uint128.Uint128
	RewardGrowthsOutsideX64 [accrual.RewardNum]uint128.Uint128
}

// IsInitialized reports whether any position references the tick.
func (t TickState) IsInitialized() bool {
	return !t.LiquidityGross.IsZero()
}

// Update applies a liquidity change from a position boundary and reports whether the tick flipped
// between initialized and uninitialized. The receiver is untouched when an error is returned.
func (t *TickState) Update(
	tickCurrent int32,
	delta fixedpoint.I128,
	feeGrowthGlobal0X64, feeGrowthGlobal1X64 uint128.Uint128,
	rewardGrowthsGlobalX64 [accrual.RewardNum]uint128.Uint128,
	upper bool,
	maxLiquidity uint128.Uint128,
) (bool, error) {
	grossBefore := t.LiquidityGross
	grossAfter, err := liquiditymath.AddLiquidityDelta(grossBefore, delta, maxLiquidity)
	if err != nil {
		return false, err
	}

	var net fixedpoint.I128
	if upper {
		net, err = t.LiquidityNet.Sub(delta)
	} else {
		net, err = t.LiquidityNet.Add(delta)
	}
	if err != nil {
		return false, err
	}

	next := *t
	if grossBefore.IsZero() && t.Tick <= tickCurrent {
		// growth before initialization is assumed to have happened below the tick
		next.FeeGrowthOutside0X64 = feeGrowthGlobal0X64
		next.FeeGrowthOutside1X64 = feeGrowthGlobal1X64
		next.RewardGrowthsOutsideX64 = rewardGrowthsGlobalX64
	}
	next.LiquidityGross = grossAfter
	next.LiquidityNet = net
	*t = next

	return grossAfter.IsZero() != grossBefore.IsZero(), nil
}

// Cross flips the outside accumulators as price moves through the tick and returns LiquidityNet.
func (t *TickState) Cross(
	feeGrowthGlobal0X64, feeGrowthGlobal1X64 uint128.Uint128,
	rewardGrowthsGlobalX64 [accrual.RewardNum]uint128.Uint128,
) fixedpoint.I128 {
	t.FeeGrowthOutside0X64 = feeGrowthGlobal0X64.SubWrap(t.FeeGrowthOutside0X64)
	t.FeeGrowthOutside1X64 = feeGrowthGlobal1X64.SubWrap(t.FeeGrowthOutside1X64)
	for i := range t.RewardGrowthsOutsideX64 {
		t.RewardGrowthsOutsideX64[i] = rewardGrowthsGlobalX64[i].SubWrap(t.RewardGrowthsOutsideX64[i])
	}
	return t.LiquidityNet
}

// Clear resets everything but the tick index.
func (t *TickState) Clear() {
	*t = TickState{Tick: t.Tick}
}
