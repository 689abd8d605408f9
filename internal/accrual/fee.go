// Package accrual settles fees and rewards lazily through per-liquidity growth accumulators.
//
// Accumulators are modular: they wrap at 2^128 and every difference is taken with wrapping
// subtraction, so results stay correct after overflow.
package accrual

import (
	"lukechampine.com/uint128"

	"clmmScope/internal/fixedpoint"
)

// FeeGrowthInside returns the growth per unit of liquidity accrued while the price was inside
// [tickLower, tickUpper), from the global growth and the two boundary ticks' outside values.
func FeeGrowthInside(tickLower, tickUpper, tickCurrent int32, feeGrowthGlobalX64, lowerOutsideX64, upperOutsideX64 uint128.Uint128) uint128.Uint128 {
	below := lowerOutsideX64
	if tickCurrent < tickLower {
		below = feeGrowthGlobalX64.SubWrap(lowerOutsideX64)
	}
	above := upperOutsideX64
	if tickCurrent >= tickUpper {
		above = feeGrowthGlobalX64.SubWrap(upperOutsideX64)
	}
	return feeGrowthGlobalX64.SubWrap(below).SubWrap(above)
}

// OwedDelta converts a growth difference into a token amount: (now - last) * liquidity / 2^64,
// rounded down and clamped to the token amount range.
func OwedDelta(growthNowX64, growthLastX64, liquidity uint128.Uint128) uint64 {
	delta := growthNowX64.SubWrap(growthLastX64)
	owed, err := fixedpoint.MulShift(delta, liquidity, fixedpoint.Resolution, false)
	if err != nil {
		return ^uint64(0)
	}
	return fixedpoint.SaturatingUint64(owed)
}

// FeeGrowthDelta is the global growth added by fee paid against active liquidity.
func FeeGrowthDelta(fee uint64, liquidity uint128.Uint128) (uint128.Uint128, error) {
	return fixedpoint.ShlDiv(uint128.From64(fee), fixedpoint.Resolution, liquidity, false)
}
