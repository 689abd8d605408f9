// Package liquiditymath relates virtual liquidity to token amounts over a sqrt price range.
package liquiditymath

import (
	"fmt"

	"github.com/holiman/uint256"
	"lukechampine.com/uint128"

	"clmmScope/internal/ammerr"
	"clmmScope/internal/fixedpoint"
	"clmmScope/internal/tickmath"
)

// AddDelta applies a signed delta to an unsigned liquidity value.
func AddDelta(x uint128.Uint128, delta fixedpoint.I128) (uint128.Uint128, error) {
	if delta.Neg {
		if x.Cmp(delta.Abs) < 0 {
			return uint128.Zero, ammerr.ErrLiquidityUnderflow
		}
		return x.Sub(delta.Abs), nil
	}
	sum, err := fixedpoint.CheckedAdd(x, delta.Abs)
	if err != nil {
		return uint128.Zero, ammerr.ErrLiquidityOverflow
	}
	return sum, nil
}

// AddLiquidityDelta applies delta to a tick's gross liquidity and enforces the per-tick cap.
func AddLiquidityDelta(liquidityGross uint128.Uint128, delta fixedpoint.I128, maxLiquidity uint128.Uint128) (uint128.Uint128, error) {
	next, err := AddDelta(liquidityGross, delta)
	if err != nil {
		return uint128.Zero, err
	}
	if !delta.Neg && next.Cmp(maxLiquidity) > 0 {
		return uint128.Zero, fmt.Errorf("gross %s above cap %s: %w", next, maxLiquidity, ammerr.ErrLiquidityOverflow)
	}
	return next, nil
}

// MaxLiquidityPerTick spreads the u128 liquidity space evenly across every usable tick, so the
// sum of gross liquidity over all ticks can never overflow while crossing.
func MaxLiquidityPerTick(tickSpacing uint16) uint128.Uint128 {
	spacing := int32(tickSpacing)
	minTick := tickmath.TickWithSpacing(tickmath.MinTick, spacing)
	if minTick < tickmath.MinTick {
		minTick += spacing
	}
	maxTick := tickmath.TickWithSpacing(tickmath.MaxTick, spacing)
	numTicks := uint64((maxTick-minTick)/spacing) + 1
	return uint128.Max.Div64(numTicks)
}

func ordered(a, b uint128.Uint128) (uint128.Uint128, uint128.Uint128) {
	if a.Cmp(b) > 0 {
		return b, a
	}
	return a, b
}

// LiquidityFromAmount0 returns the liquidity that amount0 of token0 buys across [a, b], rounded down.
func LiquidityFromAmount0(sqrtPriceA, sqrtPriceB uint128.Uint128, amount0 uint64) (uint128.Uint128, error) {
	a, b := ordered(sqrtPriceA, sqrtPriceB)
	if a.Equals(b) {
		return uint128.Zero, ammerr.ErrDivideByZero
	}
	intermediate, err := fixedpoint.MulDivFloor(a, b, fixedpoint.Q64)
	if err != nil {
		return uint128.Zero, err
	}
	return fixedpoint.MulDivFloor(uint128.From64(amount0), intermediate, b.Sub(a))
}

// LiquidityFromAmount1 returns the liquidity that amount1 of token1 buys across [a, b], rounded down.
func LiquidityFromAmount1(sqrtPriceA, sqrtPriceB uint128.Uint128, amount1 uint64) (uint128.Uint128, error) {
	a, b := ordered(sqrtPriceA, sqrtPriceB)
	if a.Equals(b) {
		return uint128.Zero, ammerr.ErrDivideByZero
	}
	return fixedpoint.MulDivFloor(uint128.From64(amount1), fixedpoint.Q64, b.Sub(a))
}

// LiquidityFromAmounts returns the largest liquidity both amounts can fund at the current price.
// Below the range only amount0 matters, above it only amount1, inside it the smaller of the two.
func LiquidityFromAmounts(sqrtPriceCurrent, sqrtPriceA, sqrtPriceB uint128.Uint128, amount0, amount1 uint64) (uint128.Uint128, error) {
	a, b := ordered(sqrtPriceA, sqrtPriceB)
	switch {
	case sqrtPriceCurrent.Cmp(a) <= 0:
		return LiquidityFromAmount0(a, b, amount0)
	case sqrtPriceCurrent.Cmp(b) < 0:
		l0, err := LiquidityFromAmount0(sqrtPriceCurrent, b, amount0)
		if err != nil {
			return uint128.Zero, err
		}
		l1, err := LiquidityFromAmount1(a, sqrtPriceCurrent, amount1)
		if err != nil {
			return uint128.Zero, err
		}
		if l0.Cmp(l1) < 0 {
			return l0, nil
		}
		return l1, nil
	default:
		return LiquidityFromAmount1(a, b, amount1)
	}
}

// Amount0Delta returns liquidity * (b - a) / (a * b), the token0 held across [a, b].
func Amount0Delta(sqrtPriceA, sqrtPriceB, liquidity uint128.Uint128, roundUp bool) (uint128.Uint128, error) {
	a, b := ordered(sqrtPriceA, sqrtPriceB)
	if a.IsZero() {
		return uint128.Zero, ammerr.ErrDivideByZero
	}
	num1 := new(uint256.Int).Lsh(fixedpoint.Wide(liquidity), fixedpoint.Resolution)
	num2 := fixedpoint.Wide(b.Sub(a))

	q, err := fixedpoint.MulDivWide(num1, num2, fixedpoint.Wide(b), roundUp)
	if err != nil {
		return uint128.Zero, err
	}
	res, rem := new(uint256.Int), new(uint256.Int)
	res.DivMod(q, fixedpoint.Wide(a), rem)
	if roundUp && !rem.IsZero() {
		res.AddUint64(res, 1)
	}
	return fixedpoint.Narrow(res)
}

// Amount1Delta returns liquidity * (b - a), the token1 held across [a, b].
func Amount1Delta(sqrtPriceA, sqrtPriceB, liquidity uint128.Uint128, roundUp bool) (uint128.Uint128, error) {
	a, b := ordered(sqrtPriceA, sqrtPriceB)
	return fixedpoint.MulDiv(liquidity, b.Sub(a), fixedpoint.Q64, roundUp)
}

// Amount0DeltaU64 is Amount0Delta checked to fit a token amount.
func Amount0DeltaU64(sqrtPriceA, sqrtPriceB, liquidity uint128.Uint128, roundUp bool) (uint64, error) {
	v, err := Amount0Delta(sqrtPriceA, sqrtPriceB, liquidity, roundUp)
	if err != nil {
		return 0, err
	}
	return fixedpoint.ToUint64(v)
}

// Amount1DeltaU64 is Amount1Delta checked to fit a token amount.
func Amount1DeltaU64(sqrtPriceA, sqrtPriceB, liquidity uint128.Uint128, roundUp bool) (uint64, error) {
	v, err := Amount1Delta(sqrtPriceA, sqrtPriceB, liquidity, roundUp)
	if err != nil {
		return 0, err
	}
	return fixedpoint.ToUint64(v)
}

// AmountsFromLiquidity returns the token amounts represented by liquidity over [a, b] at the
// current price. roundUp is set when the amounts are owed to the pool.
func AmountsFromLiquidity(sqrtPriceCurrent, sqrtPriceA, sqrtPriceB, liquidity uint128.Uint128, roundUp bool) (uint64, uint64, error) {
	a, b := ordered(sqrtPriceA, sqrtPriceB)
	var amount0, amount1 uint64
	var err error
	switch {
	case sqrtPriceCurrent.Cmp(a) <= 0:
		amount0, err = Amount0DeltaU64(a, b, liquidity, roundUp)
	case sqrtPriceCurrent.Cmp(b) < 0:
		amount0, err = Amount0DeltaU64(sqrtPriceCurrent, b, liquidity, roundUp)
		if err == nil {
			amount1, err = Amount1DeltaU64(a, sqrtPriceCurrent, liquidity, roundUp)
		}
	default:
		amount1, err = Amount1DeltaU64(a, b, liquidity, roundUp)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("amounts from liquidity: %w", err)
	}
	return amount0, amount1, nil
}

// AmountsForDelta returns the token amounts moved by a signed liquidity change on [tickLower,
// tickUpper). Deposits round up and withdrawals round down. active reports whether the range
// covers tickCurrent, in which case the pool's active liquidity changes too.
func AmountsForDelta(tickCurrent int32, sqrtPriceCurrent uint128.Uint128, tickLower, tickUpper int32, delta fixedpoint.I128) (amount0, amount1 uint64, active bool, err error) {
	priceLower, err := tickmath.SqrtPriceAtTick(tickLower)
	if err != nil {
		return 0, 0, false, err
	}
	priceUpper, err := tickmath.SqrtPriceAtTick(tickUpper)
	if err != nil {
		return 0, 0, false, err
	}
	roundUp := !delta.Neg

	switch {
	case tickCurrent < tickLower:
		amount0, err = Amount0DeltaU64(priceLower, priceUpper, delta.Abs, roundUp)
	case tickCurrent < tickUpper:
		active = true
		amount0, err = Amount0DeltaU64(sqrtPriceCurrent, priceUpper, delta.Abs, roundUp)
		if err == nil {
			amount1, err = Amount1DeltaU64(priceLower, sqrtPriceCurrent, delta.Abs, roundUp)
		}
	default:
		amount1, err = Amount1DeltaU64(priceLower, priceUpper, delta.Abs, roundUp)
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("amounts for delta: %w", err)
	}
	return amount0, amount1, active, nil
}
