// Package swapmath computes single swap steps within a range of constant liquidity.
package swapmath

import (
	"github.com/holiman/uint256"
	"lukechampine.com/uint128"

	"clmmScope/internal/ammerr"
	"clmmScope/internal/fixedpoint"
)

// NextSqrtPriceFromAmount0RoundingUp moves the price by amount of token0 added to (add) or removed
// from the pool. The result rounds up so the pool never gives away more than it should.
func NextSqrtPriceFromAmount0RoundingUp(sqrtPriceX64, liquidity uint128.Uint128, amount uint64, add bool) (uint128.Uint128, error) {
	if amount == 0 {
		return sqrtPriceX64, nil
	}
	numerator := new(uint256.Int).Lsh(fixedpoint.Wide(liquidity), fixedpoint.Resolution)
	product := new(uint256.Int).Mul(uint256.NewInt(amount), fixedpoint.Wide(sqrtPriceX64))

	denominator := new(uint256.Int)
	if add {
		denominator.Add(numerator, product)
	} else {
		if numerator.Cmp(product) <= 0 {
			return uint128.Zero, ammerr.ErrPriceOutOfRange
		}
		denominator.Sub(numerator, product)
	}
	z, err := fixedpoint.MulDivWide(numerator, fixedpoint.Wide(sqrtPriceX64), denominator, true)
	if err != nil {
		return uint128.Zero, err
	}
	return fixedpoint.Narrow(z)
}

// NextSqrtPriceFromAmount1RoundingDown moves the price by amount of token1 added to (add) or
// removed from the pool, rounding down.
func NextSqrtPriceFromAmount1RoundingDown(sqrtPriceX64, liquidity uint128.Uint128, amount uint64, add bool) (uint128.Uint128, error) {
	if add {
		quotient, err := fixedpoint.ShlDiv(uint128.From64(amount), fixedpoint.Resolution, liquidity, false)
		if err != nil {
			return uint128.Zero, err
		}
		return fixedpoint.CheckedAdd(sqrtPriceX64, quotient)
	}
	quotient, err := fixedpoint.ShlDiv(uint128.From64(amount), fixedpoint.Resolution, liquidity, true)
	if err != nil {
		return uint128.Zero, err
	}
	if sqrtPriceX64.Cmp(quotient) <= 0 {
		return uint128.Zero, ammerr.ErrPriceOutOfRange
	}
	return sqrtPriceX64.Sub(quotient), nil
}

// NextSqrtPriceFromInput returns the price after amountIn enters the pool.
func NextSqrtPriceFromInput(sqrtPriceX64, liquidity uint128.Uint128, amountIn uint64, zeroForOne bool) (uint128.Uint128, error) {
	if sqrtPriceX64.IsZero() || liquidity.IsZero() {
		return uint128.Zero, ammerr.ErrDivideByZero
	}
	if zeroForOne {
		return NextSqrtPriceFromAmount0RoundingUp(sqrtPriceX64, liquidity, amountIn, true)
	}
	return NextSqrtPriceFromAmount1RoundingDown(sqrtPriceX64, liquidity, amountIn, true)
}

// NextSqrtPriceFromOutput returns the price after amountOut leaves the pool.
func NextSqrtPriceFromOutput(sqrtPriceX64, liquidity uint128.Uint128, amountOut uint64, zeroForOne bool) (uint128.Uint128, error) {
	if sqrtPriceX64.IsZero() || liquidity.IsZero() {
		return uint128.Zero, ammerr.ErrDivideByZero
	}
	if zeroForOne {
		return NextSqrtPriceFromAmount1RoundingDown(sqrtPriceX64, liquidity, amountOut, false)
	}
	return NextSqrtPriceFromAmount0RoundingUp(sqrtPriceX64, liquidity, amountOut, false)
}
