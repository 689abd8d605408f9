package swapmath

import (
	"fmt"

	gmath "github.com/ethereum/go-ethereum/common/math"
	"lukechampine.com/uint128"

	"clmmScope/internal/ammerr"
	"clmmScope/internal/fixedpoint"
	"clmmScope/internal/liquiditymath"
)

// FeeRateDenominator is the unit of every fee rate: rates are in hundredths of a basis point.
const FeeRateDenominator = 1_000_000

// StepResult is the outcome of one swap step.
type StepResult struct {
	SqrtPriceNextX64 uint128.Uint128
	AmountIn         uint64
	AmountOut        uint64
	FeeAmount        uint64
}

// ComputeSwapStep swaps up to amountRemaining between sqrtPriceCurrent and sqrtPriceTarget at
// constant liquidity. The direction follows from the two prices. For exact input amountRemaining
// covers input plus fee; for exact output it bounds the output.
func ComputeSwapStep(
	sqrtPriceCurrent, sqrtPriceTarget, liquidity uint128.Uint128,
	amountRemaining uint64,
	feeRate uint32,
	exactInput bool,
) (StepResult, error) {
	if feeRate >= FeeRateDenominator {
		return StepResult{}, fmt.Errorf("fee rate %d: %w", feeRate, ammerr.ErrOverflow)
	}
	zeroForOne := sqrtPriceCurrent.Cmp(sqrtPriceTarget) >= 0
	if liquidity.IsZero() {
		return StepResult{SqrtPriceNextX64: sqrtPriceTarget}, nil
	}

	var (
		res             StepResult
		toTarget        uint128.Uint128
		targetReachable bool
		err             error
	)
	if exactInput {
		var lessFee uint128.Uint128
		lessFee, err = fixedpoint.MulDivFloor(uint128.From64(amountRemaining), uint128.From64(uint64(FeeRateDenominator-feeRate)), uint128.From64(FeeRateDenominator))
		if err != nil {
			return StepResult{}, err
		}
		if zeroForOne {
			toTarget, err = liquiditymath.Amount0Delta(sqrtPriceTarget, sqrtPriceCurrent, liquidity, true)
		} else {
			toTarget, err = liquiditymath.Amount1Delta(sqrtPriceCurrent, sqrtPriceTarget, liquidity, true)
		}
		// an amount beyond u128 means the target is out of reach
		targetReachable = err == nil
		if targetReachable && lessFee.Cmp(toTarget) >= 0 {
			res.SqrtPriceNextX64 = sqrtPriceTarget
		} else {
			res.SqrtPriceNextX64, err = NextSqrtPriceFromInput(sqrtPriceCurrent, liquidity, lessFee.Lo, zeroForOne)
			if err != nil {
				return StepResult{}, fmt.Errorf("price from input: %w", err)
			}
		}
	} else {
		if zeroForOne {
			toTarget, err = liquiditymath.Amount1Delta(sqrtPriceTarget, sqrtPriceCurrent, liquidity, false)
		} else {
			toTarget, err = liquiditymath.Amount0Delta(sqrtPriceCurrent, sqrtPriceTarget, liquidity, false)
		}
		targetReachable = err == nil
		if targetReachable && uint128.From64(amountRemaining).Cmp(toTarget) >= 0 {
			res.SqrtPriceNextX64 = sqrtPriceTarget
		} else {
			res.SqrtPriceNextX64, err = NextSqrtPriceFromOutput(sqrtPriceCurrent, liquidity, amountRemaining, zeroForOne)
			if err != nil {
				return StepResult{}, fmt.Errorf("price from output: %w", err)
			}
		}
	}

	reachedTarget := res.SqrtPriceNextX64.Equals(sqrtPriceTarget)
	var amountIn, amountOut uint128.Uint128
	if zeroForOne {
		if reachedTarget && exactInput {
			amountIn = toTarget
		} else {
			amountIn, err = liquiditymath.Amount0Delta(res.SqrtPriceNextX64, sqrtPriceCurrent, liquidity, true)
		}
		if err == nil {
			if reachedTarget && !exactInput {
				amountOut = toTarget
			} else {
				amountOut, err = liquiditymath.Amount1Delta(res.SqrtPriceNextX64, sqrtPriceCurrent, liquidity, false)
			}
		}
	} else {
		if reachedTarget && exactInput {
			amountIn = toTarget
		} else {
			amountIn, err = liquiditymath.Amount1Delta(sqrtPriceCurrent, res.SqrtPriceNextX64, liquidity, true)
		}
		if err == nil {
			if reachedTarget && !exactInput {
				amountOut = toTarget
			} else {
				amountOut, err = liquiditymath.Amount0Delta(sqrtPriceCurrent, res.SqrtPriceNextX64, liquidity, false)
			}
		}
	}
	if err != nil {
		return StepResult{}, fmt.Errorf("step amounts: %w", err)
	}

	if res.AmountIn, err = fixedpoint.ToUint64(amountIn); err != nil {
		return StepResult{}, fmt.Errorf("step amount in: %w", err)
	}
	res.AmountOut = fixedpoint.SaturatingUint64(amountOut)
	if !exactInput && res.AmountOut > amountRemaining {
		res.AmountOut = amountRemaining
	}

	if exactInput && !reachedTarget {
		// price stopped short: whatever input is left over is fee
		fee, overflow := gmath.SafeSub(amountRemaining, res.AmountIn)
		if overflow {
			return StepResult{}, fmt.Errorf("step fee: %w", ammerr.ErrOverflow)
		}
		res.FeeAmount = fee
	} else {
		fee, err := fixedpoint.MulDivCeil(uint128.From64(res.AmountIn), uint128.From64(uint64(feeRate)), uint128.From64(uint64(FeeRateDenominator-feeRate)))
		if err != nil {
			return StepResult{}, err
		}
		if res.FeeAmount, err = fixedpoint.ToUint64(fee); err != nil {
			return StepResult{}, fmt.Errorf("step fee: %w", err)
		}
	}
	return res, nil
}
