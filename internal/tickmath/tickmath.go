// Package tickmath converts between tick indices and Q64.64 square-root prices.
//
// The price of tick i is 1.0001^i, so the square-root price is 1.0001^(i/2) scaled by 2^64.
package tickmath

import (
	"fmt"

	"lukechampine.com/uint128"

	"clmmScope/internal/ammerr"
)

const (
	// MinTick is the lowest tick whose price fits the Q64.64 domain.
	MinTick int32 = -443636
	// MaxTick is the highest tick.
	MaxTick int32 = -MinTick
)

var (
	// MinSqrtPriceX64 equals SqrtPriceAtTick(MinTick).
	MinSqrtPriceX64 uint128.Uint128
	// MaxSqrtPriceX64 equals SqrtPriceAtTick(MaxTick).
	MaxSqrtPriceX64 uint128.Uint128
)

// ratios[i] is 2^64 / sqrt(1.0001)^(2^i) for i >= 1; bit 0 is handled by the seed value.
var ratios = [...]struct {
	bit uint32
	mul uint64
}{
	{0x2, 18444899583751176192},
	{0x4, 18443055278223355904},
	{0x8, 18439367220385607680},
	{0x10, 18431993317065453568},
	{0x20, 18417254355718170624},
	{0x40, 18387811781193609216},
	{0x80, 18329067761203558400},
	{0x100, 18212142134806163456},
	{0x200, 17980523815641700352},
	{0x400, 17526086738831433728},
	{0x800, 16651378430235570176},
	{0x1000, 15030750278694412288},
	{0x2000, 12247334978884435968},
	{0x4000, 8131365268886854656},
	{0x8000, 3584323654725218816},
	{0x10000, 696457651848324352},
	{0x20000, 26294789957507116},
	{0x40000, 37481735321082},
}

func init() {
	MinSqrtPriceX64 = sqrtPriceAtTick(MinTick)
	MaxSqrtPriceX64 = sqrtPriceAtTick(MaxTick)
}

// SqrtPriceAtTick returns sqrt(1.0001^tick) as a Q64.64 value.
func SqrtPriceAtTick(tick int32) (uint128.Uint128, error) {
	if tick < MinTick || tick > MaxTick {
		return uint128.Zero, fmt.Errorf("tick %d: %w", tick, ammerr.ErrTickOutOfRange)
	}
	return sqrtPriceAtTick(tick), nil
}

func sqrtPriceAtTick(tick int32) uint128.Uint128 {
	absTick := uint32(tick)
	if tick < 0 {
		absTick = uint32(-tick)
	}

	// ratio never exceeds 2^64 and each multiplier is below 2^64, so products fit 128 bits.
	ratio := uint128.New(0, 1)
	if absTick&0x1 != 0 {
		ratio = uint128.From64(18445821805675395072)
	}
	for _, r := range ratios {
		if absTick&r.bit != 0 {
			ratio = ratio.Mul64(r.mul).Rsh(64)
		}
	}

	if tick > 0 {
		ratio = uint128.Max.Div(ratio)
	}
	return ratio
}

// TickAtSqrtPrice returns the greatest tick whose sqrt price is <= sqrtPriceX64.
func TickAtSqrtPrice(sqrtPriceX64 uint128.Uint128) (int32, error) {
	if sqrtPriceX64.Cmp(MinSqrtPriceX64) < 0 || sqrtPriceX64.Cmp(MaxSqrtPriceX64) > 0 {
		return 0, fmt.Errorf("sqrt price %s: %w", sqrtPriceX64, ammerr.ErrPriceOutOfRange)
	}

	lo, hi := MinTick, MaxTick
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if sqrtPriceAtTick(mid).Cmp(sqrtPriceX64) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, nil
}

// CheckTickBoundary validates that tick is in range and a multiple of tickSpacing.
func CheckTickBoundary(tick int32, tickSpacing uint16) error {
	if tickSpacing == 0 {
		return ammerr.ErrInvalidTickSpacing
	}
	if tick < MinTick || tick > MaxTick {
		return fmt.Errorf("tick %d: %w", tick, ammerr.ErrTickOutOfRange)
	}
	if tick%int32(tickSpacing) != 0 {
		return fmt.Errorf("tick %d not a multiple of spacing %d: %w", tick, tickSpacing, ammerr.ErrInvalidTickSpacing)
	}
	return nil
}

// CheckTickRange validates a position range.
func CheckTickRange(tickLower, tickUpper int32, tickSpacing uint16) error {
	if tickLower >= tickUpper {
		return fmt.Errorf("lower %d upper %d: %w", tickLower, tickUpper, ammerr.ErrInvalidRange)
	}
	if err := CheckTickBoundary(tickLower, tickSpacing); err != nil {
		return err
	}
	return CheckTickBoundary(tickUpper, tickSpacing)
}

// TickWithSpacing floors tick to a multiple of tickSpacing.
func TickWithSpacing(tick int32, tickSpacing int32) int32 {
	compressed := tick / tickSpacing
	if tick < 0 && tick%tickSpacing != 0 {
		compressed--
	}
	return compressed * tickSpacing
}
