// Package fixedpoint implements the Q64.64 arithmetic the pricing math is built on.
//
// Values are unsigned 128-bit integers (lukechampine.com/uint128). Every product is formed in a
// 256-bit intermediate (holiman/uint256), and MulDivWide keeps full 512-bit precision, so no
// multiplication truncates silently. Rounding direction is always an explicit argument.
package fixedpoint

import (
	"math/big"

	"github.com/holiman/uint256"
	"lukechampine.com/uint128"

	"clmmScope/internal/ammerr"
)

const (
	// Resolution is the number of fractional bits of a Q64.64 value.
	Resolution = 64
	// ResolutionX96 is the number of fractional bits of a Q64.96 sqrt price.
	ResolutionX96 = 96
)

// Q64 is 1.0 in Q64.64.
var Q64 = uint128.New(0, 1)

var one = uint256.NewInt(1)

// Wide widens a 128-bit value to 256 bits.
func Wide(x uint128.Uint128) *uint256.Int {
	return &uint256.Int{x.Lo, x.Hi, 0, 0}
}

// Narrow truncates a 256-bit value to 128 bits, failing if any high bit is set.
func Narrow(x *uint256.Int) (uint128.Uint128, error) {
	if x[2] != 0 || x[3] != 0 {
		return uint128.Zero, ammerr.ErrOverflow
	}
	return uint128.New(x[0], x[1]), nil
}

// MulDivWide computes x*y/denom with a 512-bit intermediate product.
func MulDivWide(x, y, denom *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if denom.IsZero() {
		return nil, ammerr.ErrDivideByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, denom)
	if overflow {
		return nil, ammerr.ErrOverflow
	}
	if roundUp && !new(uint256.Int).MulMod(x, y, denom).IsZero() {
		if _, carry := z.AddOverflow(z, one); carry {
			return nil, ammerr.ErrOverflow
		}
	}
	return z, nil
}

// MulDiv computes a*b/denom, rounding up when roundUp is set.
func MulDiv(a, b, denom uint128.Uint128, roundUp bool) (uint128.Uint128, error) {
	z, err := MulDivWide(Wide(a), Wide(b), Wide(denom), roundUp)
	if err != nil {
		return uint128.Zero, err
	}
	return Narrow(z)
}

// MulDivFloor is MulDiv rounding down.
func MulDivFloor(a, b, denom uint128.Uint128) (uint128.Uint128, error) {
	return MulDiv(a, b, denom, false)
}

// MulDivCeil is MulDiv rounding up.
func MulDivCeil(a, b, denom uint128.Uint128) (uint128.Uint128, error) {
	return MulDiv(a, b, denom, true)
}

// MulShift computes (a*b) >> shift. Use shift 64 for Q64.64 and 96 for Q64.96 operands.
func MulShift(a, b uint128.Uint128, shift uint, roundUp bool) (uint128.Uint128, error) {
	prod := new(uint256.Int).Mul(Wide(a), Wide(b))
	z := new(uint256.Int).Rsh(prod, shift)
	if roundUp {
		back := new(uint256.Int).Lsh(z, shift)
		if !back.Eq(prod) {
			z.AddUint64(z, 1)
		}
	}
	return Narrow(z)
}

// ShlDiv computes (a << shift) / denom.
func ShlDiv(a uint128.Uint128, shift uint, denom uint128.Uint128, roundUp bool) (uint128.Uint128, error) {
	if denom.IsZero() {
		return uint128.Zero, ammerr.ErrDivideByZero
	}
	if shift > 128 {
		return uint128.Zero, ammerr.ErrOverflow
	}
	num := new(uint256.Int).Lsh(Wide(a), shift)
	quo, rem := new(uint256.Int), new(uint256.Int)
	quo.DivMod(num, Wide(denom), rem)
	if roundUp && !rem.IsZero() {
		quo.AddUint64(quo, 1)
	}
	return Narrow(quo)
}

// DivRoundingUp returns ceil(a / b).
func DivRoundingUp(a, b uint128.Uint128) (uint128.Uint128, error) {
	if b.IsZero() {
		return uint128.Zero, ammerr.ErrDivideByZero
	}
	q, r := a.QuoRem(b)
	if !r.IsZero() {
		return q.Add64(1), nil
	}
	return q, nil
}

// ToUint64 converts x, failing when it does not fit.
func ToUint64(x uint128.Uint128) (uint64, error) {
	if x.Hi != 0 {
		return 0, ammerr.ErrOverflow
	}
	return x.Lo, nil
}

// SaturatingUint64 converts x, clamping to the largest uint64.
func SaturatingUint64(x uint128.Uint128) uint64 {
	if x.Hi != 0 {
		return ^uint64(0)
	}
	return x.Lo
}

// SaturatingSub returns a-b, or zero when b > a.
func SaturatingSub(a, b uint128.Uint128) uint128.Uint128 {
	if a.Cmp(b) <= 0 {
		return uint128.Zero
	}
	return a.Sub(b)
}

// CheckedAdd returns a+b or ErrOverflow.
func CheckedAdd(a, b uint128.Uint128) (uint128.Uint128, error) {
	sum := a.AddWrap(b)
	if sum.Cmp(a) < 0 {
		return uint128.Zero, ammerr.ErrOverflow
	}
	return sum, nil
}

// X64ToX96 converts a Q64.64 sqrt price to Q64.96.
func X64ToX96(x uint128.Uint128) *uint256.Int {
	return new(uint256.Int).Lsh(Wide(x), ResolutionX96-Resolution)
}

// X96ToX64 converts a Q64.96 sqrt price to Q64.64.
func X96ToX64(x *uint256.Int, roundUp bool) (uint128.Uint128, error) {
	const shift = ResolutionX96 - Resolution
	z := new(uint256.Int).Rsh(x, shift)
	if roundUp && !new(uint256.Int).Lsh(z, shift).Eq(x) {
		z.AddUint64(z, 1)
	}
	return Narrow(z)
}

// U128FromBig converts a non-negative big integer of at most 128 bits.
func U128FromBig(b *big.Int) (uint128.Uint128, error) {
	if b == nil {
		return uint128.Zero, nil
	}
	if b.Sign() < 0 || b.BitLen() > 128 {
		return uint128.Zero, ammerr.ErrOverflow
	}
	return uint128.FromBig(b), nil
}
