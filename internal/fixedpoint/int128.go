package fixedpoint

import (
	"fmt"
	"math/big"

	"lukechampine.com/uint128"

	"clmmScope/internal/ammerr"
)

// I128 is a signed 128-bit integer held as sign and magnitude. Its range is [-2^127, 2^127-1].
// The zero value is 0.
type I128 struct {
	Abs uint128.Uint128
	Neg bool
}

var (
	maxPositiveAbs = uint128.New(^uint64(0), ^uint64(0)>>1)
	maxNegativeAbs = uint128.New(0, uint64(1)<<63)
)

// NewI128 builds a signed value from a magnitude and sign.
func NewI128(abs uint128.Uint128, neg bool) (I128, error) {
	if abs.IsZero() {
		return I128{}, nil
	}
	limit := maxPositiveAbs
	if neg {
		limit = maxNegativeAbs
	}
	if abs.Cmp(limit) > 0 {
		return I128{}, ammerr.ErrOverflow
	}
	return I128{Abs: abs, Neg: neg}, nil
}

// I128FromInt64 converts an int64.
func I128FromInt64(v int64) I128 {
	if v < 0 {
		return I128{Abs: uint128.From64(uint64(-(v + 1)) + 1), Neg: true}
	}
	return I128{Abs: uint128.From64(uint64(v))}
}

// IsZero reports whether x == 0.
func (x I128) IsZero() bool {
	return x.Abs.IsZero()
}

// Sign returns -1, 0 or +1.
func (x I128) Sign() int {
	switch {
	case x.Abs.IsZero():
		return 0
	case x.Neg:
		return -1
	default:
		return 1
	}
}

// Negate returns -x. It fails only for -2^127.
func (x I128) Negate() (I128, error) {
	return NewI128(x.Abs, !x.Neg)
}

// Add returns x+y.
func (x I128) Add(y I128) (I128, error) {
	if x.IsZero() {
		return NewI128(y.Abs, y.Neg)
	}
	if y.IsZero() {
		return x, nil
	}
	if x.Neg == y.Neg {
		sum, err := CheckedAdd(x.Abs, y.Abs)
		if err != nil {
			return I128{}, err
		}
		return NewI128(sum, x.Neg)
	}
	if x.Abs.Cmp(y.Abs) >= 0 {
		return NewI128(x.Abs.Sub(y.Abs), x.Neg)
	}
	return NewI128(y.Abs.Sub(x.Abs), y.Neg)
}

// Sub returns x-y.
func (x I128) Sub(y I128) (I128, error) {
	return x.Add(I128{Abs: y.Abs, Neg: !y.Neg && !y.Abs.IsZero()})
}

// Big returns x as a big integer.
func (x I128) Big() *big.Int {
	b := x.Abs.Big()
	if x.Neg {
		b.Neg(b)
	}
	return b
}

func (x I128) String() string {
	return x.Big().String()
}

// I128FromBig converts a big integer within the i128 range.
func I128FromBig(b *big.Int) (I128, error) {
	if b == nil {
		return I128{}, nil
	}
	abs, err := U128FromBig(new(big.Int).Abs(b))
	if err != nil {
		return I128{}, err
	}
	return NewI128(abs, b.Sign() < 0)
}

// MarshalText encodes x in base 10.
func (x I128) MarshalText() ([]byte, error) {
	return []byte(x.String()), nil
}

// UnmarshalText decodes a base-10 value.
func (x *I128) UnmarshalText(text []byte) error {
	b, ok := new(big.Int).SetString(string(text), 10)
	if !ok {
		return fmt.Errorf("parse i128 %q", text)
	}
	v, err := I128FromBig(b)
	if err != nil {
		return err
	}
	*x = v
	return nil
}
