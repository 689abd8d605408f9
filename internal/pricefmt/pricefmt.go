// Package pricefmt converts between Q64.64 square-root prices and human-readable decimal prices
// and token amounts.
package pricefmt

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"lukechampine.com/uint128"

	"clmmScope/internal/ammerr"
	"clmmScope/internal/fixedpoint"
	"clmmScope/internal/tickmath"
)

// Precision is the number of fractional digits kept by divisions.
const Precision = 40

var q64 = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), fixedpoint.Resolution), 0)

func decimalsFactor(decimals0, decimals1 uint8) decimal.Decimal {
	return decimal.New(1, int32(decimals0)-int32(decimals1))
}

func sqrt(x decimal.Decimal) (decimal.Decimal, error) {
	root := new(big.Float).SetPrec(256).Sqrt(x.BigFloat().SetPrec(256))
	return decimal.NewFromString(root.Text('f', Precision))
}

// PriceFromSqrtPriceX64 returns the price of one whole token0 in whole token1.
func PriceFromSqrtPriceX64(sqrtPriceX64 uint128.Uint128, decimals0, decimals1 uint8) decimal.Decimal {
	root := decimal.NewFromBigInt(sqrtPriceX64.Big(), 0).DivRound(q64, Precision)
	return root.Mul(root).Mul(decimalsFactor(decimals0, decimals1)).Round(Precision)
}

// SqrtPriceX64FromPrice inverts PriceFromSqrtPriceX64, rounding down.
func SqrtPriceX64FromPrice(price decimal.Decimal, decimals0, decimals1 uint8) (uint128.Uint128, error) {
	if price.Sign() <= 0 {
		return uint128.Zero, fmt.Errorf("price %s must be positive", price)
	}
	raw := price.DivRound(decimalsFactor(decimals0, decimals1), Precision)
	root, err := sqrt(raw)
	if err != nil {
		return uint128.Zero, fmt.Errorf("sqrt price: %w", err)
	}
	v, err := fixedpoint.U128FromBig(root.Mul(q64).Floor().BigInt())
	if err != nil {
		return uint128.Zero, fmt.Errorf("price %s: %w", price, ammerr.ErrPriceOutOfRange)
	}
	if v.Cmp(tickmath.MinSqrtPriceX64) < 0 || v.Cmp(tickmath.MaxSqrtPriceX64) > 0 {
		return uint128.Zero, fmt.Errorf("price %s: %w", price, ammerr.ErrPriceOutOfRange)
	}
	return v, nil
}

// PriceToTick returns the greatest tick whose price does not exceed price.
func PriceToTick(price decimal.Decimal, decimals0, decimals1 uint8) (int32, error) {
	sqrtPrice, err := SqrtPriceX64FromPrice(price, decimals0, decimals1)
	if err != nil {
		return 0, err
	}
	return tickmath.TickAtSqrtPrice(sqrtPrice)
}

// TickToPrice returns the human price at tick.
func TickToPrice(tick int32, decimals0, decimals1 uint8) (decimal.Decimal, error) {
	sqrtPrice, err := tickmath.SqrtPriceAtTick(tick)
	if err != nil {
		return decimal.Zero, err
	}
	return PriceFromSqrtPriceX64(sqrtPrice, decimals0, decimals1), nil
}

// FormatAmount renders a raw token amount with the token's decimals.
func FormatAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).StringFixed(int32(decimals))
}

// ParseAmount converts a human amount such as "1.5" into raw units.
func ParseAmount(text string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(text)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", text, err)
	}
	raw := d.Shift(int32(decimals))
	if !raw.IsInteger() {
		return 0, fmt.Errorf("amount %q has more than %d decimals", text, decimals)
	}
	if raw.Sign() < 0 {
		return 0, fmt.Errorf("amount %q is negative", text)
	}
	b := raw.BigInt()
	if !b.IsUint64() {
		return 0, fmt.Errorf("amount %q: %w", text, ammerr.ErrOverflow)
	}
	return b.Uint64(), nil
}
