package pricefmt

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"clmmScope/internal/ammerr"
	"clmmScope/internal/fixedpoint"
)

func TestPriceFromSqrtPriceX64(t *testing.T) {
	assert.True(t, PriceFromSqrtPriceX64(fixedpoint.Q64, 0, 0).Equal(decimal.NewFromInt(1)))
	assert.True(t, PriceFromSqrtPriceX64(fixedpoint.Q64, 9, 6).Equal(decimal.NewFromInt(1000)))
	assert.True(t, PriceFromSqrtPriceX64(fixedpoint.Q64, 6, 9).Equal(decimal.RequireFromString("0.001")))

	double := fixedpoint.Q64.Mul64(2)
	assert.True(t, PriceFromSqrtPriceX64(double, 0, 0).Equal(decimal.NewFromInt(4)))
}

func TestSqrtPriceX64FromPrice(t *testing.T) {
	got, err := SqrtPriceX64FromPrice(decimal.NewFromInt(1), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, fixedpoint.Q64, got)

	got, err = SqrtPriceX64FromPrice(decimal.NewFromInt(4000), 9, 6)
	require.NoError(t, err)
	assert.Equal(t, fixedpoint.Q64.Mul64(2), got)

	_, err = SqrtPriceX64FromPrice(decimal.Zero, 0, 0)
	assert.Error(t, err)
	_, err = SqrtPriceX64FromPrice(decimal.RequireFromString("1e80"), 0, 0)
	assert.ErrorIs(t, err, ammerr.ErrPriceOutOfRange)
}

func TestPriceToTick(t *testing.T) {
	cases := []struct {
		price string
		tick  int32
	}{
		{"1", 0},
		{"1.0100501", 100},
		{"1.01004", 99},
		{"0.5", -6932},
		{"4", 13863},
	}
	for _, tc := range cases {
		got, err := PriceToTick(decimal.RequireFromString(tc.price), 0, 0)
		require.NoError(t, err, tc.price)
		assert.Equal(t, tc.tick, got, tc.price)
	}
}

func TestTickToPrice(t *testing.T) {
	price, err := TickToPrice(100, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0100496620928733, price.InexactFloat64(), 1e-12)

	price, err = TickToPrice(-6932, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.4999909192072986, price.InexactFloat64(), 1e-12)

	_, err = TickToPrice(500000, 0, 0)
	assert.ErrorIs(t, err, ammerr.ErrTickOutOfRange)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1.234567", FormatAmount(big.NewInt(1234567), 6))
	assert.Equal(t, "-0.05", FormatAmount(big.NewInt(-5), 2))
	assert.Equal(t, "42", FormatAmount(big.NewInt(42), 0))
	assert.Equal(t, "0", FormatAmount(nil, 6))
	assert.Equal(t, "340282366920938463463.374607431768211455", FormatAmount(uint128.Max.Big(), 18))
}

func TestParseAmount(t *testing.T) {
	got, err := ParseAmount("1.5", 6)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000), got)

	got, err = ParseAmount("42", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got)

	_, err = ParseAmount("0.0000001", 6)
	assert.Error(t, err)
	_, err = ParseAmount("-1", 0)
	assert.Error(t, err)
	_, err = ParseAmount("18446744073709551616", 0)
	assert.ErrorIs(t, err, ammerr.ErrOverflow)
	_, err = ParseAmount("abc", 0)
	assert.Error(t, err)
}
