package liquiditymath

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"clmmScope/internal/ammerr"
	"clmmScope/internal/fixedpoint"
	"clmmScope/internal/tickmath"
)

func price(t *testing.T, tick int32) uint128.Uint128 {
	t.Helper()
	p, err := tickmath.SqrtPriceAtTick(tick)
	require.NoError(t, err)
	return p
}

func TestAddDelta(t *testing.T) {
	got, err := AddDelta(uint128.From64(10), fixedpoint.I128FromInt64(-4))
	require.NoError(t, err)
	assert.Equal(t, uint128.From64(6), got)

	_, err = AddDelta(uint128.From64(3), fixedpoint.I128FromInt64(-4))
	assert.ErrorIs(t, err, ammerr.ErrLiquidityUnderflow)

	_, err = AddDelta(uint128.Max, fixedpoint.I128FromInt64(1))
	assert.ErrorIs(t, err, ammerr.ErrLiquidityOverflow)
}

func TestAddLiquidityDeltaCap(t *testing.T) {
	maxLiquidity := uint128.From64(100)
	_, err := AddLiquidityDelta(uint128.From64(90), fixedpoint.I128FromInt64(20), maxLiquidity)
	assert.ErrorIs(t, err, ammerr.ErrLiquidityOverflow)

	got, err := AddLiquidityDelta(uint128.From64(90), fixedpoint.I128FromInt64(10), maxLiquidity)
	require.NoError(t, err)
	assert.Equal(t, maxLiquidity, got)
}

func TestMaxLiquidityPerTick(t *testing.T) {
	wide := MaxLiquidityPerTick(60)
	narrow := MaxLiquidityPerTick(1)
	assert.True(t, wide.Cmp(narrow) > 0)
	// 443636/60 floors to 7393 usable ticks per side.
	assert.Equal(t, uint128.Max.Div64(2*7393+1), wide)
}

func TestLiquidityAtLowerIgnoresAmount1(t *testing.T) {
	lower, upper := price(t, -600), price(t, 600)
	base, err := LiquidityFromAmounts(lower, lower, upper, 1_000_000, 0)
	require.NoError(t, err)
	for _, amount1 := range []uint64{1, 1_000, 1 << 40} {
		got, err := LiquidityFromAmounts(lower, lower, upper, 1_000_000, amount1)
		require.NoError(t, err)
		assert.Equal(t, base, got, "amount1 %d", amount1)
	}
	assert.False(t, base.IsZero())
}

func TestLiquidityAboveRangeUsesAmount1(t *testing.T) {
	lower, upper := price(t, -600), price(t, 600)
	above := price(t, 1200)
	got, err := LiquidityFromAmounts(above, lower, upper, 5, 1_000_000)
	require.NoError(t, err)
	want, err := LiquidityFromAmount1(lower, upper, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestAmountsAtUnitPrice(t *testing.T) {
	current := fixedpoint.Q64
	lower, upper := price(t, -600), price(t, 600)
	liquidity := uint128.From64(1_000_000)

	up0, up1, err := AmountsFromLiquidity(current, lower, upper, liquidity, true)
	require.NoError(t, err)
	down0, down1, err := AmountsFromLiquidity(current, lower, upper, liquidity, false)
	require.NoError(t, err)

	assert.True(t, up0 >= down0 && up0-down0 <= 1)
	assert.True(t, up1 >= down1 && up1-down1 <= 1)
	// sqrt(1.0001^600) is about 1.0304, so each side holds about 2.9% of liquidity.
	assert.InDelta(t, 29_554, float64(down0), 50)
	assert.InDelta(t, 29_554, float64(down1), 50)
}

func TestLiquidityAmountsRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 500; i++ {
		lowerTick := int32(rng.Intn(200_000)) - 100_000
		upperTick := lowerTick + 1 + int32(rng.Intn(20_000))
		currentTick := lowerTick + int32(rng.Intn(int(upperTick-lowerTick)))
		a, b, current := price(t, lowerTick), price(t, upperTick), price(t, currentTick)

		amount0 := uint64(rng.Int63n(1 << 50))
		amount1 := uint64(rng.Int63n(1 << 50))

		liquidity, err := LiquidityFromAmounts(current, a, b, amount0, amount1)
		require.NoError(t, err)
		got0, got1, err := AmountsFromLiquidity(current, a, b, liquidity, false)
		require.NoError(t, err)
		if got0 > amount0 || got1 > amount1 {
			t.Fatalf("round trip overstated: (%d,%d) > (%d,%d) range [%d,%d) at %d", got0, got1, amount0, amount1, lowerTick, upperTick, currentTick)
		}
	}
}

func TestAmountsForDelta(t *testing.T) {
	current := fixedpoint.Q64
	deposit := fixedpoint.I128FromInt64(1_000_000)
	withdraw := fixedpoint.I128FromInt64(-1_000_000)

	in0, in1, active, err := AmountsForDelta(0, current, -600, 600, deposit)
	require.NoError(t, err)
	assert.True(t, active)
	out0, out1, _, err := AmountsForDelta(0, current, -600, 600, withdraw)
	require.NoError(t, err)
	assert.True(t, in0 >= out0 && in1 >= out1)

	below0, below1, active, err := AmountsForDelta(0, current, 600, 1200, deposit)
	require.NoError(t, err)
	assert.False(t, active)
	assert.NotZero(t, below0)
	assert.Zero(t, below1)

	above0, above1, active, err := AmountsForDelta(0, current, -1200, -600, deposit)
	require.NoError(t, err)
	assert.False(t, active)
	assert.Zero(t, above0)
	assert.NotZero(t, above1)
}

func TestAmountOverflow(t *testing.T) {
	_, err := Amount1DeltaU64(tickmath.MinSqrtPriceX64, tickmath.MaxSqrtPriceX64, uint128.Max, false)
	assert.ErrorIs(t, err, ammerr.ErrOverflow)
}
