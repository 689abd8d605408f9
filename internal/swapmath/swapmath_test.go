package swapmath

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

func u(v uint64) uint128.Uint128 { return uint128.From64(v) }

// uStr parses a decimal u128 literal for expected values that exceed uint64.
func uStr(s string) uint128.Uint128 {
	v, err := uint128.FromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestNextSqrtPrice(t *testing.T) {
	liquidity := u(1_000_000)
	tests := []struct {
		name string
		fn   func() (uint128.Uint128, error)
		want uint128.Uint128
	}{
		{"token0 in", func() (uint128.Uint128, error) {
			return NextSqrtPriceFromInput(fixedpoint.Q64, liquidity, 997, true)
		}, u(18428370987834680440)},
		{"token1 in", func() (uint128.Uint128, error) {
			return NextSqrtPriceFromInput(fixedpoint.Q64, liquidity, 997, false)
		}, uStr("18465135477551040038")},
		{"token1 out", func() (uint128.Uint128, error) {
			return NextSqrtPriceFromOutput(fixedpoint.Q64, liquidity, 500, true)
		}, u(18437520701672696840)},
		{"token0 out", func() (uint128.Uint128, error) {
			return NextSqrtPriceFromOutput(fixedpoint.Q64, liquidity, 500, false)
		}, uStr("18455972059739421327")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextSqrtPriceEdges(t *testing.T) {
	got, err := NextSqrtPriceFromAmount0RoundingUp(fixedpoint.Q64, u(10), 0, true)
	require.NoError(t, err)
	assert.Equal(t, fixedpoint.Q64, got)

	// removing all reserves of either token is impossible
	_, err = NextSqrtPriceFromOutput(fixedpoint.Q64, u(10), 10, true)
	assert.ErrorIs(t, err, ammerr.ErrPriceOutOfRange)
	_, err = NextSqrtPriceFromOutput(fixedpoint.Q64, u(10), 10, false)
	assert.ErrorIs(t, err, ammerr.ErrPriceOutOfRange)

	_, err = NextSqrtPriceFromInput(fixedpoint.Q64, uint128.Zero, 10, true)
	assert.ErrorIs(t, err, ammerr.ErrDivideByZero)
}

func TestComputeSwapStep(t *testing.T) {
	liquidity := u(1_000_000)
	tests := []struct {
		name       string
		target     int32
		remaining  uint64
		feeRate    uint32
		exactInput bool
		want       StepResult
		reached    bool
	}{
		{
			name: "exact in stops short", target: -600, remaining: 1000, feeRate: 3000, exactInput: true,
			want: StepResult{SqrtPriceNextX64: u(18428370987834680440), AmountIn: 997, AmountOut: 996, FeeAmount: 3},
		},
		{
			name: "exact in one for zero", target: 600, remaining: 1000, feeRate: 3000, exactInput: true,
			want: StepResult{SqrtPriceNextX64: uStr("18465135477551040038"), AmountIn: 997, AmountOut: 996, FeeAmount: 3},
		},
		{
			name: "exact out stops short", target: -600, remaining: 500, feeRate: 3000, exactInput: false,
			want: StepResult{SqrtPriceNextX64: u(18437520701672696840), AmountIn: 501, AmountOut: 500, FeeAmount: 2},
		},
		{
			name: "exact in reaches target", target: -600, remaining: 1_000_000_000, feeRate: 3000, exactInput: true,
			want: StepResult{AmountIn: 30453, AmountOut: 29553, FeeAmount: 92}, reached: true,
		},
		{
			name: "exact out reaches target", target: -600, remaining: 1_000_000_000, feeRate: 3000, exactInput: false,
			want: StepResult{AmountIn: 30453, AmountOut: 29553, FeeAmount: 92}, reached: true,
		},
		{
			name: "zero fee", target: 600, remaining: 1_000_000_000, feeRate: 0, exactInput: true,
			want: StepResult{AmountIn: 30453, AmountOut: 29553}, reached: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := price(t, tt.target)
			want := tt.want
			if tt.reached {
				want.SqrtPriceNextX64 = target
			}
			got, err := ComputeSwapStep(fixedpoint.Q64, target, liquidity, tt.remaining, tt.feeRate, tt.exactInput)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestComputeSwapStepZeroLiquidity(t *testing.T) {
	target := price(t, -600)
	got, err := ComputeSwapStep(fixedpoint.Q64, target, uint128.Zero, 1000, 3000, true)
	require.NoError(t, err)
	assert.Equal(t, StepResult{SqrtPriceNextX64: target}, got)
}

func TestComputeSwapStepRejectsFullFee(t *testing.T) {
	_, err := ComputeSwapStep(fixedpoint.Q64, price(t, -600), u(1), 1000, FeeRateDenominator, true)
	assert.ErrorIs(t, err, ammerr.ErrOverflow)
}

func TestComputeSwapStepBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 500; i++ {
		current := price(t, int32(rng.Intn(20000)-10000))
		target := price(t, int32(rng.Intn(20000)-10000))
		liquidity := u(uint64(rng.Int63n(1<<40) + 1))
		remaining := uint64(rng.Int63n(1<<32) + 1)
		feeRate := uint32(rng.Intn(100_000))
		exactInput := rng.Intn(2) == 0

		got, err := ComputeSwapStep(current, target, liquidity, remaining, feeRate, exactInput)
		require.NoError(t, err)

		zeroForOne := current.Cmp(target) >= 0
		if zeroForOne {
			assert.True(t, got.SqrtPriceNextX64.Cmp(target) >= 0 && got.SqrtPriceNextX64.Cmp(current) <= 0)
		} else {
			assert.True(t, got.SqrtPriceNextX64.Cmp(target) <= 0 && got.SqrtPriceNextX64.Cmp(current) >= 0)
		}
		if exactInput {
			assert.LessOrEqual(t, got.AmountIn+got.FeeAmount, remaining)
		} else {
			assert.LessOrEqual(t, got.AmountOut, remaining)
		}
	}
}
