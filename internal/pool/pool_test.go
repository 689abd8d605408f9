package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"clmmScope/internal/accrual"
	"clmmScope/internal/ammerr"
	"clmmScope/internal/fixedpoint"
	"clmmScope/internal/tickarray"
	"clmmScope/internal/tickmath"
)

const unlimited = ^uint64(0)

var testConfig = AmmConfig{TickSpacing: 60, TradeFeeRate: 3000}

// emptyVaults pays out no rewards.
var emptyVaults [accrual.RewardNum]uint64

func u(v uint64) uint128.Uint128 { return uint128.From64(v) }

func openPool(t *testing.T, cfg AmmConfig) *Pool {
	t.Helper()
	p, err := New(cfg, fixedpoint.Q64, 0)
	require.NoError(t, err)
	return p
}

func deposit(t *testing.T, p *Pool, lower, upper int32, liquidity uint64) (*Pool, Position) {
	t.Helper()
	change, err := p.IncreaseLiquidity(Position{TickLower: lower, TickUpper: upper}, u(liquidity), unlimited, unlimited, 0)
	require.NoError(t, err)
	require.NoError(t, change.Pool.Validate())
	return change.Pool, change.Position
}

func sellToken0(amount uint64, ts uint64) SwapParams {
	return SwapParams{AmountSpecified: amount, ZeroForOne: true, ExactInput: true, BlockTimestamp: ts}
}

func TestNewPool(t *testing.T) {
	p := openPool(t, testConfig)
	assert.Equal(t, int32(0), p.State.TickCurrent)
	assert.True(t, p.Oracle.Initialized)
	require.NoError(t, p.Validate())

	_, err := New(AmmConfig{TickSpacing: 0}, fixedpoint.Q64, 0)
	assert.ErrorIs(t, err, ammerr.ErrInvalidTickSpacing)
	_, err = New(testConfig, u(1), 0)
	assert.ErrorIs(t, err, ammerr.ErrPriceOutOfRange)
}

func TestAmmConfigValidate(t *testing.T) {
	assert.NoError(t, testConfig.Validate())
	assert.Error(t, AmmConfig{TickSpacing: 1, TradeFeeRate: 1_000_000}.Validate())
	assert.Error(t, AmmConfig{TickSpacing: 1, ProtocolFeeRate: 600_000, FundFeeRate: 500_000}.Validate())
}

func TestSwapSingleRangeScenario(t *testing.T) {
	p, _ := deposit(t, openPool(t, testConfig), -600, 600, 1_000_000)

	res, err := NewEngine(EngineConfig{}, nil).Swap(p, sellToken0(1000, 10))
	require.NoError(t, err)

	assert.Equal(t, SwapExhausted, res.Status)
	assert.Equal(t, uint64(1000), res.Amount0)
	assert.Equal(t, uint64(996), res.Amount1)
	assert.Equal(t, uint64(3), res.FeeAmount)
	require.Len(t, res.Steps, 1)
	assert.Empty(t, res.Crossings)

	wantGrowth, err := fixedpoint.ShlDiv(u(3), 64, u(1_000_000), false)
	require.NoError(t, err)
	got := res.Pool.State
	assert.Equal(t, wantGrowth, got.FeeGrowthGlobal0X64)
	assert.True(t, got.FeeGrowthGlobal1X64.IsZero())

	wantTick, err := tickmath.TickAtSqrtPrice(got.SqrtPriceX64)
	require.NoError(t, err)
	assert.Equal(t, wantTick, got.TickCurrent)
	assert.Equal(t, int32(-20), got.TickCurrent)
	assert.Equal(t, u(1_000_000), got.Liquidity)
	assert.Equal(t, uint64(3), got.TotalFeesToken0)
	assert.Equal(t, u(1000), got.SwapInAmountToken0)
	assert.Equal(t, u(996), got.SwapOutAmountToken1)
	require.NoError(t, res.Pool.Validate())

	// the input pool is untouched
	assert.Equal(t, fixedpoint.Q64, p.State.SqrtPriceX64)
	assert.True(t, p.State.FeeGrowthGlobal0X64.IsZero())
}

func TestSwapExactOutput(t *testing.T) {
	p, _ := deposit(t, openPool(t, testConfig), -600, 600, 1_000_000)
	res, err := NewEngine(EngineConfig{}, nil).Swap(p, SwapParams{AmountSpecified: 500, ZeroForOne: true, BlockTimestamp: 1})
	require.NoError(t, err)
	assert.Equal(t, SwapExhausted, res.Status)
	assert.Equal(t, uint64(503), res.Amount0)
	assert.Equal(t, uint64(500), res.Amount1)
	assert.Equal(t, uint64(503), res.AmountIn(true))
	assert.Equal(t, uint64(500), res.AmountOut(true))
}

func TestSwapCrossesTick(t *testing.T) {
	p, _ := deposit(t, openPool(t, testConfig), -600, 600, 1_000_000)
	p, _ = deposit(t, p, -120, 120, 500_000)
	assert.Equal(t, u(1_500_000), p.State.Liquidity)

	res, err := NewEngine(EngineConfig{}, nil).Swap(p, sellToken0(10_000, 5))
	require.NoError(t, err)

	require.Len(t, res.Crossings, 1)
	assert.Equal(t, int32(-120), res.Crossings[0].Tick)
	assert.False(t, res.Crossings[0].FeeGrowthOutside0X64.IsZero())
	assert.Len(t, res.Steps, 2)
	assert.Equal(t, uint64(10_000), res.Amount0)
	assert.Equal(t, uint64(8972+929), res.Amount1)
	assert.Equal(t, uint64(28+3), res.Steps[0].FeeAmount+res.Steps[1].FeeAmount)
	assert.Equal(t, u(1_000_000), res.Pool.State.Liquidity)
	assert.Equal(t, int32(-139), res.Pool.State.TickCurrent)
	require.NoError(t, res.Pool.Validate())

	stored, err := res.Pool.Ticks.Tick(-120)
	require.NoError(t, err)
	assert.Equal(t, res.Crossings[0], stored)
}

func TestSwapNetZeroTickConserves(t *testing.T) {
	single, _ := deposit(t, openPool(t, testConfig), -600, 600, 1_000_000)
	split, _ := deposit(t, openPool(t, testConfig), -600, 0, 1_000_000)
	split, _ = deposit(t, split, 0, 600, 1_000_000)

	tick0, err := split.Ticks.Tick(0)
	require.NoError(t, err)
	assert.True(t, tick0.LiquidityNet.IsZero())
	assert.Equal(t, u(2_000_000), tick0.LiquidityGross)

	engine := NewEngine(EngineConfig{}, nil)
	for _, amount := range []uint64{1, 999, 10_000, 25_000} {
		a, err := engine.Swap(single, sellToken0(amount, 1))
		require.NoError(t, err)
		b, err := engine.Swap(split, sellToken0(amount, 1))
		require.NoError(t, err)
		assert.Equal(t, a.Amount1, b.Amount1, "amount %d", amount)
		assert.Equal(t, a.FeeAmount, b.FeeAmount, "amount %d", amount)
		assert.Equal(t, a.Pool.State.SqrtPriceX64, b.Pool.State.SqrtPriceX64, "amount %d", amount)
		require.NoError(t, b.Pool.Validate())
	}
}

func TestSwapFeeCarving(t *testing.T) {
	cfg := testConfig
	cfg.ProtocolFeeRate = 120_000
	cfg.FundFeeRate = 40_000
	p, _ := deposit(t, openPool(t, cfg), -600, 600, 1_000_000)

	res, err := NewEngine(EngineConfig{}, nil).Swap(p, sellToken0(20_000, 1))
	require.NoError(t, err)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, uint64(60), res.Steps[0].FeeAmount)
	assert.Equal(t, uint64(7), res.ProtocolFee)
	assert.Equal(t, uint64(2), res.FundFee)
	assert.Equal(t, uint64(51), res.FeeAmount)
	assert.Equal(t, uint64(7), res.Pool.State.ProtocolFeesToken0)
	assert.Equal(t, uint64(2), res.Pool.State.FundFeesToken0)

	want, err := accrual.FeeGrowthDelta(51, u(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, want, res.Pool.State.FeeGrowthGlobal0X64)
}

func TestSwapPriceLimit(t *testing.T) {
	p, _ := deposit(t, openPool(t, testConfig), -600, 600, 1_000_000)
	engine := NewEngine(EngineConfig{}, nil)

	above, err := tickmath.SqrtPriceAtTick(10)
	require.NoError(t, err)
	params := sellToken0(1000, 1)
	params.SqrtPriceLimitX64 = above
	_, err = engine.Swap(p, params)
	assert.ErrorIs(t, err, ammerr.ErrPriceLimitViolated)

	params.SqrtPriceLimitX64 = p.State.SqrtPriceX64
	_, err = engine.Swap(p, params)
	assert.ErrorIs(t, err, ammerr.ErrPriceLimitViolated)

	limit, err := tickmath.SqrtPriceAtTick(-10)
	require.NoError(t, err)
	params = sellToken0(1_000_000, 1)
	params.SqrtPriceLimitX64 = limit
	res, err := engine.Swap(p, params)
	require.NoError(t, err)
	assert.Equal(t, SwapLimitReached, res.Status)
	assert.Equal(t, limit, res.Pool.State.SqrtPriceX64)
	assert.Equal(t, int32(-10), res.Pool.State.TickCurrent)
	assert.Less(t, res.Amount0, uint64(1_000_000))
}

func TestSwapStepLimit(t *testing.T) {
	p, _ := deposit(t, openPool(t, testConfig), -600, 600, 1_000_000)
	p, _ = deposit(t, p, -120, 120, 500_000)
	before := p.Clone()

	_, err := NewEngine(EngineConfig{MaxSteps: 1}, nil).Swap(p, sellToken0(10_000, 5))
	assert.ErrorIs(t, err, ammerr.ErrSwapStepLimitExceeded)

	assert.Equal(t, before.State, p.State)
	assert.Equal(t, before.Oracle, p.Oracle)
	assert.Equal(t, before.Ticks.All(), p.Ticks.All())
}

func TestSwapInsufficientLiquidity(t *testing.T) {
	engine := NewEngine(EngineConfig{}, nil)
	_, err := engine.Swap(openPool(t, testConfig), sellToken0(1000, 1))
	assert.ErrorIs(t, err, ammerr.ErrInsufficientLiquidity)

	// liquidity runs out after the lower bound is crossed
	p, _ := deposit(t, openPool(t, testConfig), -600, 600, 1_000_000)
	_, err = engine.Swap(p, sellToken0(1_000_000, 1))
	assert.ErrorIs(t, err, ammerr.ErrInsufficientLiquidity)
}

func TestSwapCrossesEmptyGap(t *testing.T) {
	p, _ := deposit(t, openPool(t, testConfig), 600, 1200, 1_000_000)
	assert.True(t, p.State.Liquidity.IsZero())

	res, err := NewEngine(EngineConfig{}, nil).Swap(p, SwapParams{AmountSpecified: 1000, ExactInput: true, BlockTimestamp: 1})
	require.NoError(t, err)
	require.Len(t, res.Crossings, 1)
	assert.Equal(t, int32(600), res.Crossings[0].Tick)
	assert.Equal(t, uint64(1000), res.Amount1)
	assert.Equal(t, uint64(938), res.Amount0)
	assert.Equal(t, int32(619), res.Pool.State.TickCurrent)
	assert.Equal(t, u(1_000_000), res.Pool.State.Liquidity)
	require.NoError(t, res.Pool.Validate())
}

func TestSwapRejects(t *testing.T) {
	p, _ := deposit(t, openPool(t, testConfig), -600, 600, 1_000_000)
	engine := NewEngine(EngineConfig{}, nil)

	_, err := engine.Swap(p, sellToken0(0, 1))
	assert.ErrorIs(t, err, ammerr.ErrZeroAmount)

	disabled := p.Clone()
	disabled.State.Status = StatusSwap
	_, err = engine.Swap(disabled, sellToken0(10, 1))
	assert.ErrorIs(t, err, ammerr.ErrNotApproved)
}

func TestSwapFeeGrowthOverflow(t *testing.T) {
	p, _ := deposit(t, openPool(t, testConfig), -600, 600, 1_000_000)
	saturated := p.Clone()
	saturated.State.FeeGrowthGlobal0X64 = uint128.Max

	_, err := NewEngine(EngineConfig{}, nil).Swap(saturated, sellToken0(1000, 1))
	assert.ErrorIs(t, err, ammerr.ErrOverflow)
	assert.Equal(t, uint128.Max, saturated.State.FeeGrowthGlobal0X64)

	saturated = p.Clone()
	saturated.State.SwapInAmountToken0 = uint128.Max
	_, err = NewEngine(EngineConfig{}, nil).Swap(saturated, sellToken0(1000, 1))
	assert.ErrorIs(t, err, ammerr.ErrOverflow)
}

func TestCheckPriceMoved(t *testing.T) {
	lower, upper := fixedpoint.Q64.Sub64(1), fixedpoint.Q64
	assert.NoError(t, checkPriceMoved(upper, lower, true))
	assert.NoError(t, checkPriceMoved(lower, upper, false))
	assert.ErrorIs(t, checkPriceMoved(upper, upper, true), ammerr.ErrZeroAmount)
	assert.ErrorIs(t, checkPriceMoved(upper, upper, false), ammerr.ErrZeroAmount)
	assert.ErrorIs(t, checkPriceMoved(lower, upper, true), ammerr.ErrZeroAmount)
	assert.ErrorIs(t, checkPriceMoved(upper, lower, false), ammerr.ErrZeroAmount)
}

func TestSwapExactThreshold(t *testing.T) {
	p, _ := deposit(t, openPool(t, testConfig), -600, 600, 1_000_000)
	engine := NewEngine(EngineConfig{}, nil)

	_, err := engine.SwapExact(p, sellToken0(1000, 1), 997)
	assert.ErrorIs(t, err, ammerr.ErrSlippage)
	res, err := engine.SwapExact(p, sellToken0(1000, 1), 996)
	require.NoError(t, err)
	assert.Equal(t, uint64(996), res.Amount1)

	out := SwapParams{AmountSpecified: 500, ZeroForOne: true, BlockTimestamp: 1}
	_, err = engine.SwapExact(p, out, 502)
	assert.ErrorIs(t, err, ammerr.ErrSlippage)
	_, err = engine.SwapExact(p, out, 503)
	assert.NoError(t, err)
}

func TestSwapObservesPreSwapTick(t *testing.T) {
	p, _ := deposit(t, openPool(t, testConfig), -600, 600, 1_000_000)
	res, err := NewEngine(EngineConfig{}, nil).Swap(p, sellToken0(1000, 10))
	require.NoError(t, err)
	latest := res.Pool.Oracle.Latest()
	assert.Equal(t, uint64(10), latest.BlockTimestamp)
	assert.Equal(t, int64(0), latest.TickCumulative)

	res, err = NewEngine(EngineConfig{}, nil).Swap(res.Pool, sellToken0(1000, 20))
	require.NoError(t, err)
	assert.Equal(t, int64(-20*10), res.Pool.Oracle.Latest().TickCumulative)
}

func TestBitmapTracksArrays(t *testing.T) {
	p, pos := deposit(t, openPool(t, testConfig), -600, 600, 1_000_000)
	assert.Equal(t, 2, p.State.TickArrayBitmap.Count())
	assert.True(t, p.State.TickArrayBitmap.IsInitialized(-3600, 60))
	assert.True(t, p.State.TickArrayBitmap.IsInitialized(0, 60))

	change, err := p.DecreaseLiquidity(pos, pos.Liquidity, 0, 0, emptyVaults, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, change.Pool.State.TickArrayBitmap.Count())
	assert.True(t, change.Pool.State.Liquidity.IsZero())
	require.NoError(t, change.Pool.Validate())

	lower, err := change.Pool.Ticks.Tick(-600)
	require.NoError(t, err)
	assert.Equal(t, tickarray.TickState{Tick: -600}, lower)
}
