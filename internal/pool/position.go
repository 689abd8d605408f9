package pool

import (
	"fmt"

	gmath "github.com/ethereum/go-ethereum/common/math"
	"lukechampine.com/uint128"

	"clmmScope/internal/accrual"
	"clmmScope/internal/ammerr"
	"clmmScope/internal/fixedpoint"
	"clmmScope/internal/liquiditymath"
	"clmmScope/internal/tickarray"
	"clmmScope/internal/tickmath"
)

// PositionRewardInfo is a position's share of one reward stream.
type PositionRewardInfo struct {
	GrowthInsideLastX64 uint128.Uint128
	AmountOwed          uint64
}

// Position is liquidity provided over [TickLower, TickUpper).
type Position struct {
	TickLower int32
	TickUpper int32
	Liquidity uint128.Uint128

	FeeGrowthInside0LastX64 uint128.Uint128
	FeeGrowthInside1LastX64 uint128.Uint128
	TokenFeesOwed0          uint64
	TokenFeesOwed1          uint64

	RewardInfos [accrual.RewardNum]PositionRewardInfo
}

// LiquidityChange is the outcome of a position operation. Amount0 and Amount1 are paid into the
// pool on increase and out of it otherwise.
type LiquidityChange struct {
	Pool     *Pool
	Position Position

	Amount0 uint64
	Amount1 uint64
	Fees0   uint64
	Fees1   uint64
	Rewards [accrual.RewardNum]uint64

	FlippedLower bool
	FlippedUpper bool
}

func addOwed(owed, delta uint64) (uint64, error) {
	sum, overflow := gmath.SafeAdd(owed, delta)
	if overflow {
		return 0, fmt.Errorf("owed amount: %w", ammerr.ErrOverflow)
	}
	return sum, nil
}

// settle credits the position with fees and rewards accrued since its last snapshots.
func (pos *Position) settle(feeInside0, feeInside1 uint128.Uint128, rewardInside [accrual.RewardNum]uint128.Uint128, infos [accrual.RewardNum]accrual.RewardInfo) error {
	var err error
	if pos.TokenFeesOwed0, err = addOwed(pos.TokenFeesOwed0, accrual.OwedDelta(feeInside0, pos.FeeGrowthInside0LastX64, pos.Liquidity)); err != nil {
		return err
	}
	if pos.TokenFeesOwed1, err = addOwed(pos.TokenFeesOwed1, accrual.OwedDelta(feeInside1, pos.FeeGrowthInside1LastX64, pos.Liquidity)); err != nil {
		return err
	}
	pos.FeeGrowthInside0LastX64 = feeInside0
	pos.FeeGrowthInside1LastX64 = feeInside1

	for i := range pos.RewardInfos {
		if !infos[i].Initialized() {
			continue
		}
		ri := &pos.RewardInfos[i]
		if ri.AmountOwed, err = addOwed(ri.AmountOwed, accrual.OwedDelta(rewardInside[i], ri.GrowthInsideLastX64, pos.Liquidity)); err != nil {
			return err
		}
		ri.GrowthInsideLastX64 = rewardInside[i]
	}
	return nil
}

// growthInside reads the boundary ticks of pos and returns its fee and reward growth inside.
func (p *Pool) growthInside(lower, upper tickarray.TickState, infos [accrual.RewardNum]accrual.RewardInfo) (uint128.Uint128, uint128.Uint128, [accrual.RewardNum]uint128.Uint128) {
	s := &p.State
	fee0 := accrual.FeeGrowthInside(lower.Tick, upper.Tick, s.TickCurrent, s.FeeGrowthGlobal0X64, lower.FeeGrowthOutside0X64, upper.FeeGrowthOutside0X64)
	fee1 := accrual.FeeGrowthInside(lower.Tick, upper.Tick, s.TickCurrent, s.FeeGrowthGlobal1X64, lower.FeeGrowthOutside1X64, upper.FeeGrowthOutside1X64)
	rewards := accrual.RewardGrowthsInside(lower.Tick, upper.Tick, s.TickCurrent, lower.RewardGrowthsOutsideX64, upper.RewardGrowthsOutsideX64, infos)
	return fee0, fee1, rewards
}

// ModifyLiquidity applies a signed liquidity change to pos at time now: rewards accrue, the
// boundary ticks and the bitmap are updated, the position is settled, and active liquidity
// changes when the range covers the current tick. A zero delta only settles the position.
func (p *Pool) ModifyLiquidity(pos Position, delta fixedpoint.I128, now uint64) (LiquidityChange, error) {
	spacing := p.Config.TickSpacing
	if err := tickmath.CheckTickRange(pos.TickLower, pos.TickUpper, spacing); err != nil {
		return LiquidityChange{}, err
	}
	if delta.IsZero() && pos.Liquidity.IsZero() {
		return LiquidityChange{}, fmt.Errorf("settle empty position: %w", ammerr.ErrZeroAmount)
	}

	next := p.Clone()
	state := &next.State

	infos, err := accrual.UpdateRewardInfos(state.RewardInfos, now, state.Liquidity)
	if err != nil {
		return LiquidityChange{}, fmt.Errorf("update rewards: %w", err)
	}
	state.RewardInfos = infos
	if next.Oracle, _, err = next.Oracle.Observe(now, state.TickCurrent, state.Liquidity); err != nil {
		return LiquidityChange{}, fmt.Errorf("observe: %w", err)
	}

	lower, err := next.Ticks.Tick(pos.TickLower)
	if err != nil {
		return LiquidityChange{}, err
	}
	upper, err := next.Ticks.Tick(pos.TickUpper)
	if err != nil {
		return LiquidityChange{}, err
	}

	change := LiquidityChange{}
	if !delta.IsZero() {
		maxLiquidity := liquiditymath.MaxLiquidityPerTick(spacing)
		growths := accrual.GrowthsGlobal(infos)
		if change.FlippedLower, err = lower.Update(state.TickCurrent, delta, state.FeeGrowthGlobal0X64, state.FeeGrowthGlobal1X64, growths, false, maxLiquidity); err != nil {
			return LiquidityChange{}, fmt.Errorf("update tick %d: %w", pos.TickLower, err)
		}
		if change.FlippedUpper, err = upper.Update(state.TickCurrent, delta, state.FeeGrowthGlobal0X64, state.FeeGrowthGlobal1X64, growths, true, maxLiquidity); err != nil {
			return LiquidityChange{}, fmt.Errorf("update tick %d: %w", pos.TickUpper, err)
		}
	}

	fee0, fee1, rewards := next.growthInside(lower, upper, infos)
	if err := pos.settle(fee0, fee1, rewards, infos); err != nil {
		return LiquidityChange{}, err
	}
	if pos.Liquidity, err = liquiditymath.AddDelta(pos.Liquidity, delta); err != nil {
		return LiquidityChange{}, err
	}

	if !delta.IsZero() {
		if delta.Neg && change.FlippedLower {
			lower.Clear()
		}
		if delta.Neg && change.FlippedUpper {
			upper.Clear()
		}
		if err := next.Ticks.SetTick(lower, &state.TickArrayBitmap); err != nil {
			return LiquidityChange{}, err
		}
		if err := next.Ticks.SetTick(upper, &state.TickArrayBitmap); err != nil {
			return LiquidityChange{}, err
		}

		amount0, amount1, active, err := liquiditymath.AmountsForDelta(state.TickCurrent, state.SqrtPriceX64, pos.TickLower, pos.TickUpper, delta)
		if err != nil {
			return LiquidityChange{}, err
		}
		if active {
			if state.Liquidity, err = liquiditymath.AddDelta(state.Liquidity, delta); err != nil {
				return LiquidityChange{}, fmt.Errorf("pool liquidity: %w", err)
			}
		}
		change.Amount0, change.Amount1 = amount0, amount1
	}

	change.Pool = next
	change.Position = pos
	return change, nil
}

// IncreaseLiquidity adds liquidity to pos. The required amounts round up and must not exceed
// the given maximums.
func (p *Pool) IncreaseLiquidity(pos Position, liquidity uint128.Uint128, amount0Max, amount1Max uint64, now uint64) (LiquidityChange, error) {
	if !p.State.Status.Allows(StatusOpenPositionOrIncreaseLiquidity) {
		return LiquidityChange{}, fmt.Errorf("increase liquidity: %w", ammerr.ErrNotApproved)
	}
	if liquidity.IsZero() {
		return LiquidityChange{}, fmt.Errorf("increase liquidity: %w", ammerr.ErrZeroAmount)
	}
	delta, err := fixedpoint.NewI128(liquidity, false)
	if err != nil {
		return LiquidityChange{}, fmt.Errorf("increase liquidity: %w", ammerr.ErrLiquidityOverflow)
	}
	change, err := p.ModifyLiquidity(pos, delta, now)
	if err != nil {
		return LiquidityChange{}, err
	}
	if change.Amount0 > amount0Max || change.Amount1 > amount1Max {
		return LiquidityChange{}, fmt.Errorf("need %d/%d, allowed %d/%d: %w", change.Amount0, change.Amount1, amount0Max, amount1Max, ammerr.ErrSlippage)
	}
	return change, nil
}

// DecreaseLiquidity removes liquidity from pos and pays out the withdrawn amounts together with
// every fee owed to the position and its owed rewards, each bounded by available. The withdrawn
// amounts round down and must reach the given minimums. A zero liquidity only collects.
func (p *Pool) DecreaseLiquidity(pos Position, liquidity uint128.Uint128, amount0Min, amount1Min uint64, available [accrual.RewardNum]uint64, now uint64) (LiquidityChange, error) {
	if !p.State.Status.Allows(StatusDecreaseLiquidity) {
		return LiquidityChange{}, fmt.Errorf("decrease liquidity: %w", ammerr.ErrNotApproved)
	}
	if liquidity.Cmp(pos.Liquidity) > 0 {
		return LiquidityChange{}, fmt.Errorf("decrease %s of %s: %w", liquidity, pos.Liquidity, ammerr.ErrLiquidityUnderflow)
	}
	delta, err := fixedpoint.NewI128(liquidity, true)
	if err != nil {
		return LiquidityChange{}, fmt.Errorf("decrease liquidity: %w", ammerr.ErrLiquidityUnderflow)
	}
	change, err := p.ModifyLiquidity(pos, delta, now)
	if err != nil {
		return LiquidityChange{}, err
	}
	if !liquidity.IsZero() && (change.Amount0 < amount0Min || change.Amount1 < amount1Min) {
		return LiquidityChange{}, fmt.Errorf("got %d/%d, want at least %d/%d: %w", change.Amount0, change.Amount1, amount0Min, amount1Min, ammerr.ErrSlippage)
	}
	if err := change.takeFees(^uint64(0), ^uint64(0)); err != nil {
		return LiquidityChange{}, err
	}
	if err := change.takeRewards(available); err != nil {
		return LiquidityChange{}, err
	}
	return change, nil
}

// takeRewards pays each owed reward up to what its vault holds and records the claim on the pool.
func (c *LiquidityChange) takeRewards(available [accrual.RewardNum]uint64) error {
	state := &c.Pool.State
	for i, info := range state.RewardInfos {
		if !info.Initialized() {
			continue
		}
		ri := &c.Position.RewardInfos[i]
		amount := min(ri.AmountOwed, available[i])
		if amount == 0 {
			continue
		}
		infos, err := accrual.AddClaimed(state.RewardInfos, i, amount)
		if err != nil {
			return err
		}
		state.RewardInfos = infos
		ri.AmountOwed -= amount
		c.Rewards[i] = amount
	}
	return nil
}

// takeFees moves up to the requested fees from the position to the payout.
func (c *LiquidityChange) takeFees(amount0Requested, amount1Requested uint64) error {
	pos := &c.Position
	c.Fees0 = min(amount0Requested, pos.TokenFeesOwed0)
	c.Fees1 = min(amount1Requested, pos.TokenFeesOwed1)
	pos.TokenFeesOwed0 -= c.Fees0
	pos.TokenFeesOwed1 -= c.Fees1

	state := &c.Pool.State
	var overflow0, overflow1 bool
	state.TotalFeesClaimedToken0, overflow0 = gmath.SafeAdd(state.TotalFeesClaimedToken0, c.Fees0)
	state.TotalFeesClaimedToken1, overflow1 = gmath.SafeAdd(state.TotalFeesClaimedToken1, c.Fees1)
	if overflow0 || overflow1 {
		return fmt.Errorf("claimed fees: %w", ammerr.ErrOverflow)
	}
	return nil
}

// CollectFees settles pos and pays out up to the requested fee amounts.
func (p *Pool) CollectFees(pos Position, amount0Requested, amount1Requested uint64, now uint64) (LiquidityChange, error) {
	if !p.State.Status.Allows(StatusCollectFee) {
		return LiquidityChange{}, fmt.Errorf("collect fees: %w", ammerr.ErrNotApproved)
	}
	change, err := p.settleOrKeep(pos, now)
	if err != nil {
		return LiquidityChange{}, err
	}
	if err := change.takeFees(amount0Requested, amount1Requested); err != nil {
		return LiquidityChange{}, err
	}
	return change, nil
}

// CollectRewards settles pos and pays out its owed rewards, each bounded by what the reward vault
// holds.
func (p *Pool) CollectRewards(pos Position, available [accrual.RewardNum]uint64, now uint64) (LiquidityChange, error) {
	if !p.State.Status.Allows(StatusCollectReward) {
		return LiquidityChange{}, fmt.Errorf("collect rewards: %w", ammerr.ErrNotApproved)
	}
	change, err := p.settleOrKeep(pos, now)
	if err != nil {
		return LiquidityChange{}, err
	}
	if err := change.takeRewards(available); err != nil {
		return LiquidityChange{}, err
	}
	return change, nil
}

// settleOrKeep settles a position that still holds liquidity. An empty position has nothing left
// to accrue, so the pool is only copied.
func (p *Pool) settleOrKeep(pos Position, now uint64) (LiquidityChange, error) {
	if pos.Liquidity.IsZero() {
		if err := tickmath.CheckTickRange(pos.TickLower, pos.TickUpper, p.Config.TickSpacing); err != nil {
			return LiquidityChange{}, err
		}
		return LiquidityChange{Pool: p.Clone(), Position: pos}, nil
	}
	return p.ModifyLiquidity(pos, fixedpoint.I128{}, now)
}

// PendingFees returns the fees pos could collect now, without changing anything.
func (p *Pool) PendingFees(pos Position) (uint64, uint64, error) {
	lower, err := p.Ticks.Tick(pos.TickLower)
	if err != nil {
		return 0, 0, err
	}
	upper, err := p.Ticks.Tick(pos.TickUpper)
	if err != nil {
		return 0, 0, err
	}
	fee0, fee1, _ := p.growthInside(lower, upper, p.State.RewardInfos)
	owed0 := pos.TokenFeesOwed0 + min(accrual.OwedDelta(fee0, pos.FeeGrowthInside0LastX64, pos.Liquidity), ^uint64(0)-pos.TokenFeesOwed0)
	owed1 := pos.TokenFeesOwed1 + min(accrual.OwedDelta(fee1, pos.FeeGrowthInside1LastX64, pos.Liquidity), ^uint64(0)-pos.TokenFeesOwed1)
	return owed0, owed1, nil
}

// PendingRewards returns the rewards pos could collect at now, without changing anything.
func (p *Pool) PendingRewards(pos Position, now uint64) ([accrual.RewardNum]uint64, error) {
	var out [accrual.RewardNum]uint64
	infos, err := accrual.UpdateRewardInfos(p.State.RewardInfos, now, p.State.Liquidity)
	if err != nil {
		return out, err
	}
	lower, err := p.Ticks.Tick(pos.TickLower)
	if err != nil {
		return out, err
	}
	upper, err := p.Ticks.Tick(pos.TickUpper)
	if err != nil {
		return out, err
	}
	_, _, inside := p.growthInside(lower, upper, infos)
	for i, info := range infos {
		if !info.Initialized() {
			continue
		}
		ri := pos.RewardInfos[i]
		delta := accrual.OwedDelta(inside[i], ri.GrowthInsideLastX64, pos.Liquidity)
		out[i] = ri.AmountOwed + min(delta, ^uint64(0)-ri.AmountOwed)
	}
	return out, nil
}

// LiquidityForAmounts returns the most liquidity amount0 and amount1 can fund over
// [tickLower, tickUpper) at the current price.
func (p *Pool) LiquidityForAmounts(tickLower, tickUpper int32, amount0, amount1 uint64) (uint128.Uint128, error) {
	if err := tickmath.CheckTickRange(tickLower, tickUpper, p.Config.TickSpacing); err != nil {
		return uint128.Zero, err
	}
	priceLower, err := tickmath.SqrtPriceAtTick(tickLower)
	if err != nil {
		return uint128.Zero, err
	}
	priceUpper, err := tickmath.SqrtPriceAtTick(tickUpper)
	if err != nil {
		return uint128.Zero, err
	}
	return liquiditymath.LiquidityFromAmounts(p.State.SqrtPriceX64, priceLower, priceUpper, amount0, amount1)
}

// CheckClosable returns ErrPositionNotEmpty while pos still holds liquidity, fees or rewards.
func CheckClosable(pos Position) error {
	if !pos.Liquidity.IsZero() || pos.TokenFeesOwed0 != 0 || pos.TokenFeesOwed1 != 0 {
		return fmt.Errorf("close position: %w", ammerr.ErrPositionNotEmpty)
	}
	for _, ri := range pos.RewardInfos {
		if ri.AmountOwed != 0 {
			return fmt.Errorf("close position: %w", ammerr.ErrPositionNotEmpty)
		}
	}
	return nil
}
