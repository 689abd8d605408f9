// Package pool holds pool and position state and runs swaps and liquidity changes against it.
//
// Operations never modify the pool they are given. Each returns a new *Pool carrying the
// updated state, tick arrays and observations, so a failed call leaves the caller's pool intact.
package pool

import (
	"fmt"

	"lukechampine.com/uint128"

	"clmmScope/internal/accrual"
	"clmmScope/internal/ammerr"
	"clmmScope/internal/fixedpoint"
	"clmmScope/internal/oracle"
	"clmmScope/internal/tickarray"
	"clmmScope/internal/tickmath"
)

// Status disables operations: a set bit turns the operation off.
type Status uint8

const (
	StatusOpenPositionOrIncreaseLiquidity Status = 1 << iota
	StatusDecreaseLiquidity
	StatusCollectFee
	StatusCollectReward
	StatusSwap
)

// Allows reports whether op is enabled.
func (s Status) Allows(op Status) bool {
	return s&op == 0
}

// PoolState is the pool's mutable record.
type PoolState struct {
	SqrtPriceX64 uint128.Uint128
	TickCurrent  int32
	Liquidity    uint128.Uint128

	FeeGrowthGlobal0X64 uint128.Uint128
	FeeGrowthGlobal1X64 uint128.Uint128

	ProtocolFeesToken0 uint64
	ProtocolFeesToken1 uint64
	FundFeesToken0     uint64
	FundFeesToken1     uint64

	SwapInAmountToken0  uint128.Uint128
	SwapOutAmountToken1 uint128.Uint128
	SwapInAmountToken1  uint128.Uint128
	SwapOutAmountToken0 uint128.Uint128

	TotalFeesToken0        uint64
	TotalFeesClaimedToken0 uint64
	TotalFeesToken1        uint64
	TotalFeesClaimedToken1 uint64

	RewardInfos     [accrual.RewardNum]accrual.RewardInfo
	TickArrayBitmap tickarray.Bitmap

	Status   Status
	OpenTime uint64
}

// Pool bundles the pool record with its fee tier, tick arrays and observation ring.
type Pool struct {
	Config AmmConfig
	State  PoolState
	Ticks  *tickarray.Store
	Oracle oracle.State
}

// New opens a pool at sqrtPriceX64. The oracle starts at openTime.
func New(cfg AmmConfig, sqrtPriceX64 uint128.Uint128, openTime uint64) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	tick, err := tickmath.TickAtSqrtPrice(sqrtPriceX64)
	if err != nil {
		return nil, err
	}
	return &Pool{
		Config: cfg,
		State: PoolState{
			SqrtPriceX64: sqrtPriceX64,
			TickCurrent:  tick,
			OpenTime:     openTime,
		},
		Ticks:  tickarray.NewStore(cfg.TickSpacing),
		Oracle: oracle.Initialize(openTime),
	}, nil
}

// Clone returns a deep copy.
func (p *Pool) Clone() *Pool {
	cp := *p
	cp.Ticks = p.Ticks.Clone()
	return &cp
}

// TickSpacing returns the spacing of the pool's fee tier.
func (p *Pool) TickSpacing() uint16 {
	return p.Config.TickSpacing
}

// Validate checks the pool's internal consistency: price and tick agree, the bitmap matches the
// tick arrays, and active liquidity equals the net liquidity of every tick at or below the
// current one.
func (p *Pool) Validate() error {
	if err := p.Config.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if p.Ticks == nil {
		return fmt.Errorf("tick store is nil")
	}
	if p.Ticks.TickSpacing() != p.Config.TickSpacing {
		return fmt.Errorf("tick store spacing %d, config spacing %d: %w", p.Ticks.TickSpacing(), p.Config.TickSpacing, ammerr.ErrInvalidTickSpacing)
	}
	if err := checkPriceTick(p.State.SqrtPriceX64, p.State.TickCurrent); err != nil {
		return err
	}
	if err := p.State.TickArrayBitmap.Validate(p.Ticks, p.Config.TickSpacing); err != nil {
		return fmt.Errorf("bitmap: %w", err)
	}
	if err := p.Oracle.Validate(); err != nil {
		return err
	}
	for i, info := range p.State.RewardInfos {
		if i > 0 && info.Initialized() && !p.State.RewardInfos[i-1].Initialized() {
			return fmt.Errorf("reward %d initialized before %d", i, i-1)
		}
	}

	var active fixedpoint.I128
	for _, ta := range p.Ticks.All() {
		for _, ts := range ta.Ticks {
			if !ts.IsInitialized() || ts.Tick > p.State.TickCurrent {
				continue
			}
			next, err := active.Add(ts.LiquidityNet)
			if err != nil {
				return fmt.Errorf("sum liquidity net: %w", err)
			}
			active = next
		}
	}
	if active.Neg || !active.Abs.Equals(p.State.Liquidity) {
		return fmt.Errorf("active liquidity %s, tick net sum %s: %w", p.State.Liquidity, active, ammerr.ErrInvalidTickArray)
	}
	return nil
}

// checkPriceTick accepts a price on the upper boundary of tick, where a downward crossing
// leaves it.
func checkPriceTick(sqrtPriceX64 uint128.Uint128, tick int32) error {
	lower, err := tickmath.SqrtPriceAtTick(tick)
	if err != nil {
		return err
	}
	if sqrtPriceX64.Cmp(lower) < 0 {
		return fmt.Errorf("sqrt price %s below tick %d: %w", sqrtPriceX64, tick, ammerr.ErrPriceOutOfRange)
	}
	if tick == tickmath.MaxTick {
		return nil
	}
	upper, err := tickmath.SqrtPriceAtTick(tick + 1)
	if err != nil {
		return err
	}
	if sqrtPriceX64.Cmp(upper) > 0 {
		return fmt.Errorf("sqrt price %s above tick %d: %w", sqrtPriceX64, tick+1, ammerr.ErrPriceOutOfRange)
	}
	return nil
}

// InitReward starts reward stream index. Existing streams accrue to now first.
func (p *Pool) InitReward(index int, openTime, endTime uint64, emissionsPerSecondX64 uint128.Uint128, now uint64) (*Pool, error) {
	infos, err := accrual.UpdateRewardInfos(p.State.RewardInfos, now, p.State.Liquidity)
	if err != nil {
		return nil, fmt.Errorf("update rewards: %w", err)
	}
	if openTime < now {
		return nil, fmt.Errorf("reward open time %d before now %d", openTime, now)
	}
	infos, err = accrual.InitReward(infos, index, openTime, endTime, emissionsPerSecondX64)
	if err != nil {
		return nil, err
	}
	next := p.Clone()
	next.State.RewardInfos = infos
	return next, nil
}
