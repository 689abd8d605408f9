package accrual

import (
	"fmt"

	gmath "github.com/ethereum/go-ethereum/common/math"
	"lukechampine.com/uint128"

	"clmmScope/internal/ammerr"
	"clmmScope/internal/fixedpoint"
)

// RewardState tracks the lifecycle of a reward stream.
type RewardState uint8

const (
	RewardUninitialized RewardState = iota
	RewardInitialized
	RewardOpening
	RewardEnded
)

func (s RewardState) String() string {
	switch s {
	case RewardInitialized:
		return "initialized"
	case RewardOpening:
		return "opening"
	case RewardEnded:
		return "ended"
	default:
		return "uninitialized"
	}
}

// RewardInfo is one reward stream emitted to in-range liquidity between OpenTime and EndTime.
type RewardInfo struct {
	State                 RewardState
	OpenTime              uint64
	EndTime               uint64
	LastUpdateTime        uint64
	EmissionsPerSecondX64 uint128.Uint128
	TotalEmissioned       uint64
	Claimed               uint64
	GrowthGlobalX64       uint128.Uint128
}

// Initialized reports whether the stream has been set up.
func (r RewardInfo) Initialized() bool {
	return r.State != RewardUninitialized
}

// GrowthsGlobal collects the global growth of every stream.
func GrowthsGlobal(infos [RewardNum]RewardInfo) [RewardNum]uint128.Uint128 {
	var out [RewardNum]uint128.Uint128
	for i, info := range infos {
		if info.Initialized() {
			out[i] = info.GrowthGlobalX64
		}
	}
	return out
}

// InitReward sets up stream index. Streams are filled in order.
func InitReward(infos [RewardNum]RewardInfo, index int, openTime, endTime uint64, emissionsPerSecondX64 uint128.Uint128) ([RewardNum]RewardInfo, error) {
	if index < 0 || index >= RewardNum {
		return infos, fmt.Errorf("reward index %d out of range", index)
	}
	if infos[index].Initialized() {
		return infos, fmt.Errorf("reward %d already initialized", index)
	}
	if index > 0 && !infos[index-1].Initialized() {
		return infos, fmt.Errorf("reward %d initialized before %d", index, index-1)
	}
	if openTime >= endTime {
		return infos, fmt.Errorf("reward open %d not before end %d", openTime, endTime)
	}
	infos[index] = RewardInfo{
		State:                 RewardInitialized,
		OpenTime:              openTime,
		EndTime:               endTime,
		LastUpdateTime:        openTime,
		EmissionsPerSecondX64: emissionsPerSecondX64,
	}
	return infos, nil
}

// UpdateRewardInfos accrues every stream up to now against the pool's active liquidity and
// returns the updated copy. Accrual stops at EndTime. Growth rounds down so no more than the
// emitted amount is ever owed; the emitted total rounds up. While liquidity is zero the elapsed
// time passes without accrual.
func UpdateRewardInfos(infos [RewardNum]RewardInfo, now uint64, liquidity uint128.Uint128) ([RewardNum]RewardInfo, error) {
	next := infos
	for i := range next {
		info := &next[i]
		if !info.Initialized() || now <= info.OpenTime {
			continue
		}
		latest := now
		if info.EndTime < latest {
			latest = info.EndTime
		}
		if latest < info.LastUpdateTime {
			continue
		}

		if !liquidity.IsZero() {
			elapsed := uint128.From64(latest - info.LastUpdateTime)
			growthDelta, err := fixedpoint.MulDivFloor(elapsed, info.EmissionsPerSecondX64, liquidity)
			if err != nil {
				return infos, fmt.Errorf("reward %d growth: %w", i, err)
			}
			growth, err := fixedpoint.CheckedAdd(info.GrowthGlobalX64, growthDelta)
			if err != nil {
				return infos, fmt.Errorf("reward %d growth: %w", i, err)
			}
			emitted, err := fixedpoint.MulDivCeil(elapsed, info.EmissionsPerSecondX64, fixedpoint.Q64)
			if err != nil {
				return infos, fmt.Errorf("reward %d emitted: %w", i, err)
			}
			emitted64, err := fixedpoint.ToUint64(emitted)
			if err != nil {
				return infos, fmt.Errorf("reward %d emitted: %w", i, err)
			}
			total, overflow := gmath.SafeAdd(info.TotalEmissioned, emitted64)
			if overflow {
				return infos, fmt.Errorf("reward %d emitted: %w", i, ammerr.ErrOverflow)
			}
			info.GrowthGlobalX64 = growth
			info.TotalEmissioned = total
		}
		info.LastUpdateTime = latest

		switch {
		case latest >= info.OpenTime && latest < info.EndTime:
			info.State = RewardOpening
		case latest == info.EndTime:
			info.State = RewardEnded
		}
	}
	return next, nil
}

// AddClaimed records amount paid out of stream index.
func AddClaimed(infos [RewardNum]RewardInfo, index int, amount uint64) ([RewardNum]RewardInfo, error) {
	if index < 0 || index >= RewardNum {
		return infos, fmt.Errorf("reward index %d out of range", index)
	}
	claimed, overflow := gmath.SafeAdd(infos[index].Claimed, amount)
	if overflow {
		return infos, fmt.Errorf("reward %d claimed: %w", index, ammerr.ErrOverflow)
	}
	infos[index].Claimed = claimed
	return infos, nil
}

// RewardGrowthsInside applies FeeGrowthInside to every initialized stream.
func RewardGrowthsInside(
	tickLower, tickUpper, tickCurrent int32,
	lowerOutsideX64, upperOutsideX64 [RewardNum]uint128.Uint128,
	infos [RewardNum]RewardInfo,
) [RewardNum]uint128.Uint128 {
	var out [RewardNum]uint128.Uint128
	for i, info := range infos {
		if !info.Initialized() {
			continue
		}
		out[i] = FeeGrowthInside(tickLower, tickUpper, tickCurrent, info.GrowthGlobalX64, lowerOutsideX64[i], upperOutsideX64[i])
	}
	return out
}
