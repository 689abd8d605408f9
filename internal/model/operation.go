package model

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/math"
)

// OpKind names the action an op-log line applies to the pool.
type OpKind string

const (
	OpSwap           OpKind = "swap"
	OpIncrease       OpKind = "increase"
	OpDecrease       OpKind = "decrease"
	OpCollect        OpKind = "collect"
	OpCollectRewards OpKind = "collect_rewards"
	OpClose          OpKind = "close"
	OpInitReward     OpKind = "init_reward"
	OpObserve        OpKind = "observe"
)

// Operation is one line of an op log. Fields that do not apply to Kind are ignored.
type Operation struct {
	Seq       uint64 `json:"seq"`
	Kind      OpKind `json:"kind"`
	Timestamp uint64 `json:"timestamp"`

	PositionID string `json:"position_id,omitempty"`
	TickLower  int32  `json:"tick_lower,omitempty"`
	TickUpper  int32  `json:"tick_upper,omitempty"`
	// Liquidity is the delta for increase/decrease. An increase without it funds as much
	// liquidity as Amount0 and Amount1 allow.
	Liquidity *math.HexOrDecimal256 `json:"liquidity,omitempty"`
	// Amount0 and Amount1 are maxima for increase (zero means no limit), minima for decrease and
	// requested amounts for collect, where zero on both sides collects everything owed.
	Amount0 uint64 `json:"amount0,omitempty"`
	Amount1 uint64 `json:"amount1,omitempty"`

	ZeroForOne           bool                  `json:"zero_for_one,omitempty"`
	ExactInput           bool                  `json:"exact_input,omitempty"`
	AmountSpecified      uint64                `json:"amount_specified,omitempty"`
	SqrtPriceLimitX64    *math.HexOrDecimal256 `json:"sqrt_price_limit_x64,omitempty"`
	OtherAmountThreshold *uint64               `json:"other_amount_threshold,omitempty"`

	RewardIndex           int                   `json:"reward_index,omitempty"`
	RewardOpenTime        uint64                `json:"reward_open_time,omitempty"`
	RewardEndTime         uint64                `json:"reward_end_time,omitempty"`
	EmissionsPerSecondX64 *math.HexOrDecimal256 `json:"emissions_per_second_x64,omitempty"`
	// RewardFunding is deposited into the reward vault when the stream starts.
	RewardFunding uint64 `json:"reward_funding,omitempty"`

	SecondsAgo uint32 `json:"seconds_ago,omitempty"`
}

// Validate checks that the operation names a known kind and carries what that kind needs.
func (op Operation) Validate() error {
	switch op.Kind {
	case OpSwap:
		if op.AmountSpecified == 0 {
			return fmt.Errorf("op %d: swap without amount_specified", op.Seq)
		}
	case OpIncrease, OpDecrease, OpCollect, OpCollectRewards, OpClose:
		if op.PositionID == "" {
			return fmt.Errorf("op %d: %s without position_id", op.Seq, op.Kind)
		}
		if op.Kind == OpDecrease && op.Liquidity == nil {
			return fmt.Errorf("op %d: decrease without liquidity", op.Seq)
		}
	case OpInitReward:
		if op.EmissionsPerSecondX64 == nil {
			return fmt.Errorf("op %d: init_reward without emissions_per_second_x64", op.Seq)
		}
	case OpObserve:
	default:
		return fmt.Errorf("op %d: unknown kind %q", op.Seq, op.Kind)
	}
	return nil
}
