// Package snapshot reads and writes pool snapshots: the JSON documents through which externally
// fetched state enters the engine and computed state leaves it.
package snapshot

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"

	"clmmScope/internal/fixedpoint"
	"clmmScope/internal/pool"
)

// Version is the document layout written by this package.
const Version = 1

// Document is the JSON layout of a snapshot. Unsigned integers may be given in decimal or
// 0x-prefixed hex; liquidityNet is a signed decimal string.
type Document struct {
	Version    int            `json:"version"`
	Seq        uint64         `json:"seq"`
	Config     pool.AmmConfig `json:"config"`
	Pool       PoolDoc        `json:"pool"`
	Rewards    []RewardDoc    `json:"rewards,omitempty"`
	TickArrays []TickArrayDoc `json:"tickArrays"`
	Positions  []PositionDoc  `json:"positions"`
	Oracle     *OracleDoc     `json:"oracle,omitempty"`
}

// PoolDoc mirrors pool.PoolState.
type PoolDoc struct {
	SqrtPriceX64        *math.HexOrDecimal256 `json:"sqrtPriceX64"`
	TickCurrent         int32                 `json:"tickCurrent"`
	Liquidity           *math.HexOrDecimal256 `json:"liquidity"`
	FeeGrowthGlobal0X64 *math.HexOrDecimal256 `json:"feeGrowthGlobal0X64,omitempty"`
	FeeGrowthGlobal1X64 *math.HexOrDecimal256 `json:"feeGrowthGlobal1X64,omitempty"`

	ProtocolFeesToken0 math.HexOrDecimal64 `json:"protocolFeesToken0"`
	ProtocolFeesToken1 math.HexOrDecimal64 `json:"protocolFeesToken1"`
	FundFeesToken0     math.HexOrDecimal64 `json:"fundFeesToken0"`
	FundFeesToken1     math.HexOrDecimal64 `json:"fundFeesToken1"`

	SwapInAmountToken0  *math.HexOrDecimal256 `json:"swapInAmountToken0,omitempty"`
	SwapOutAmountToken1 *math.HexOrDecimal256 `json:"swapOutAmountToken1,omitempty"`
	SwapInAmountToken1  *math.HexOrDecimal256 `json:"swapInAmountToken1,omitempty"`
	SwapOutAmountToken0 *math.HexOrDecimal256 `json:"swapOutAmountToken0,omitempty"`

	TotalFeesToken0        math.HexOrDecimal64 `json:"totalFeesToken0"`
	TotalFeesClaimedToken0 math.HexOrDecimal64 `json:"totalFeesClaimedToken0"`
	TotalFeesToken1        math.HexOrDecimal64 `json:"totalFeesToken1"`
	TotalFeesClaimedToken1 math.HexOrDecimal64 `json:"totalFeesClaimedToken1"`

	// TickArrayBitmap holds 16 little-endian words; when absent it is derived from the arrays.
	TickArrayBitmap []math.HexOrDecimal64 `json:"tickArrayBitmap,omitempty"`

	Status   uint8               `json:"status"`
	OpenTime math.HexOrDecimal64 `json:"openTime"`
}

// RewardDoc mirrors accrual.RewardInfo plus the balance of the stream's vault.
type RewardDoc struct {
	State                 uint8                 `json:"state"`
	OpenTime              math.HexOrDecimal64   `json:"openTime"`
	EndTime               math.HexOrDecimal64   `json:"endTime"`
	LastUpdateTime        math.HexOrDecimal64   `json:"lastUpdateTime"`
	EmissionsPerSecondX64 *math.HexOrDecimal256 `json:"emissionsPerSecondX64"`
	TotalEmissioned       math.HexOrDecimal64   `json:"totalEmissioned"`
	Claimed               math.HexOrDecimal64   `json:"claimed"`
	GrowthGlobalX64       *math.HexOrDecimal256 `json:"growthGlobalX64,omitempty"`
	VaultAmount           math.HexOrDecimal64   `json:"vaultAmount"`
}

// TickArrayDoc lists the initialized ticks of one array.
type TickArrayDoc struct {
	StartTickIndex int32     `json:"startTickIndex"`
	Ticks          []TickDoc `json:"ticks"`
}

// TickDoc mirrors tickarray.TickState.
type TickDoc struct {
	Tick                    int32                   `json:"tick"`
	LiquidityNet            fixedpoint.I128         `json:"liquidityNet"`
	LiquidityGross          *math.HexOrDecimal256   `json:"liquidityGross"`
	FeeGrowthOutside0X64    *math.HexOrDecimal256   `json:"feeGrowthOutside0X64,omitempty"`
	FeeGrowthOutside1X64    *math.HexOrDecimal256   `json:"feeGrowthOutside1X64,omitempty"`
	RewardGrowthsOutsideX64 []*math.HexOrDecimal256 `json:"rewardGrowthsOutsideX64,omitempty"`
}

// PositionDoc mirrors pool.Position under an external identifier.
type PositionDoc struct {
	ID                      string                `json:"id"`
	TickLower               int32                 `json:"tickLower"`
	TickUpper               int32                 `json:"tickUpper"`
	Liquidity               *math.HexOrDecimal256 `json:"liquidity"`
	FeeGrowthInside0LastX64 *math.HexOrDecimal256 `json:"feeGrowthInside0LastX64,omitempty"`
	FeeGrowthInside1LastX64 *math.HexOrDecimal256 `json:"feeGrowthInside1LastX64,omitempty"`
	TokenFeesOwed0          math.HexOrDecimal64   `json:"tokenFeesOwed0"`
	TokenFeesOwed1          math.HexOrDecimal64   `json:"tokenFeesOwed1"`
	Rewards                 []PositionRewardDoc   `json:"rewards,omitempty"`
}

// PositionRewardDoc mirrors pool.PositionRewardInfo.
type PositionRewardDoc struct {
	GrowthInsideLastX64 *math.HexOrDecimal256 `json:"growthInsideLastX64,omitempty"`
	AmountOwed          math.HexOrDecimal64   `json:"amountOwed"`
}

// OracleDoc mirrors oracle.State; Observations lists the populated slots in slot order.
type OracleDoc struct {
	Index        uint16           `json:"index"`
	Observations []ObservationDoc `json:"observations"`
}

// ObservationDoc mirrors oracle.Observation.
type ObservationDoc struct {
	BlockTimestamp                   math.HexOrDecimal64   `json:"blockTimestamp"`
	TickCumulative                   int64                 `json:"tickCumulative"`
	SecondsPerLiquidityCumulativeX64 *math.HexOrDecimal256 `json:"secondsPerLiquidityCumulativeX64,omitempty"`
}

func bigOf(h *math.HexOrDecimal256) *big.Int {
	if h == nil {
		return new(big.Int)
	}
	return (*big.Int)(h)
}
