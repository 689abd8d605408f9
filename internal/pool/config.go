package pool

import (
	"fmt"

	"clmmScope/internal/ammerr"
	"clmmScope/internal/swapmath"
)

// AmmConfig is the fee tier a pool trades under. Rates are parts per FeeRateDenominator.
type AmmConfig struct {
	Index           uint16 `json:"index"`
	TickSpacing     uint16 `json:"tickSpacing"`
	TradeFeeRate    uint32 `json:"tradeFeeRate"`
	ProtocolFeeRate uint32 `json:"protocolFeeRate"`
	FundFeeRate     uint32 `json:"fundFeeRate"`
}

// Validate checks the spacing and that the rates are proper fractions.
func (c AmmConfig) Validate() error {
	if c.TickSpacing == 0 {
		return ammerr.ErrInvalidTickSpacing
	}
	if c.TradeFeeRate >= swapmath.FeeRateDenominator {
		return fmt.Errorf("trade fee rate %d must be below %d", c.TradeFeeRate, swapmath.FeeRateDenominator)
	}
	if uint64(c.ProtocolFeeRate)+uint64(c.FundFeeRate) > swapmath.FeeRateDenominator {
		return fmt.Errorf("protocol fee rate %d plus fund fee rate %d exceed %d", c.ProtocolFeeRate, c.FundFeeRate, swapmath.FeeRateDenominator)
	}
	return nil
}
