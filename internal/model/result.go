package model

// OperationResult is the outcome of one applied operation together with the pool's state
// afterwards. Amount0 and Amount1 flow into the pool for swap input and increases, out of it
// otherwise; Fees0 and Fees1 are LP fees paid out to the position.
type OperationResult struct {
	Seq        uint64 `json:"seq"`
	Kind       OpKind `json:"kind"`
	Timestamp  uint64 `json:"timestamp"`
	PositionID string `json:"position_id,omitempty"`

	Amount0     uint64   `json:"amount0"`
	Amount1     uint64   `json:"amount1"`
	Fees0       uint64   `json:"fees0,omitempty"`
	Fees1       uint64   `json:"fees1,omitempty"`
	FeeAmount   uint64   `json:"fee_amount,omitempty"`
	ProtocolFee uint64   `json:"protocol_fee,omitempty"`
	FundFee     uint64   `json:"fund_fee,omitempty"`
	Rewards     []uint64 `json:"rewards,omitempty"`

	SwapStatus string `json:"swap_status,omitempty"`
	Steps      int    `json:"steps,omitempty"`
	Crossings  int    `json:"crossings,omitempty"`
	TwapTick   *int32 `json:"twap_tick,omitempty"`

	// PositionLiquidity is the position's liquidity after the operation, in decimal.
	PositionLiquidity string `json:"position_liquidity,omitempty"`

	SqrtPriceX64  string `json:"sqrt_price_x64"`
	TickCurrent   int32  `json:"tick_current"`
	PoolLiquidity string `json:"pool_liquidity"`
}

// OperationError records an operation the pool rejected.
type OperationError struct {
	Seq        uint64 `json:"seq"`
	Kind       OpKind `json:"kind"`
	PositionID string `json:"position_id,omitempty"`
	Error      string `json:"error"`
}
