// Package ammerr holds the sentinel errors shared by the pricing and accounting packages.
// Callers match them with errors.Is; every failure is terminal for the operation in progress.
package ammerr

import "errors"

var (
	ErrOverflow              = errors.New("overflow")
	ErrDivideByZero          = errors.New("divide by zero")
	ErrTickOutOfRange        = errors.New("tick out of range")
	ErrPriceOutOfRange       = errors.New("sqrt price out of range")
	ErrLiquidityOverflow     = errors.New("liquidity overflow")
	ErrLiquidityUnderflow    = errors.New("liquidity underflow")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrPriceLimitViolated    = errors.New("sqrt price limit violated")
	ErrSwapStepLimitExceeded = errors.New("swap step limit exceeded")
	ErrInsufficientHistory   = errors.New("insufficient oracle history")

	ErrInvalidTickSpacing = errors.New("invalid tick spacing")
	ErrInvalidTickArray   = errors.New("invalid tick array")
	ErrTickArrayMissing   = errors.New("tick array missing")
	ErrInvalidRange       = errors.New("invalid tick range")
	ErrZeroAmount         = errors.New("zero amount")
	ErrSlippage           = errors.New("slippage exceeded")
	ErrNotApproved        = errors.New("operation not approved")
	ErrPositionNotEmpty   = errors.New("position not empty")
)
