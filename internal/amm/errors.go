package amm

import (
	"errors"
	"fmt"
)

// Failure kinds. Every operation in this package returns nil or an error for
// which errors.Is matches exactly one of these.
var (
	ErrPoolLocked       = errors.New("amm: pool is locked")
	ErrInvalidAmount    = errors.New("amm: invalid amount")
	ErrSlippageExceeded = errors.New("amm: slippage exceeded")
	ErrOverflow         = errors.New("amm: arithmetic overflow")
	ErrDivisionByZero   = errors.New("amm: division by zero")
)

var (
	ErrLPAmountZero         = fmt.Errorf("%w: lp token amount cannot be zero", ErrInvalidAmount)
	ErrInvalidFee           = fmt.Errorf("%w: fee must be below 10000 bp", ErrInvalidAmount)
	ErrReserveDrained       = fmt.Errorf("%w: swap would empty the output vault", ErrInvalidAmount)
	ErrEmptyReserves        = fmt.Errorf("%w: pool has empty reserves", ErrDivisionByZero)
	ErrInconsistentReserves = fmt.Errorf("%w: lp supply and reserves disagree", ErrDivisionByZero)
	ErrProductDecreased     = fmt.Errorf("%w: swap would decrease the constant product", ErrInvalidAmount)
)

// ErrSupplyMismatch is returned when the ledger's issued share count differs
// from PoolState.LPSupply.
var ErrSupplyMismatch = errors.New("amm: ledger share supply does not match pool")
