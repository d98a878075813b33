package aggregate

import (
	"fmt"
	"math/big"

	"ammCore/internal/model"
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	PoolAddress   string
	WindowStart   uint64
	WindowEnd     uint64
	SwapCount     uint64
	DepositCount  uint64
	WithdrawCount uint64
	VolumeX       *big.Int
	VolumeY       *big.Int
	FeeX          *big.Int
	FeeY          *big.Int
	ReserveX      uint64
	ReserveY      uint64
	LPSupply      uint64
	LastTS        uint64
	seen          bool
}

func NewAccumulator(pool string, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolAddress: pool,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		VolumeX:     big.NewInt(0),
		VolumeY:     big.NewInt(0),
		FeeX:        big.NewInt(0),
		FeeY:        big.NewInt(0),
	}
}

// AddOperation folds one journal record into the window. The latest record
// by timestamp sets the closing reserves and share supply.
func (a *Accumulator) AddOperation(rec model.OperationRecord) error {
	switch rec.Kind {
	case model.OperationSwap:
		if rec.AssetIn != model.AssetX && rec.AssetIn != model.AssetY {
			return fmt.Errorf("swap %s: invalid asset_in %q", rec.ID, rec.AssetIn)
		}
		addUint(a.VolumeX, rec.AmountX)
		addUint(a.VolumeY, rec.AmountY)
		addUint(a.FeeX, rec.FeeX)
		addUint(a.FeeY, rec.FeeY)
		a.SwapCount++
	case model.OperationDeposit:
		a.DepositCount++
	case model.OperationWithdraw:
		a.WithdrawCount++
	case model.OperationCreate, model.OperationLock, model.OperationUnlock:
	default:
		return fmt.Errorf("operation %s: unknown kind %q", rec.ID, rec.Kind)
	}

	if !a.seen || rec.Timestamp >= a.LastTS {
		a.seen = true
		a.LastTS = rec.Timestamp
		a.ReserveX = rec.ReserveX
		a.ReserveY = rec.ReserveY
		a.LPSupply = rec.LPSupply
	}
	return nil
}

func addUint(target *big.Int, v uint64) {
	if v == 0 {
		return
	}
	target.Add(target, new(big.Int).SetUint64(v))
}
