package amm

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// MovementKind distinguishes token transfers from share mint and burn.
type MovementKind string

const (
	MovementTransfer MovementKind = "transfer"
	MovementMint     MovementKind = "mint"
	MovementBurn     MovementKind = "burn"
)

// Movement is one balance change requested from the ledger. Mint leaves From
// zero, burn leaves To zero.
type Movement struct {
	Kind   MovementKind   `json:"kind"`
	Asset  common.Address `json:"asset"`
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount uint64         `json:"amount"`
}

// Settlement is the set of movements that make one operation effective. A
// Ledger must apply all of them or none.
type Settlement struct {
	Pool      common.Address `json:"pool"`
	Movements []Movement     `json:"movements"`
}

// Ledger is the custody layer the engine relies on. It owns vault balances
// and the share asset; signature checks have already happened upstream.
type Ledger interface {
	Reserves(ctx context.Context, pool PoolState) (Reserves, error)
	ShareSupply(ctx context.Context, pool PoolState) (uint64, error)
	Settle(ctx context.Context, settlement Settlement) error
}

func (s *Settlement) add(kind MovementKind, asset, from, to common.Address, amount uint64) {
	if amount == 0 {
		return
	}
	s.Movements = append(s.Movements, Movement{Kind: kind, Asset: asset, From: from, To: to, Amount: amount})
}

// Settlement returns the movements for a deposit by user.
func (r DepositResult) Settlement(user common.Address) Settlement {
	s := Settlement{Pool: r.Pool.Address}
	s.add(MovementTransfer, r.Pool.MintX, user, r.Pool.VaultX, r.DebitX)
	s.add(MovementTransfer, r.Pool.MintY, user, r.Pool.VaultY, r.DebitY)
	s.add(MovementMint, r.Pool.LPMint, common.Address{}, user, r.MintLP)
	return s
}

// Settlement returns the movements for a swap by user.
func (r SwapResult) Settlement(user common.Address) Settlement {
	s := Settlement{Pool: r.Pool.Address}
	if r.AssetInIsX {
		s.add(MovementTransfer, r.Pool.MintX, user, r.Pool.VaultX, r.AmountIn)
		s.add(MovementTransfer, r.Pool.MintY, r.Pool.VaultY, user, r.AmountOut)
	} else {
		s.add(MovementTransfer, r.Pool.MintY, user, r.Pool.VaultY, r.AmountIn)
		s.add(MovementTransfer, r.Pool.MintX, r.Pool.VaultX, user, r.AmountOut)
	}
	return s
}

// Settlement returns the movements for a withdrawal by user.
func (r WithdrawResult) Settlement(user common.Address) Settlement {
	s := Settlement{Pool: r.Pool.Address}
	s.add(MovementBurn, r.Pool.LPMint, user, common.Address{}, r.BurnLP)
	s.add(MovementTransfer, r.Pool.MintX, r.Pool.VaultX, user, r.ReturnX)
	s.add(MovementTransfer, r.Pool.MintY, r.Pool.VaultY, user, r.ReturnY)
	return s
}
