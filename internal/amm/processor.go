package amm

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Processor runs operations through a Ledger: read the snapshot, compute,
// settle. It holds no locks; the caller must give it exclusive access to the
// pool and its vaults for the duration of a call, and must persist the
// returned pool only when the call succeeds.
type Processor struct {
	ledger Ledger
}

func NewProcessor(ledger Ledger) *Processor {
	return &Processor{ledger: ledger}
}

// Snapshot reads the vault balances and verifies the ledger's share supply
// matches the pool record.
func (p *Processor) Snapshot(ctx context.Context, pool PoolState) (Reserves, error) {
	if p.ledger == nil {
		return Reserves{}, fmt.Errorf("ledger is nil")
	}
	reserves, err := p.ledger.Reserves(ctx, pool)
	if err != nil {
		return Reserves{}, fmt.Errorf("read reserves: %w", err)
	}
	supply, err := p.ledger.ShareSupply(ctx, pool)
	if err != nil {
		return Reserves{}, fmt.Errorf("read share supply: %w", err)
	}
	if supply != pool.LPSupply {
		return Reserves{}, fmt.Errorf("%w: ledger %d, pool %d", ErrSupplyMismatch, supply, pool.LPSupply)
	}
	return reserves, nil
}

func (p *Processor) Deposit(ctx context.Context, pool PoolState, user common.Address, maxX, maxY uint64) (DepositResult, error) {
	reserves, err := p.Snapshot(ctx, pool)
	if err != nil {
		return DepositResult{}, err
	}
	res, err := Deposit(pool, reserves, maxX, maxY)
	if err != nil {
		return DepositResult{}, err
	}
	if err := p.ledger.Settle(ctx, res.Settlement(user)); err != nil {
		return DepositResult{}, fmt.Errorf("settle deposit: %w", err)
	}
	return res, nil
}

func (p *Processor) Swap(ctx context.Context, pool PoolState, user common.Address, amountIn, amountOutMin uint64, assetIsX bool) (SwapResult, error) {
	reserves, err := p.Snapshot(ctx, pool)
	if err != nil {
		return SwapResult{}, err
	}
	res, err := Swap(pool, reserves, amountIn, amountOutMin, assetIsX)
	if err != nil {
		return SwapResult{}, err
	}
	if err := p.ledger.Settle(ctx, res.Settlement(user)); err != nil {
		return SwapResult{}, fmt.Errorf("settle swap: %w", err)
	}
	return res, nil
}

func (p *Processor) Withdraw(ctx context.Context, pool PoolState, user common.Address, lpAmount uint64) (WithdrawResult, error) {
	reserves, err := p.Snapshot(ctx, pool)
	if err != nil {
		return WithdrawResult{}, err
	}
	res, err := Withdraw(pool, reserves, lpAmount)
	if err != nil {
		return WithdrawResult{}, err
	}
	if err := p.ledger.Settle(ctx, res.Settlement(user)); err != nil {
		return WithdrawResult{}, fmt.Errorf("settle withdraw: %w", err)
	}
	return res, nil
}
