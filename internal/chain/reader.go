package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ammCore/internal/amm"
)

// ErrReadOnly is returned when a settlement is attempted against chain state.
var ErrReadOnly = errors.New("chain: reader cannot settle")

// PoolReader reads a pool's vault balances and share supply from ERC20
// contracts, every call pinned to the same block.
type PoolReader struct {
	client *Client
	block  uint64
}

// PinLatest returns a reader pinned to the current head.
func (c *Client) PinLatest(ctx context.Context) (*PoolReader, error) {
	head, err := c.LatestBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest block: %w", err)
	}
	return c.ReaderAt(head), nil
}

// ReaderAt returns a reader pinned to block.
func (c *Client) ReaderAt(block uint64) *PoolReader {
	return &PoolReader{client: c, block: block}
}

func (r *PoolReader) Block() uint64 {
	return r.block
}

func (r *PoolReader) Reserves(ctx context.Context, pool amm.PoolState) (amm.Reserves, error) {
	x, err := r.balance(ctx, pool.MintX, pool.VaultX)
	if err != nil {
		return amm.Reserves{}, err
	}
	y, err := r.balance(ctx, pool.MintY, pool.VaultY)
	if err != nil {
		return amm.Reserves{}, err
	}
	return amm.Reserves{X: x, Y: y}, nil
}

func (r *PoolReader) ShareSupply(ctx context.Context, pool amm.PoolState) (uint64, error) {
	supply, err := r.client.TotalSupply(ctx, pool.LPMint, new(big.Int).SetUint64(r.block))
	if err != nil {
		return 0, err
	}
	return narrow(supply, "total supply of "+pool.LPMint.Hex())
}

func (r *PoolReader) Settle(context.Context, amm.Settlement) error {
	return ErrReadOnly
}

// QuoteSwap prices a swap against the pinned chain state. The pool's share
// supply is taken from the chain, so only its addresses and fee need to be
// set.
func (r *PoolReader) QuoteSwap(ctx context.Context, pool amm.PoolState, amountIn, amountOutMin uint64, assetIsX bool) (amm.SwapResult, error) {
	supply, err := r.ShareSupply(ctx, pool)
	if err != nil {
		return amm.SwapResult{}, err
	}
	pool.LPSupply = supply

	reserves, err := amm.NewProcessor(r).Snapshot(ctx, pool)
	if err != nil {
		return amm.SwapResult{}, err
	}
	return amm.Swap(pool, reserves, amountIn, amountOutMin, assetIsX)
}

func (r *PoolReader) balance(ctx context.Context, token, owner common.Address) (uint64, error) {
	bal, err := r.client.BalanceOf(ctx, token, owner, new(big.Int).SetUint64(r.block))
	if err != nil {
		return 0, err
	}
	return narrow(bal, fmt.Sprintf("balance of %s in %s", owner.Hex(), token.Hex()))
}

func narrow(v *big.Int, what string) (uint64, error) {
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s is %s", amm.ErrOverflow, what, v.String())
	}
	return v.Uint64(), nil
}
