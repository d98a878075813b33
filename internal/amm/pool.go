package amm

import "github.com/ethereum/go-ethereum/common"

// PoolState is the mutable record of one pool. Reserves live in the ledger's
// vault accounts and are passed in separately as a Reserves snapshot.
type PoolState struct {
	Address   common.Address `json:"address"`
	Authority common.Address `json:"authority"`
	MintX     common.Address `json:"mint_x"`
	MintY     common.Address `json:"mint_y"`
	VaultX    common.Address `json:"vault_x"`
	VaultY    common.Address `json:"vault_y"`
	LPMint    common.Address `json:"lp_mint"`

	LPSupply       uint64 `json:"lp_supply"`
	DeclaredSupply uint64 `json:"declared_supply"`
	FeeBP          uint16 `json:"fee_bp"`
	FeeCollectedX  uint64 `json:"fee_collected_x"`
	FeeCollectedY  uint64 `json:"fee_collected_y"`
	Locked         bool   `json:"locked"`
}

// Reserves is a point-in-time read of the two vault balances.
type Reserves struct {
	X uint64 `json:"x"`
	Y uint64 `json:"y"`
}

// PoolParams describes a pool at creation time.
type PoolParams struct {
	Address   common.Address
	Authority common.Address
	MintX     common.Address
	MintY     common.Address
	VaultX    common.Address
	VaultY    common.Address
	LPMint    common.Address
	FeeBP     uint16
	// DeclaredSupply is recorded as metadata only; no shares are minted.
	DeclaredSupply uint64
}

// CreatePool returns a fresh, unlocked pool with zero supply and fees.
func CreatePool(params PoolParams) (PoolState, error) {
	if uint64(params.FeeBP) >= BasisPoints {
		return PoolState{}, ErrInvalidFee
	}
	return PoolState{
		Address:        params.Address,
		Authority:      params.Authority,
		MintX:          params.MintX,
		MintY:          params.MintY,
		VaultX:         params.VaultX,
		VaultY:         params.VaultY,
		LPMint:         params.LPMint,
		DeclaredSupply: params.DeclaredSupply,
		FeeBP:          params.FeeBP,
	}, nil
}
