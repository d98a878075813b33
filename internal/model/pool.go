package model

// Pool is the storage record of a pool's static configuration.
type Pool struct {
	Address        string `json:"address"`
	Authority      string `json:"authority"`
	MintX          string `json:"mint_x"`
	MintY          string `json:"mint_y"`
	VaultX         string `json:"vault_x"`
	VaultY         string `json:"vault_y"`
	LPMint         string `json:"lp_mint"`
	FeeBP          uint16 `json:"fee_bp"`
	DeclaredSupply uint64 `json:"declared_supply"`
	CreatedAt      uint64 `json:"created_at"`
}
