package model

import "time"

// PoolWindowMetrics stores aggregated journal metrics for a pool window.
type PoolWindowMetrics struct {
	PoolAddress    string     `json:"pool_address"`
	WindowSizeSecs int64      `json:"window_size_seconds"`
	WindowStart    time.Time  `json:"window_start"`
	WindowEnd      time.Time  `json:"window_end"`
	SwapCount      uint64     `json:"swap_count"`
	DepositCount   uint64     `json:"deposit_count"`
	WithdrawCount  uint64     `json:"withdraw_count"`
	VolumeX        string     `json:"volume_x"`
	VolumeY        string     `json:"volume_y"`
	FeeX           string     `json:"fee_x"`
	FeeY           string     `json:"fee_y"`
	ReserveX       *string    `json:"reserve_x,omitempty"`
	ReserveY       *string    `json:"reserve_y,omitempty"`
	LPSupply       uint64     `json:"lp_supply"`
	FeeRateX       *string    `json:"fee_rate_x,omitempty"`
	FeeRateY       *string    `json:"fee_rate_y,omitempty"`
	APR            *string    `json:"apr,omitempty"`
	LastOperation  *time.Time `json:"last_operation,omitempty"`
}
