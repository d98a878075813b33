package postgres

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS pools (
		pool_address TEXT PRIMARY KEY,
		authority TEXT NOT NULL,
		mint_x TEXT NOT NULL,
		mint_y TEXT NOT NULL,
		vault_x TEXT NOT NULL,
		vault_y TEXT NOT NULL,
		lp_mint TEXT NOT NULL,
		fee_bp INTEGER NOT NULL,
		declared_supply NUMERIC(20,0) NOT NULL,
		created_ts BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pool_operations (
		id TEXT PRIMARY KEY,
		pool_address TEXT NOT NULL,
		kind TEXT NOT NULL,
		user_address TEXT NOT NULL,
		asset_in TEXT NOT NULL DEFAULT '',
		amount_x NUMERIC(20,0) NOT NULL,
		amount_y NUMERIC(20,0) NOT NULL,
		lp_amount NUMERIC(20,0) NOT NULL,
		fee_x NUMERIC(20,0) NOT NULL,
		fee_y NUMERIC(20,0) NOT NULL,
		reserve_x NUMERIC(20,0) NOT NULL,
		reserve_y NUMERIC(20,0) NOT NULL,
		lp_supply NUMERIC(20,0) NOT NULL,
		op_ts BIGINT NOT NULL,
		recorded_at TEXT NOT NULL,
		seq BIGSERIAL
	)`,
	`CREATE INDEX IF NOT EXISTS pool_operations_ts_idx ON pool_operations (op_ts, seq)`,
	`CREATE TABLE IF NOT EXISTS pool_snapshots (
		pool_address TEXT PRIMARY KEY,
		snapshot JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pool_window_metrics (
		pool_address TEXT NOT NULL,
		window_size_seconds BIGINT NOT NULL,
		window_start_ts TIMESTAMPTZ NOT NULL,
		window_end_ts TIMESTAMPTZ NOT NULL,
		swap_count BIGINT NOT NULL,
		deposit_count BIGINT NOT NULL,
		withdraw_count BIGINT NOT NULL,
		volume_x NUMERIC NOT NULL,
		volume_y NUMERIC NOT NULL,
		fee_x NUMERIC NOT NULL,
		fee_y NUMERIC NOT NULL,
		reserve_x NUMERIC,
		reserve_y NUMERIC,
		lp_supply NUMERIC(20,0) NOT NULL,
		fee_rate_x NUMERIC,
		fee_rate_y NUMERIC,
		apr NUMERIC,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (pool_address, window_size_seconds, window_start_ts)
	)`,
	`CREATE TABLE IF NOT EXISTS aggregate_state (
		name TEXT PRIMARY KEY,
		last_processed_ts BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// EnsureSchema creates the tables the store writes to when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
