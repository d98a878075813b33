package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ammCore/internal/model"
)

// Store provides Postgres persistence for pools, the operation journal,
// snapshots and window metrics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func numeric(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// UpsertPools inserts or updates pool configuration records.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				pool_address, authority, mint_x, mint_y, vault_x, vault_y, lp_mint,
				fee_bp, declared_supply, created_ts, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
			ON CONFLICT (pool_address)
			DO UPDATE SET
				authority = EXCLUDED.authority,
				fee_bp = EXCLUDED.fee_bp,
				declared_supply = EXCLUDED.declared_supply,
				created_ts = LEAST(pools.created_ts, EXCLUDED.created_ts),
				updated_at = now()
		`,
			pool.Address,
			pool.Authority,
			pool.MintX,
			pool.MintY,
			pool.VaultX,
			pool.VaultY,
			pool.LPMint,
			int32(pool.FeeBP),
			numeric(pool.DeclaredSupply),
			int64(pool.CreatedAt),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutOperations appends journal entries. Records already stored under the
// same ID are left untouched.
func (s *Store) PutOperations(ctx context.Context, ops []model.OperationRecord) error {
	if len(ops) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, op := range ops {
		batch.Queue(`
			INSERT INTO pool_operations (
				id, pool_address, kind, user_address, asset_in, amount_x, amount_y, lp_amount,
				fee_x, fee_y, reserve_x, reserve_y, lp_supply, op_ts, recorded_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
			ON CONFLICT (id) DO NOTHING
		`,
			op.ID,
			op.Pool,
			string(op.Kind),
			op.User,
			op.AssetIn,
			numeric(op.AmountX),
			numeric(op.AmountY),
			numeric(op.LPAmount),
			numeric(op.FeeX),
			numeric(op.FeeY),
			numeric(op.ReserveX),
			numeric(op.ReserveY),
			numeric(op.LPSupply),
			int64(op.Timestamp),
			op.RecordedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range ops {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ScanOperations calls fn for every journal entry with a timestamp after
// afterTs, oldest first.
func (s *Store) ScanOperations(ctx context.Context, afterTs uint64, fn func(model.OperationRecord) error) error {
	rows, err := s.pool.Query(ctx, `
		SELECT id, pool_address, kind, user_address, asset_in,
			amount_x::text, amount_y::text, lp_amount::text, fee_x::text, fee_y::text,
			reserve_x::text, reserve_y::text, lp_supply::text, op_ts, recorded_at
		FROM pool_operations
		WHERE op_ts > $1
		ORDER BY op_ts, seq
	`, int64(afterTs))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			op      model.OperationRecord
			kind    string
			ts      int64
			amounts [8]string
		)
		if err := rows.Scan(
			&op.ID, &op.Pool, &kind, &op.User, &op.AssetIn,
			&amounts[0], &amounts[1], &amounts[2], &amounts[3], &amounts[4],
			&amounts[5], &amounts[6], &amounts[7], &ts, &op.RecordedAt,
		); err != nil {
			return err
		}
		op.Kind = model.OperationKind(kind)
		op.Timestamp = uint64(ts)
		targets := []*uint64{&op.AmountX, &op.AmountY, &op.LPAmount, &op.FeeX, &op.FeeY, &op.ReserveX, &op.ReserveY, &op.LPSupply}
		for i, text := range amounts {
			v, err := strconv.ParseUint(text, 10, 64)
			if err != nil {
				return fmt.Errorf("operation %s: parse amount: %w", op.ID, err)
			}
			*targets[i] = v
		}
		if err := fn(op); err != nil {
			return err
		}
	}
	return rows.Err()
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				pool_address, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, deposit_count, withdraw_count, volume_x, volume_y, fee_x, fee_y,
				reserve_x, reserve_y, lp_supply, fee_rate_x, fee_rate_y, apr, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,now(),now())
			ON CONFLICT (pool_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				deposit_count = EXCLUDED.deposit_count,
				withdraw_count = EXCLUDED.withdraw_count,
				volume_x = EXCLUDED.volume_x,
				volume_y = EXCLUDED.volume_y,
				fee_x = EXCLUDED.fee_x,
				fee_y = EXCLUDED.fee_y,
				reserve_x = EXCLUDED.reserve_x,
				reserve_y = EXCLUDED.reserve_y,
				lp_supply = EXCLUDED.lp_supply,
				fee_rate_x = EXCLUDED.fee_rate_x,
				fee_rate_y = EXCLUDED.fee_rate_y,
				apr = EXCLUDED.apr,
				updated_at = now()
		`,
			m.PoolAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.DepositCount),
			int64(m.WithdrawCount),
			m.VolumeX,
			m.VolumeY,
			m.FeeX,
			m.FeeY,
			m.ReserveX,
			m.ReserveY,
			numeric(m.LPSupply),
			m.FeeRateX,
			m.FeeRateY,
			m.APR,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadSnapshot returns the stored snapshot document for a pool.
func (s *Store) LoadSnapshot(ctx context.Context, pool string) ([]byte, bool, error) {
	if pool == "" {
		return nil, false, fmt.Errorf("pool address required")
	}
	var data []byte
	row := s.pool.QueryRow(ctx, `SELECT snapshot FROM pool_snapshots WHERE pool_address=$1`, pool)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// SaveSnapshot upserts the snapshot document for a pool.
func (s *Store) SaveSnapshot(ctx context.Context, pool string, data []byte) error {
	if pool == "" {
		return fmt.Errorf("pool address required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pool_snapshots (pool_address, snapshot, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (pool_address) DO UPDATE
		SET snapshot = EXCLUDED.snapshot, updated_at = now()
	`, pool, data)
	return err
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM aggregate_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO aggregate_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}
