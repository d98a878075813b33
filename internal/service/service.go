package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ammCore/internal/amm"
	"ammCore/internal/ledger"
	"ammCore/internal/model"
	"ammCore/internal/storage"
)

var (
	ErrNoPool            = errors.New("service: pool has not been created")
	ErrPoolExists        = errors.New("service: pool already created")
	ErrUnauthorized      = errors.New("service: signer is not the pool authority")
	ErrInvalidPoolConfig = errors.New("service: invalid pool configuration")
	ErrVaultAccount      = errors.New("service: pool vaults can only be funded through deposits")
)

// PoolRegistry records pool configuration outside the snapshot.
type PoolRegistry interface {
	UpsertPools(ctx context.Context, pools []model.Pool) error
}

// Options wires a PoolService. Only Store is required.
type Options struct {
	Store    SnapshotStore
	Journal  storage.Storage
	Registry PoolRegistry
	Logger   *zap.Logger
	Now      func() time.Time
	NewID    func() string
}

// PoolService owns one pool and its custody ledger. Every operation runs as a
// single critical section: snapshot, compute, settle, persist, journal.
type PoolService struct {
	mu        sync.Mutex
	created   bool
	pool      amm.PoolState
	ledger    *ledger.Memory
	processor *amm.Processor

	store    SnapshotStore
	journal  storage.Storage
	registry PoolRegistry
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// Open restores the service from its snapshot store, or starts empty when no
// snapshot exists yet.
func Open(ctx context.Context, opts Options) (*PoolService, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("snapshot store is nil")
	}
	s := &PoolService{
		store:    opts.Store,
		journal:  opts.Journal,
		registry: opts.Registry,
		logger:   opts.Logger,
		now:      opts.Now,
		newID:    opts.NewID,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}

	snap, ok, err := opts.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		s.setLedger(ledger.NewMemory())
		return s, nil
	}

	restored, err := ledger.Restore(snap.Ledger)
	if err != nil {
		return nil, err
	}
	s.setLedger(restored)
	s.created = snap.Created
	s.pool = snap.Pool
	return s, nil
}

func (s *PoolService) setLedger(m *ledger.Memory) {
	s.ledger = m
	s.processor = amm.NewProcessor(m)
}

// Pool returns the current pool record and whether a pool exists.
func (s *PoolService) Pool() (amm.PoolState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool, s.created
}

// Reserves returns the current vault balances.
func (s *PoolService) Reserves(ctx context.Context) (amm.Reserves, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.created {
		return amm.Reserves{}, ErrNoPool
	}
	return s.processor.Snapshot(ctx, s.pool)
}

// Balance returns holder's balance of asset in the custody ledger.
func (s *PoolService) Balance(holder, asset common.Address) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.BalanceOf(holder, asset)
}

// Create initializes the pool. It can only run once per service.
func (s *PoolService) Create(ctx context.Context, params amm.PoolParams) (amm.PoolState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.created {
		return amm.PoolState{}, ErrPoolExists
	}
	if err := validateParams(params); err != nil {
		return amm.PoolState{}, err
	}
	if err := s.checkCustody(params); err != nil {
		return amm.PoolState{}, err
	}
	pool, err := amm.CreatePool(params)
	if err != nil {
		s.logger.Warn("create rejected", zap.Error(err))
		return amm.PoolState{}, err
	}

	s.created = true
	s.pool = pool
	if err := s.persist(ctx); err != nil {
		s.created = false
		s.pool = amm.PoolState{}
		return amm.PoolState{}, err
	}

	ts := s.now()
	if s.registry != nil {
		rec := model.Pool{
			Address:        pool.Address.Hex(),
			Authority:      pool.Authority.Hex(),
			MintX:          pool.MintX.Hex(),
			MintY:          pool.MintY.Hex(),
			VaultX:         pool.VaultX.Hex(),
			VaultY:         pool.VaultY.Hex(),
			LPMint:         pool.LPMint.Hex(),
			FeeBP:          pool.FeeBP,
			DeclaredSupply: pool.DeclaredSupply,
			CreatedAt:      uint64(ts.Unix()),
		}
		if err := s.registry.UpsertPools(ctx, []model.Pool{rec}); err != nil {
			s.logger.Error("register pool", zap.String("pool", pool.Address.Hex()), zap.Error(err))
		}
	}
	s.record(ctx, s.newRecord(model.OperationCreate, pool.Authority, ts))

	s.logger.Info("pool created",
		zap.String("pool", pool.Address.Hex()),
		zap.String("authority", pool.Authority.Hex()),
		zap.Uint16("fee_bp", pool.FeeBP),
		zap.Uint64("declared_supply", pool.DeclaredSupply),
	)
	return pool, nil
}

func validateParams(p amm.PoolParams) error {
	if p.MintX == p.MintY {
		return fmt.Errorf("%w: mint x and mint y must differ", ErrInvalidPoolConfig)
	}
	if p.LPMint == p.MintX || p.LPMint == p.MintY {
		return fmt.Errorf("%w: lp mint must differ from the pool assets", ErrInvalidPoolConfig)
	}
	if p.VaultX == p.VaultY {
		return fmt.Errorf("%w: vaults must differ", ErrInvalidPoolConfig)
	}
	if p.Authority == (common.Address{}) {
		return fmt.Errorf("%w: authority is required", ErrInvalidPoolConfig)
	}
	return nil
}

// checkCustody rejects a pool whose accounts already hold funds the pool did
// not put there: share units it never minted, or vault balances backed by no
// shares.
func (s *PoolService) checkCustody(p amm.PoolParams) error {
	if s.ledger.Holds(p.LPMint) {
		return fmt.Errorf("%w: lp mint %s already has holders", ErrInvalidPoolConfig, p.LPMint.Hex())
	}
	for _, vault := range []common.Address{p.VaultX, p.VaultY} {
		for _, asset := range []common.Address{p.MintX, p.MintY} {
			if s.ledger.BalanceOf(vault, asset) > 0 {
				return fmt.Errorf("%w: vault %s already holds %s", ErrInvalidPoolConfig, vault.Hex(), asset.Hex())
			}
		}
	}
	return nil
}

// Fund credits holder with amount of asset from outside the pool.
func (s *PoolService) Fund(ctx context.Context, holder, asset common.Address, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.created {
		if asset == s.pool.LPMint {
			return fmt.Errorf("%w: %s", ledger.ErrShareAsset, asset.Hex())
		}
		if holder == s.pool.VaultX || holder == s.pool.VaultY {
			return fmt.Errorf("%w: %s", ErrVaultAccount, holder.Hex())
		}
	}
	prev := s.ledger.Snapshot()
	if err := s.ledger.Credit(holder, asset, amount); err != nil {
		return err
	}
	if err := s.persist(ctx); err != nil {
		s.rollback(prev)
		return err
	}
	s.logger.Info("funded",
		zap.String("holder", holder.Hex()),
		zap.String("asset", asset.Hex()),
		zap.Uint64("amount", amount),
	)
	return nil
}

func (s *PoolService) Deposit(ctx context.Context, user common.Address, maxX, maxY uint64) (amm.DepositResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.created {
		return amm.DepositResult{}, ErrNoPool
	}
	prev := s.ledger.Snapshot()
	res, err := s.processor.Deposit(ctx, s.pool, user, maxX, maxY)
	if err != nil {
		s.logger.Warn("deposit rejected",
			zap.String("user", user.Hex()),
			zap.Uint64("max_x", maxX),
			zap.Uint64("max_y", maxY),
			zap.Error(err),
		)
		return amm.DepositResult{}, err
	}
	if err := s.commit(ctx, res.Pool, prev); err != nil {
		return amm.DepositResult{}, err
	}

	rec := s.newRecord(model.OperationDeposit, user, s.now())
	rec.AmountX, rec.AmountY, rec.LPAmount = res.DebitX, res.DebitY, res.MintLP
	rec.ReserveX, rec.ReserveY = res.After.X, res.After.Y
	s.record(ctx, rec)

	s.logger.Info("deposit",
		zap.String("user", user.Hex()),
		zap.Uint64("debit_x", res.DebitX),
		zap.Uint64("debit_y", res.DebitY),
		zap.Uint64("minted", res.MintLP),
		zap.Bool("initial", res.Initial),
		zap.Uint64("lp_supply", res.Pool.LPSupply),
	)
	return res, nil
}

func (s *PoolService) Swap(ctx context.Context, user common.Address, amountIn, amountOutMin uint64, assetIsX bool) (amm.SwapResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.created {
		return amm.SwapResult{}, ErrNoPool
	}
	prev := s.ledger.Snapshot()
	res, err := s.processor.Swap(ctx, s.pool, user, amountIn, amountOutMin, assetIsX)
	if err != nil {
		s.logger.Warn("swap rejected",
			zap.String("user", user.Hex()),
			zap.String("asset_in", assetName(assetIsX)),
			zap.Uint64("amount_in", amountIn),
			zap.Uint64("amount_out_min", amountOutMin),
			zap.Error(err),
		)
		return amm.SwapResult{}, err
	}
	if err := s.commit(ctx, res.Pool, prev); err != nil {
		return amm.SwapResult{}, err
	}

	rec := s.newRecord(model.OperationSwap, user, s.now())
	rec.AssetIn = assetName(assetIsX)
	if assetIsX {
		rec.AmountX, rec.AmountY, rec.FeeX = res.AmountIn, res.AmountOut, res.FeeDelta
	} else {
		rec.AmountY, rec.AmountX, rec.FeeY = res.AmountIn, res.AmountOut, res.FeeDelta
	}
	rec.ReserveX, rec.ReserveY = res.After.X, res.After.Y
	s.record(ctx, rec)

	s.logger.Info("swap",
		zap.String("user", user.Hex()),
		zap.String("asset_in", rec.AssetIn),
		zap.Uint64("amount_in", res.AmountIn),
		zap.Uint64("amount_out", res.AmountOut),
		zap.Uint64("fee", res.FeeDelta),
	)
	return res, nil
}

func (s *PoolService) Withdraw(ctx context.Context, user common.Address, lpAmount uint64) (amm.WithdrawResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.created {
		return amm.WithdrawResult{}, ErrNoPool
	}
	prev := s.ledger.Snapshot()
	res, err := s.processor.Withdraw(ctx, s.pool, user, lpAmount)
	if err != nil {
		s.logger.Warn("withdraw rejected",
			zap.String("user", user.Hex()),
			zap.Uint64("lp_amount", lpAmount),
			zap.Error(err),
		)
		return amm.WithdrawResult{}, err
	}
	if err := s.commit(ctx, res.Pool, prev); err != nil {
		return amm.WithdrawResult{}, err
	}

	rec := s.newRecord(model.OperationWithdraw, user, s.now())
	rec.AmountX, rec.AmountY, rec.LPAmount = res.ReturnX, res.ReturnY, res.BurnLP
	rec.ReserveX, rec.ReserveY = res.After.X, res.After.Y
	s.record(ctx, rec)

	s.logger.Info("withdraw",
		zap.String("user", user.Hex()),
		zap.Uint64("burned", res.BurnLP),
		zap.Uint64("return_x", res.ReturnX),
		zap.Uint64("return_y", res.ReturnY),
		zap.Uint64("lp_supply", res.Pool.LPSupply),
	)
	return res, nil
}

// SetLocked locks or unlocks the pool. Only the pool authority may do this.
func (s *PoolService) SetLocked(ctx context.Context, signer common.Address, locked bool) (amm.PoolState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.created {
		return amm.PoolState{}, ErrNoPool
	}
	if signer != s.pool.Authority {
		s.logger.Warn("lock change rejected", zap.String("signer", signer.Hex()), zap.Bool("locked", locked))
		return amm.PoolState{}, fmt.Errorf("%w: %s", ErrUnauthorized, signer.Hex())
	}
	if s.pool.Locked == locked {
		return s.pool, nil
	}

	next := s.pool
	next.Locked = locked
	if err := s.commit(ctx, next, s.ledger.Snapshot()); err != nil {
		return amm.PoolState{}, err
	}

	kind := model.OperationUnlock
	if locked {
		kind = model.OperationLock
	}
	rec := s.newRecord(kind, signer, s.now())
	if reserves, err := s.processor.Snapshot(ctx, s.pool); err == nil {
		rec.ReserveX, rec.ReserveY = reserves.X, reserves.Y
	}
	s.record(ctx, rec)

	s.logger.Info("lock changed", zap.String("pool", s.pool.Address.Hex()), zap.Bool("locked", locked))
	return s.pool, nil
}

// commit installs next as the pool record and persists the snapshot. When
// persisting fails the ledger and pool are put back to their prior state.
func (s *PoolService) commit(ctx context.Context, next amm.PoolState, prev ledger.State) error {
	old := s.pool
	s.pool = next
	if err := s.persist(ctx); err != nil {
		s.pool = old
		s.rollback(prev)
		return err
	}
	return nil
}

func (s *PoolService) rollback(prev ledger.State) {
	restored, err := ledger.Restore(prev)
	if err != nil {
		s.logger.Error("restore ledger", zap.Error(err))
		return
	}
	s.setLedger(restored)
}

func (s *PoolService) persist(ctx context.Context) error {
	snap := Snapshot{
		Version:   snapshotVersion,
		Created:   s.created,
		Pool:      s.pool,
		Ledger:    s.ledger.Snapshot(),
		UpdatedAt: s.now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.store.Save(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *PoolService) newRecord(kind model.OperationKind, user common.Address, ts time.Time) model.OperationRecord {
	return model.OperationRecord{
		ID:         s.newID(),
		Pool:       strings.ToLower(s.pool.Address.Hex()),
		Kind:       kind,
		User:       user.Hex(),
		LPSupply:   s.pool.LPSupply,
		Timestamp:  uint64(ts.Unix()),
		RecordedAt: ts.UTC().Format(time.RFC3339Nano),
	}
}

// record appends rec to the journal. The operation is already committed, so
// a journal failure is logged and not returned.
func (s *PoolService) record(ctx context.Context, rec model.OperationRecord) {
	if s.journal == nil {
		return
	}
	if err := s.journal.PutOperations(ctx, []model.OperationRecord{rec}); err != nil {
		s.logger.Error("journal operation", zap.String("id", rec.ID), zap.String("kind", string(rec.Kind)), zap.Error(err))
	}
}

func assetName(isX bool) string {
	if isX {
		return model.AssetX
	}
	return model.AssetY
}
