package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"ammCore/internal/amm"
	"ammCore/internal/model"
)

var (
	authority = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice     = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	bob       = common.HexToAddress("0x00000000000000000000000000000000000000e2")
)

func testParams() amm.PoolParams {
	return amm.PoolParams{
		Address:   common.HexToAddress("0x00000000000000000000000000000000000000a0"),
		Authority: authority,
		MintX:     common.HexToAddress("0x00000000000000000000000000000000000000b0"),
		MintY:     common.HexToAddress("0x00000000000000000000000000000000000000b1"),
		VaultX:    common.HexToAddress("0x00000000000000000000000000000000000000c0"),
		VaultY:    common.HexToAddress("0x00000000000000000000000000000000000000c1"),
		LPMint:    common.HexToAddress("0x00000000000000000000000000000000000000d0"),
		FeeBP:     30,
	}
}

type memJournal struct {
	mu   sync.Mutex
	ops  []model.OperationRecord
	fail error
}

func (j *memJournal) PutOperations(_ context.Context, ops []model.OperationRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.fail != nil {
		return j.fail
	}
	j.ops = append(j.ops, ops...)
	return nil
}

type memRegistry struct {
	pools []model.Pool
}

func (r *memRegistry) UpsertPools(_ context.Context, pools []model.Pool) error {
	r.pools = append(r.pools, pools...)
	return nil
}

type flakyStore struct {
	FileSnapshotStore
	fail bool
}

func (s *flakyStore) Save(ctx context.Context, snap Snapshot) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.FileSnapshotStore.Save(ctx, snap)
}

func newTestService(t *testing.T, store SnapshotStore, journal *memJournal) *PoolService {
	t.Helper()
	seq := 0
	opts := Options{
		Store: store,
		Now:   func() time.Time { return time.Unix(1_700_000_000, 0) },
		NewID: func() string {
			seq++
			return fmt.Sprintf("op-%d", seq)
		},
	}
	if journal != nil {
		opts.Journal = journal
	}
	svc, err := Open(context.Background(), opts)
	require.NoError(t, err)
	return svc
}

func fundedService(t *testing.T, store SnapshotStore, journal *memJournal) *PoolService {
	t.Helper()
	ctx := context.Background()
	svc := newTestService(t, store, journal)
	p := testParams()
	_, err := svc.Create(ctx, p)
	require.NoError(t, err)
	for _, user := range []common.Address{alice, bob} {
		require.NoError(t, svc.Fund(ctx, user, p.MintX, 1_000_000))
		require.NoError(t, svc.Fund(ctx, user, p.MintY, 4_000_000))
	}
	return svc
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	journal := &memJournal{}
	store := &FileSnapshotStore{Path: filepath.Join(t.TempDir(), "pool.json")}
	svc := fundedService(t, store, journal)
	p := testParams()

	dep, err := svc.Deposit(ctx, alice, 100_000, 400_000)
	require.NoError(t, err)
	require.Equal(t, uint64(200_000), dep.MintLP)
	require.Equal(t, uint64(200_000), svc.Balance(alice, p.LPMint))

	swap, err := svc.Swap(ctx, bob, 10_000, 1, true)
	require.NoError(t, err)
	require.Equal(t, uint64(30), swap.FeeDelta)
	require.Equal(t, uint64(1_000_000-10_000), svc.Balance(bob, p.MintX))
	require.Equal(t, uint64(4_000_000)+swap.AmountOut, svc.Balance(bob, p.MintY))

	wd, err := svc.Withdraw(ctx, alice, 200_000)
	require.NoError(t, err)
	require.Equal(t, uint64(110_000), wd.ReturnX)
	require.Equal(t, uint64(400_000)-swap.AmountOut, wd.ReturnY)

	reserves, err := svc.Reserves(ctx)
	require.NoError(t, err)
	require.Equal(t, amm.Reserves{}, reserves)

	pool, ok := svc.Pool()
	require.True(t, ok)
	require.Zero(t, pool.LPSupply)
	require.Equal(t, uint64(30), pool.FeeCollectedX)

	kinds := make([]model.OperationKind, 0, len(journal.ops))
	for _, op := range journal.ops {
		kinds = append(kinds, op.Kind)
	}
	require.Equal(t, []model.OperationKind{
		model.OperationCreate, model.OperationDeposit, model.OperationSwap, model.OperationWithdraw,
	}, kinds)

	swapRec := journal.ops[2]
	require.Equal(t, "op-3", swapRec.ID)
	require.Equal(t, model.AssetX, swapRec.AssetIn)
	require.Equal(t, uint64(10_000), swapRec.AmountX)
	require.Equal(t, swap.AmountOut, swapRec.AmountY)
	require.Equal(t, uint64(30), swapRec.FeeX)
	require.Equal(t, uint64(1_700_000_000), swapRec.Timestamp)
}

func TestServiceReopensFromSnapshot(t *testing.T) {
	ctx := context.Background()
	store := &FileSnapshotStore{Path: filepath.Join(t.TempDir(), "pool.json")}
	svc := fundedService(t, store, nil)
	_, err := svc.Deposit(ctx, alice, 100, 400)
	require.NoError(t, err)

	reopened := newTestService(t, store, nil)
	pool, ok := reopened.Pool()
	require.True(t, ok)
	require.Equal(t, uint64(200), pool.LPSupply)
	require.Equal(t, uint64(200), reopened.Balance(alice, testParams().LPMint))

	_, err = reopened.Withdraw(ctx, alice, 50)
	require.NoError(t, err)
}

func TestServiceRollsBackWhenPersistFails(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{FileSnapshotStore: FileSnapshotStore{Path: filepath.Join(t.TempDir(), "pool.json")}}
	journal := &memJournal{}
	svc := fundedService(t, store, journal)
	p := testParams()

	store.fail = true
	_, err := svc.Deposit(ctx, alice, 100, 400)
	require.Error(t, err)

	pool, _ := svc.Pool()
	require.Zero(t, pool.LPSupply)
	require.Zero(t, svc.Balance(alice, p.LPMint))
	require.Equal(t, uint64(1_000_000), svc.Balance(alice, p.MintX))
	require.Len(t, journal.ops, 1, "only the create is journaled")

	store.fail = false
	_, err = svc.Deposit(ctx, alice, 100, 400)
	require.NoError(t, err)
}

func TestServiceLocking(t *testing.T) {
	ctx := context.Background()
	store := &FileSnapshotStore{Path: filepath.Join(t.TempDir(), "pool.json")}
	journal := &memJournal{}
	svc := fundedService(t, store, journal)
	_, err := svc.Deposit(ctx, alice, 100_000, 400_000)
	require.NoError(t, err)

	_, err = svc.SetLocked(ctx, alice, true)
	require.ErrorIs(t, err, ErrUnauthorized)

	pool, err := svc.SetLocked(ctx, authority, true)
	require.NoError(t, err)
	require.True(t, pool.Locked)

	_, err = svc.Swap(ctx, bob, 10, 0, true)
	require.ErrorIs(t, err, amm.ErrPoolLocked)
	_, err = svc.Withdraw(ctx, alice, 10)
	require.ErrorIs(t, err, amm.ErrPoolLocked)
	_, err = svc.Deposit(ctx, bob, 10, 40)
	require.ErrorIs(t, err, amm.ErrPoolLocked)

	pool, err = svc.SetLocked(ctx, authority, false)
	require.NoError(t, err)
	require.False(t, pool.Locked)

	_, err = svc.Swap(ctx, bob, 10_000, 0, false)
	require.NoError(t, err)

	last := journal.ops[len(journal.ops)-1]
	require.Equal(t, model.OperationSwap, last.Kind)
	require.Equal(t, model.OperationUnlock, journal.ops[len(journal.ops)-2].Kind)
	require.Equal(t, model.OperationLock, journal.ops[len(journal.ops)-3].Kind)
}

func TestServiceRejectsBeforeCreate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &FileSnapshotStore{Path: filepath.Join(t.TempDir(), "pool.json")}, nil)

	_, err := svc.Deposit(ctx, alice, 1, 1)
	require.ErrorIs(t, err, ErrNoPool)
	_, err = svc.Swap(ctx, alice, 1, 0, true)
	require.ErrorIs(t, err, ErrNoPool)
	_, err = svc.SetLocked(ctx, authority, true)
	require.ErrorIs(t, err, ErrNoPool)
}

func TestServiceCreateValidation(t *testing.T) {
	ctx := context.Background()
	registry := &memRegistry{}
	svc, err := Open(ctx, Options{
		Store:    &FileSnapshotStore{Path: filepath.Join(t.TempDir(), "pool.json")},
		Registry: registry,
	})
	require.NoError(t, err)

	bad := testParams()
	bad.MintY = bad.MintX
	_, err = svc.Create(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidPoolConfig)

	bad = testParams()
	bad.FeeBP = amm.BasisPoints
	_, err = svc.Create(ctx, bad)
	require.ErrorIs(t, err, amm.ErrInvalidAmount)

	_, err = svc.Create(ctx, testParams())
	require.NoError(t, err)
	_, err = svc.Create(ctx, testParams())
	require.ErrorIs(t, err, ErrPoolExists)

	require.Len(t, registry.pools, 1)
	require.Equal(t, uint16(30), registry.pools[0].FeeBP)
}

func TestServiceJournalFailureKeepsCommit(t *testing.T) {
	ctx := context.Background()
	journal := &memJournal{}
	svc := fundedService(t, &FileSnapshotStore{Path: filepath.Join(t.TempDir(), "pool.json")}, journal)
	journal.fail = errors.New("journal offline")

	res, err := svc.Deposit(ctx, alice, 100, 400)
	require.NoError(t, err)
	pool, _ := svc.Pool()
	require.Equal(t, res.Pool.LPSupply, pool.LPSupply)
}

func TestServiceFundRejectsShareAsset(t *testing.T) {
	ctx := context.Background()
	svc := fundedService(t, &FileSnapshotStore{Path: filepath.Join(t.TempDir(), "pool.json")}, nil)
	err := svc.Fund(ctx, alice, testParams().LPMint, 1)
	require.Error(t, err)
}

func TestServiceFundRejectsVaults(t *testing.T) {
	ctx := context.Background()
	store := &FileSnapshotStore{Path: filepath.Join(t.TempDir(), "pool.json")}
	svc := fundedService(t, store, nil)
	p := testParams()

	require.ErrorIs(t, svc.Fund(ctx, p.VaultX, p.MintX, 5), ErrVaultAccount)
	require.ErrorIs(t, svc.Fund(ctx, p.VaultY, p.MintX, 5), ErrVaultAccount)
	require.Zero(t, svc.Balance(p.VaultX, p.MintX))

	res, err := svc.Deposit(ctx, alice, 100, 400)
	require.NoError(t, err)
	require.Equal(t, uint64(200), res.MintLP)
}

func TestServiceCreateRejectsPrefundedAccounts(t *testing.T) {
	ctx := context.Background()
	p := testParams()

	cases := []struct {
		name   string
		holder common.Address
		asset  common.Address
	}{
		{"lp mint holder", alice, p.LPMint},
		{"vault x", p.VaultX, p.MintX},
		{"vault y", p.VaultY, p.MintY},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &FileSnapshotStore{Path: filepath.Join(t.TempDir(), "pool.json")}
			svc := newTestService(t, store, nil)
			require.NoError(t, svc.Fund(ctx, tc.holder, tc.asset, 1_000))

			_, err := svc.Create(ctx, p)
			require.ErrorIs(t, err, ErrInvalidPoolConfig)
			_, ok := svc.Pool()
			require.False(t, ok)

			reopened := newTestService(t, store, nil)
			require.Equal(t, uint64(1_000), reopened.Balance(tc.holder, tc.asset))
		})
	}
}
