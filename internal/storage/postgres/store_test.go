package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"ammCore/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("AMM_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("AMM_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return store
}

func TestNewStoreRequiresDSN(t *testing.T) {
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestOperationsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	pool := "pool-" + uuid.NewString()
	ts := uint64(time.Now().Unix())

	ops := []model.OperationRecord{
		{ID: uuid.NewString(), Pool: pool, Kind: model.OperationDeposit, AmountX: 100, AmountY: 400, LPAmount: 200, ReserveX: 100, ReserveY: 400, LPSupply: 200, Timestamp: ts},
		{ID: uuid.NewString(), Pool: pool, Kind: model.OperationSwap, AssetIn: model.AssetX, AmountX: ^uint64(0), AmountY: 1, Timestamp: ts + 1},
	}
	if err := store.PutOperations(ctx, ops); err != nil {
		t.Fatalf("put operations: %v", err)
	}
	if err := store.PutOperations(ctx, ops[:1]); err != nil {
		t.Fatalf("put duplicate: %v", err)
	}

	var got []model.OperationRecord
	err := store.ScanOperations(ctx, ts-1, func(op model.OperationRecord) error {
		if op.Pool == pool {
			got = append(got, op)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d operations, want 2", len(got))
	}
	if got[0].LPAmount != 200 || got[1].AmountX != ^uint64(0) || got[1].Kind != model.OperationSwap {
		t.Fatalf("unexpected operations: %+v", got)
	}
}

func TestSnapshotAndState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	pool := "pool-" + uuid.NewString()

	if _, ok, err := store.LoadSnapshot(ctx, pool); err != nil || ok {
		t.Fatalf("expected missing snapshot, ok=%v err=%v", ok, err)
	}
	if err := store.SaveSnapshot(ctx, pool, []byte(`{"version":1}`)); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	if err := store.SaveSnapshot(ctx, pool, []byte(`{"version":2}`)); err != nil {
		t.Fatalf("overwrite snapshot: %v", err)
	}
	data, ok, err := store.LoadSnapshot(ctx, pool)
	if err != nil || !ok {
		t.Fatalf("load snapshot: ok=%v err=%v", ok, err)
	}
	if len(data) == 0 {
		t.Fatalf("empty snapshot")
	}

	name := "report:" + pool
	if err := store.SaveState(ctx, name, 42); err != nil {
		t.Fatalf("save state: %v", err)
	}
	ts, ok, err := store.LoadState(ctx, name)
	if err != nil || !ok || ts != 42 {
		t.Fatalf("load state: ts=%d ok=%v err=%v", ts, ok, err)
	}
}
