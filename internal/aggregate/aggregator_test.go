package aggregate

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"ammCore/internal/model"
	"ammCore/internal/storage"
)

const (
	t0   = uint64(1_700_000_000)
	pool = "0x00000000000000000000000000000000000000a0"
)

func writeJournal(t *testing.T, ops []model.OperationRecord) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "operations.jsonl")
	if err := storage.NewJsonlStorage(path).PutOperations(context.Background(), ops); err != nil {
		t.Fatalf("write journal: %v", err)
	}
	return path
}

func sampleJournal() []model.OperationRecord {
	return []model.OperationRecord{
		{ID: "1", Pool: pool, Kind: model.OperationCreate, Timestamp: t0},
		{ID: "2", Pool: pool, Kind: model.OperationDeposit, AmountX: 100_000, AmountY: 400_000, LPAmount: 200_000,
			ReserveX: 100_000, ReserveY: 400_000, LPSupply: 200_000, Timestamp: t0 + 10},
		{ID: "3", Pool: pool, Kind: model.OperationSwap, AssetIn: model.AssetX, AmountX: 10_000, AmountY: 36_265, FeeX: 30,
			ReserveX: 110_000, ReserveY: 363_735, LPSupply: 200_000, Timestamp: t0 + 20},
		{ID: "4", Pool: pool, Kind: model.OperationSwap, AssetIn: "", AmountX: 1, Timestamp: t0 + 30},
		{ID: "5", Pool: pool, Kind: model.OperationSwap, AssetIn: model.AssetY, AmountY: 10_000, AmountX: 2_900, FeeY: 30,
			ReserveX: 107_100, ReserveY: 373_735, LPSupply: 200_000, Timestamp: t0 + 3_600},
	}
}

func TestAggregatorWindows(t *testing.T) {
	path := writeJournal(t, sampleJournal())
	sink := &JSONLSink{Path: filepath.Join(t.TempDir(), "metrics.jsonl")}
	agg := NewAggregator(Config{WindowSeconds: 3600}, sink, nil)

	if err := agg.Run(context.Background(), FileSource(path)); err != nil {
		t.Fatalf("run: %v", err)
	}

	metrics := sink.Metrics()
	if len(metrics) != 2 {
		t.Fatalf("got %d windows, want 2", len(metrics))
	}

	first := metrics[0]
	if first.WindowStart.Unix() != int64(t0-t0%3600) {
		t.Fatalf("first window start %v", first.WindowStart)
	}
	if first.SwapCount != 1 || first.DepositCount != 1 || first.WithdrawCount != 0 {
		t.Fatalf("unexpected counts %+v", first)
	}
	if first.VolumeX != "10000" || first.VolumeY != "36265" || first.FeeX != "30" || first.FeeY != "0" {
		t.Fatalf("unexpected volumes %+v", first)
	}
	if first.ReserveX == nil || *first.ReserveX != "110000" || *first.ReserveY != "363735" {
		t.Fatalf("unexpected closing reserves %+v", first)
	}
	if first.FeeRateX == nil || first.FeeRateY != nil || first.APR == nil {
		t.Fatalf("unexpected rates %+v", first)
	}

	second := metrics[1]
	if second.SwapCount != 1 || second.FeeY != "30" || second.VolumeX != "2900" {
		t.Fatalf("unexpected second window %+v", second)
	}
	if second.LPSupply != 200_000 {
		t.Fatalf("lp supply %d", second.LPSupply)
	}
}

func TestAggregatorResumesFromState(t *testing.T) {
	ctx := context.Background()
	path := writeJournal(t, sampleJournal())
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "state.json"), Name: "report:3600"}

	first := &JSONLSink{Path: filepath.Join(t.TempDir(), "a.jsonl")}
	if err := NewAggregator(Config{WindowSeconds: 3600, StateStore: state}, first, nil).Run(ctx, FileSource(path)); err != nil {
		t.Fatalf("first run: %v", err)
	}
	lastWindow := (t0 + 3_600) - (t0+3_600)%3_600
	last, ok, err := state.Load(ctx)
	if err != nil || !ok || last != lastWindow-1 {
		t.Fatalf("state after first run: %d %v %v", last, ok, err)
	}

	// The last window stays open, so a resumed run recomputes only it.
	second := &JSONLSink{Path: filepath.Join(t.TempDir(), "b.jsonl")}
	if err := NewAggregator(Config{WindowSeconds: 3600, StateStore: state}, second, nil).Run(ctx, FileSource(path)); err != nil {
		t.Fatalf("second run: %v", err)
	}
	resumed := second.Metrics()
	if len(resumed) != 1 || resumed[0].WindowStart.Unix() != int64(lastWindow) || resumed[0].SwapCount != 1 {
		t.Fatalf("resumed run produced %+v", resumed)
	}

	other := &FileStateStore{Path: state.Path, Name: "report:60"}
	if _, ok, _ := other.Load(ctx); ok {
		t.Fatalf("state for another window size should be ignored")
	}

	third := &JSONLSink{Path: filepath.Join(t.TempDir(), "c.jsonl")}
	cfg := Config{WindowSeconds: 3600, StateStore: state, RecomputeFrom: t0 + 3_600}
	if err := NewAggregator(cfg, third, nil).Run(ctx, FileSource(path)); err != nil {
		t.Fatalf("recompute run: %v", err)
	}
	if n := len(third.Metrics()); n != 1 {
		t.Fatalf("recompute produced %d windows, want 1", n)
	}
}

func TestAccumulatorRejectsUnknownKind(t *testing.T) {
	acc := NewAccumulator(pool, 0, 60)
	if err := acc.AddOperation(model.OperationRecord{ID: "x", Kind: "mint"}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if err := acc.AddOperation(model.OperationRecord{ID: "y", Kind: model.OperationLock, ReserveX: 5, Timestamp: 3}); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := acc.AddOperation(model.OperationRecord{ID: "z", Kind: model.OperationUnlock, ReserveX: 9, Timestamp: 1}); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if acc.ReserveX != 5 {
		t.Fatalf("older record replaced closing reserves: %d", acc.ReserveX)
	}
}

func TestComputeAPR(t *testing.T) {
	year := uint64(365 * 24 * 3600)
	apr := computeAPR(big.NewInt(1), big.NewInt(0), big.NewInt(100), big.NewInt(100), year)
	if apr == nil || *apr != "0.005000000000000000" {
		t.Fatalf("apr = %v", apr)
	}
	apr = computeAPR(big.NewInt(1), big.NewInt(3), big.NewInt(100), big.NewInt(300), year/2)
	if apr == nil || *apr != "0.020000000000000000" {
		t.Fatalf("apr = %v", apr)
	}
	if computeAPR(big.NewInt(1), nil, big.NewInt(0), big.NewInt(1), year) != nil {
		t.Fatalf("expected nil apr for empty reserves")
	}
}

func TestFormatTokenAmount(t *testing.T) {
	if got := formatTokenAmount(big.NewInt(1_234_567), 6); got != "1.234567" {
		t.Fatalf("got %s", got)
	}
	if got := formatTokenAmount(big.NewInt(-5), 2); got != "-0.05" {
		t.Fatalf("got %s", got)
	}
	if got := formatTokenAmount(nil, 2); got != "0" {
		t.Fatalf("got %s", got)
	}
}

func TestJSONLSinkMergesExistingRows(t *testing.T) {
	ctx := context.Background()
	path := writeJournal(t, sampleJournal())
	out := filepath.Join(t.TempDir(), "metrics.jsonl")

	if err := NewAggregator(Config{WindowSeconds: 3600}, &JSONLSink{Path: out}, nil).Run(ctx, FileSource(path)); err != nil {
		t.Fatalf("first run: %v", err)
	}

	sink := &JSONLSink{Path: out}
	cfg := Config{WindowSeconds: 3600, RecomputeFrom: t0 + 3_600}
	if err := NewAggregator(cfg, sink, nil).Run(ctx, FileSource(path)); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if n := len(sink.Metrics()); n != 2 {
		t.Fatalf("got %d windows after merge, want 2", n)
	}
}
