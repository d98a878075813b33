package aggregate

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"ammCore/internal/model"
	"ammCore/internal/storage"
)

// Source yields journal records with a timestamp after afterTs, oldest first.
type Source func(ctx context.Context, afterTs uint64, fn func(model.OperationRecord) error) error

// FileSource reads a JSONL journal.
func FileSource(path string) Source {
	return func(ctx context.Context, afterTs uint64, fn func(model.OperationRecord) error) error {
		return storage.ScanOperations(path, func(rec model.OperationRecord) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if rec.Timestamp <= afterTs {
				return nil
			}
			return fn(rec)
		})
	}
}

// Sink receives finished window metrics.
type Sink interface {
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	DecimalsX     uint8
	DecimalsY     uint8
	StateStore    StateStore
}

// Aggregator folds the operation journal into pool window metrics.
type Aggregator struct {
	cfg          Config
	sink         Sink
	logger       *zap.Logger
	accumulators map[string]*Accumulator
}

func NewAggregator(cfg Config, sink Sink, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		sink:         sink,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
	}
}

// Run aggregates every record src yields after the resume point.
func (a *Aggregator) Run(ctx context.Context, src Source) error {
	if a.sink == nil {
		return fmt.Errorf("sink is nil")
	}
	if src == nil {
		return fmt.Errorf("source is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	maxTs := startTs
	var total, windows, failed int

	err = src(ctx, startTs, func(rec model.OperationRecord) error {
		total++

		windowStart := windowStart(rec.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds

		accKey := poolKey(rec.Pool)
		acc := a.accumulators[accKey]
		if acc == nil {
			acc = NewAccumulator(accKey, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		} else if acc.WindowStart != windowStart {
			batch = append(batch, a.flushAccumulator(acc))
			windows++
			acc = NewAccumulator(accKey, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		}

		if err := acc.AddOperation(rec); err != nil {
			failed++
			a.logger.Warn("aggregate operation", zap.Error(err), zap.String("pool", rec.Pool), zap.String("kind", string(rec.Kind)))
			return nil
		}

		if rec.Timestamp > maxTs {
			maxTs = rec.Timestamp
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.sink.UpsertWindowMetrics(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]

			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Windows still open at the end of the journal are emitted now and
	// recomputed in full on the next run.
	resumeTs := maxTs
	if open := minOpenWindowStart(a.accumulators); open > 0 {
		resumeTs = open - 1
	}
	for _, acc := range a.accumulators {
		batch = append(batch, a.flushAccumulator(acc))
		windows++
	}
	a.accumulators = make(map[string]*Accumulator)

	if len(batch) > 0 {
		if err := a.sink.UpsertWindowMetrics(ctx, batch); err != nil {
			return err
		}
	}

	a.cfg.RecomputeFrom = resumeTs
	if err := a.saveState(ctx); err != nil {
		return err
	}

	a.logger.Info("report complete",
		zap.Int("total", total),
		zap.Int("windows", windows),
		zap.Int("failed", failed),
	)

	return nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.cfg.RecomputeFrom)
	}

	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs = safeTs - 1
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}

func (a *Aggregator) flushAccumulator(acc *Accumulator) model.PoolWindowMetrics {
	reserveX := new(big.Int).SetUint64(acc.ReserveX)
	reserveY := new(big.Int).SetUint64(acc.ReserveY)
	closingX := formatTokenAmount(reserveX, a.cfg.DecimalsX)
	closingY := formatTokenAmount(reserveY, a.cfg.DecimalsY)
	feeRateX, feeRateY := computeFeeRates(acc.FeeX, acc.FeeY, reserveX, reserveY)
	last := time.Unix(int64(acc.LastTS), 0).UTC()

	return model.PoolWindowMetrics{
		PoolAddress:    acc.PoolAddress,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		DepositCount:   acc.DepositCount,
		WithdrawCount:  acc.WithdrawCount,
		VolumeX:        formatTokenAmount(acc.VolumeX, a.cfg.DecimalsX),
		VolumeY:        formatTokenAmount(acc.VolumeY, a.cfg.DecimalsY),
		FeeX:           formatTokenAmount(acc.FeeX, a.cfg.DecimalsX),
		FeeY:           formatTokenAmount(acc.FeeY, a.cfg.DecimalsY),
		ReserveX:       &closingX,
		ReserveY:       &closingY,
		LPSupply:       acc.LPSupply,
		FeeRateX:       feeRateX,
		FeeRateY:       feeRateY,
		APR:            computeAPR(acc.FeeX, acc.FeeY, reserveX, reserveY, a.cfg.WindowSeconds),
		LastOperation:  &last,
	}
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func poolKey(address string) string {
	return strings.ToLower(address)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}
