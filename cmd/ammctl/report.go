package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammCore/internal/aggregate"
	"ammCore/internal/config"
	"ammCore/internal/storage/postgres"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate the operation journal into windowed pool metrics",
		RunE:  runReport,
	}

	cmd.Flags().String("in", "./data/operations.jsonl", "operation journal JSONL path")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN; read the journal from and write metrics to Postgres")
	cmd.Flags().String("out", "./data/pool_metrics.jsonl", "metrics JSONL output path")
	cmd.Flags().String("window", "1h", "window size (e.g. 1h, 24h)")
	cmd.Flags().String("state-file", "", "resume state file")
	cmd.Flags().String("recompute-from", "", "recompute windows from unix seconds or RFC3339")
	cmd.Flags().Uint8("decimals-x", 0, "decimals of asset X for formatted volumes")
	cmd.Flags().Uint8("decimals-y", 0, "decimals of asset Y for formatted volumes")
	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReport(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	window, err := time.ParseDuration(cfg.Window)
	if err != nil {
		return fmt.Errorf("invalid window: %w", err)
	}
	if window < time.Second {
		return fmt.Errorf("window must be at least 1s")
	}
	windowSeconds := uint64(window / time.Second)

	recomputeFrom, err := config.ParseTimestamp(cfg.RecomputeFrom)
	if err != nil {
		return fmt.Errorf("invalid recompute-from: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stateName := fmt.Sprintf("report:%d", windowSeconds)
	aggCfg := aggregate.Config{
		WindowSeconds: windowSeconds,
		BatchSize:     500,
		RecomputeFrom: recomputeFrom,
		DecimalsX:     cfg.DecimalsX,
		DecimalsY:     cfg.DecimalsY,
	}

	var (
		src  aggregate.Source
		sink aggregate.Sink
	)
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		src = store.ScanOperations
		sink = store
		aggCfg.StateStore = &aggregate.DBStateStore{Store: store, Name: stateName}
	} else {
		if cfg.Input == "" || cfg.Out == "" {
			return fmt.Errorf("in and out are required without pg-dsn")
		}
		src = aggregate.FileSource(cfg.Input)
		sink = &aggregate.JSONLSink{Path: cfg.Out}
		if cfg.StateFile != "" {
			aggCfg.StateStore = &aggregate.FileStateStore{Path: cfg.StateFile, Name: stateName}
		}
	}

	logger.Info("report starting",
		zap.String("window", window.String()),
		zap.Uint64("recompute_from", recomputeFrom),
		zap.Bool("postgres", cfg.PGDSN != ""),
	)
	if err := aggregate.NewAggregator(aggCfg, sink, logger).Run(ctx, src); err != nil {
		return err
	}
	logger.Info("report complete")
	return nil
}
