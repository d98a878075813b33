package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammCore/internal/amm"
	"ammCore/internal/chain"
	"ammCore/internal/config"
)

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a swap against on-chain vault balances",
		RunE:  runQuote,
	}

	cmd.Flags().String("rpc", "", "RPC endpoint URL")
	for _, name := range []string{"mint-x", "mint-y", "vault-x", "vault-y", "lp-mint"} {
		cmd.Flags().String(name, "", name+" address")
	}
	cmd.Flags().Uint16("fee-bp", 30, "swap fee in basis points")
	cmd.Flags().Uint64("block", 0, "block to read at (0 = latest)")
	cmd.Flags().Int("max-retries", 3, "max retries per RPC call")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "base retry backoff")
	cmd.Flags().String("asset", "x", "input asset (x or y)")
	cmd.Flags().Uint64("amount-in", 0, "input amount, fee included")
	cmd.Flags().Uint64("min-out", 0, "minimum acceptable output")
	return cmd
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc is required")
	}
	if uint64(cfg.FeeBP) >= amm.BasisPoints {
		return amm.ErrInvalidFee
	}

	var pool amm.PoolState
	pool.FeeBP = cfg.FeeBP
	for _, f := range []struct {
		name  string
		value string
		out   *common.Address
	}{
		{"mint-x", cfg.MintX, &pool.MintX},
		{"mint-y", cfg.MintY, &pool.MintY},
		{"vault-x", cfg.VaultX, &pool.VaultX},
		{"vault-y", cfg.VaultY, &pool.VaultY},
		{"lp-mint", cfg.LPMint, &pool.LPMint},
	} {
		addr, err := parseAddress(f.name, f.value)
		if err != nil {
			return err
		}
		*f.out = addr
	}

	assetStr, _ := cmd.Flags().GetString("asset")
	assetIsX, err := parseAsset(assetStr)
	if err != nil {
		return err
	}
	amountIn, _ := cmd.Flags().GetUint64("amount-in")
	minOut, _ := cmd.Flags().GetUint64("min-out")

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.NewClient(ctx, cfg.RPCURL, chain.Options{
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	})
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}
	defer client.Close()

	reader := client.ReaderAt(cfg.Block)
	if cfg.Block == 0 {
		if reader, err = client.PinLatest(ctx); err != nil {
			return err
		}
	}

	res, err := reader.QuoteSwap(ctx, pool, amountIn, minOut, assetIsX)
	if err != nil {
		logger.Warn("quote rejected",
			zap.Uint64("block", reader.Block()),
			zap.Uint64("amount_in", amountIn),
			zap.Error(err),
		)
		return err
	}
	logger.Info("quote",
		zap.Uint64("block", reader.Block()),
		zap.String("asset_in", assetStr),
		zap.Uint64("amount_in", res.AmountIn),
		zap.Uint64("amount_out", res.AmountOut),
	)

	return printJSON(cmd.OutOrStdout(), map[string]interface{}{
		"block":      reader.Block(),
		"amount_in":  res.AmountIn,
		"amount_out": res.AmountOut,
		"fee":        res.FeeDelta,
		"reserves":   res.Before,
		"after":      res.After,
		"lp_supply":  res.Pool.LPSupply,
	})
}
