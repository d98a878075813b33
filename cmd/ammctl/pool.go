package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammCore/internal/amm"
	"ammCore/internal/config"
	"ammCore/internal/service"
	"ammCore/internal/storage"
	"ammCore/internal/storage/postgres"
)

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("state-file", "./data/pool.json", "pool snapshot file")
	cmd.Flags().String("journal", "./data/operations.jsonl", "operation journal JSONL path")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN; replaces the snapshot file and journal when set")
	cmd.Flags().String("pool", "default", "snapshot key in Postgres")
}

// poolRun is the per-command environment of a pool command.
type poolRun struct {
	ctx     context.Context
	svc     *service.PoolService
	cleanup func()
}

func openPool(cmd *cobra.Command) (*poolRun, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	closers := []func(){stop, func() { _ = logger.Sync() }}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	opts := service.Options{Logger: logger}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			cleanup()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		opts.Store = &service.DBSnapshotStore{Store: store, Key: cfg.Pool}
		opts.Journal = store
		opts.Registry = store
		logger.Debug("pool store", zap.String("pg_dsn", redactDSN(cfg.PGDSN)), zap.String("pool", cfg.Pool))
	} else {
		opts.Store = &service.FileSnapshotStore{Path: cfg.StateFile}
		opts.Journal = storage.NewJsonlStorage(cfg.Journal)
		logger.Debug("pool store", zap.String("state_file", cfg.StateFile), zap.String("journal", cfg.Journal))
	}

	svc, err := service.Open(ctx, opts)
	if err != nil {
		cleanup()
		return nil, err
	}
	return &poolRun{ctx: ctx, svc: svc, cleanup: cleanup}, nil
}

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var params amm.PoolParams
			fields := []struct {
				flag   string
				target *common.Address
			}{
				{"address", &params.Address},
				{"authority", &params.Authority},
				{"mint-x", &params.MintX},
				{"mint-y", &params.MintY},
				{"vault-x", &params.VaultX},
				{"vault-y", &params.VaultY},
				{"lp-mint", &params.LPMint},
			}
			for _, f := range fields {
				value, _ := cmd.Flags().GetString(f.flag)
				addr, err := parseAddress(f.flag, value)
				if err != nil {
					return err
				}
				*f.target = addr
			}
			params.FeeBP, _ = cmd.Flags().GetUint16("fee-bp")
			params.DeclaredSupply, _ = cmd.Flags().GetUint64("lp-supply")

			run, err := openPool(cmd)
			if err != nil {
				return err
			}
			defer run.cleanup()

			pool, err := run.svc.Create(run.ctx, params)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), pool)
		},
	}
	for _, name := range []string{"address", "authority", "mint-x", "mint-y", "vault-x", "vault-y", "lp-mint"} {
		cmd.Flags().String(name, "", name+" address")
	}
	cmd.Flags().Uint16("fee-bp", 30, "swap fee in basis points")
	cmd.Flags().Uint64("lp-supply", 0, "declared share supply, recorded only")
	addStoreFlags(cmd)
	return cmd
}

func newFundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fund",
		Short: "Credit an account with pool assets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			holderStr, _ := cmd.Flags().GetString("holder")
			holder, err := parseAddress("holder", holderStr)
			if err != nil {
				return err
			}
			assetStr, _ := cmd.Flags().GetString("asset")
			amount, _ := cmd.Flags().GetUint64("amount")

			run, err := openPool(cmd)
			if err != nil {
				return err
			}
			defer run.cleanup()

			pool, ok := run.svc.Pool()
			if !ok {
				return service.ErrNoPool
			}
			asset := pool.MintY
			if isX, err := parseAsset(assetStr); err != nil {
				return err
			} else if isX {
				asset = pool.MintX
			}
			if err := run.svc.Fund(run.ctx, holder, asset, amount); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"holder":  holder,
				"asset":   asset,
				"balance": run.svc.Balance(holder, asset),
			})
		},
	}
	cmd.Flags().String("holder", "", "account to credit")
	cmd.Flags().String("asset", "x", "asset to credit (x or y)")
	cmd.Flags().Uint64("amount", 0, "amount to credit")
	addStoreFlags(cmd)
	return cmd
}

func newDepositCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Provide liquidity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userStr, _ := cmd.Flags().GetString("user")
			user, err := parseAddress("user", userStr)
			if err != nil {
				return err
			}
			maxX, _ := cmd.Flags().GetUint64("max-x")
			maxY, _ := cmd.Flags().GetUint64("max-y")

			run, err := openPool(cmd)
			if err != nil {
				return err
			}
			defer run.cleanup()

			res, err := run.svc.Deposit(run.ctx, user, maxX, maxY)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"debit_x":   res.DebitX,
				"debit_y":   res.DebitY,
				"minted":    res.MintLP,
				"lp_supply": res.Pool.LPSupply,
				"reserves":  res.After,
			})
		},
	}
	cmd.Flags().String("user", "", "depositor")
	cmd.Flags().Uint64("max-x", 0, "maximum X to deposit")
	cmd.Flags().Uint64("max-y", 0, "maximum Y to deposit")
	addStoreFlags(cmd)
	return cmd
}

func newSwapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Swap one pool asset for the other",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userStr, _ := cmd.Flags().GetString("user")
			user, err := parseAddress("user", userStr)
			if err != nil {
				return err
			}
			assetStr, _ := cmd.Flags().GetString("asset")
			assetIsX, err := parseAsset(assetStr)
			if err != nil {
				return err
			}
			amountIn, _ := cmd.Flags().GetUint64("amount-in")
			minOut, _ := cmd.Flags().GetUint64("min-out")

			run, err := openPool(cmd)
			if err != nil {
				return err
			}
			defer run.cleanup()

			res, err := run.svc.Swap(run.ctx, user, amountIn, minOut, assetIsX)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"amount_in":  res.AmountIn,
				"amount_out": res.AmountOut,
				"fee":        res.FeeDelta,
				"reserves":   res.After,
			})
		},
	}
	cmd.Flags().String("user", "", "trader")
	cmd.Flags().String("asset", "x", "input asset (x or y)")
	cmd.Flags().Uint64("amount-in", 0, "input amount, fee included")
	cmd.Flags().Uint64("min-out", 0, "minimum acceptable output")
	addStoreFlags(cmd)
	return cmd
}

func newWithdrawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Burn shares for both pool assets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userStr, _ := cmd.Flags().GetString("user")
			user, err := parseAddress("user", userStr)
			if err != nil {
				return err
			}
			lpAmount, _ := cmd.Flags().GetUint64("lp-amount")

			run, err := openPool(cmd)
			if err != nil {
				return err
			}
			defer run.cleanup()

			res, err := run.svc.Withdraw(run.ctx, user, lpAmount)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"burned":    res.BurnLP,
				"return_x":  res.ReturnX,
				"return_y":  res.ReturnY,
				"lp_supply": res.Pool.LPSupply,
				"reserves":  res.After,
			})
		},
	}
	cmd.Flags().String("user", "", "share holder")
	cmd.Flags().Uint64("lp-amount", 0, "shares to burn")
	addStoreFlags(cmd)
	return cmd
}

func newLockCmd(locked bool) *cobra.Command {
	use, short := "unlock", "Unlock the pool"
	if locked {
		use, short = "lock", "Lock the pool"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			signerStr, _ := cmd.Flags().GetString("signer")
			signer, err := parseAddress("signer", signerStr)
			if err != nil {
				return err
			}

			run, err := openPool(cmd)
			if err != nil {
				return err
			}
			defer run.cleanup()

			pool, err := run.svc.SetLocked(run.ctx, signer, locked)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), pool)
		},
	}
	cmd.Flags().String("signer", "", "pool authority")
	addStoreFlags(cmd)
	return cmd
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the pool, its reserves and optional holder balances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			holders, _ := cmd.Flags().GetStringSlice("holder")

			run, err := openPool(cmd)
			if err != nil {
				return err
			}
			defer run.cleanup()

			pool, ok := run.svc.Pool()
			if !ok {
				return service.ErrNoPool
			}
			reserves, err := run.svc.Reserves(run.ctx)
			if err != nil {
				return err
			}

			balances := make(map[string]map[string]uint64, len(holders))
			for _, h := range holders {
				holder, err := parseAddress("holder", h)
				if err != nil {
					return err
				}
				balances[holder.Hex()] = map[string]uint64{
					"x":  run.svc.Balance(holder, pool.MintX),
					"y":  run.svc.Balance(holder, pool.MintY),
					"lp": run.svc.Balance(holder, pool.LPMint),
				}
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"pool":     pool,
				"reserves": reserves,
				"balances": balances,
			})
		},
	}
	cmd.Flags().StringSlice("holder", nil, "accounts to include (comma-separated)")
	addStoreFlags(cmd)
	return cmd
}
