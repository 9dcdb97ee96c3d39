package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rangeHedger/internal/api"
	"rangeHedger/internal/chain"
	"rangeHedger/internal/config"
	"rangeHedger/internal/dex"
	"rangeHedger/internal/keeper"
	"rangeHedger/internal/metrics"
	"rangeHedger/internal/rangeorder"
	"rangeHedger/internal/scenario"
	"rangeHedger/internal/state"
	"rangeHedger/internal/state/sqlite"
	"rangeHedger/internal/storage"
	"rangeHedger/internal/storage/postgres"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the hedging engine with its HTTP API and keeper",
		RunE:  runServe,
	}

	cmd.Flags().String("rpc", "", "RPC URL of the live pool to shadow (optional)")
	cmd.Flags().Float64("rpc-rate", 10, "RPC requests per second (0 disables the limit)")
	cmd.Flags().String("pool", "", "live pool address")
	cmd.Flags().String("factory", "", "live factory address, used when --pool is empty")
	cmd.Flags().String("hedged", "", "hedged token address")
	cmd.Flags().String("reference", "", "reference token address")
	cmd.Flags().Uint8("hedged-decimals", 18, "hedged token decimals (read from chain when --rpc is set)")
	cmd.Flags().Uint8("reference-decimals", 6, "reference token decimals (read from chain when --rpc is set)")
	cmd.Flags().Uint32("pool-fee", 3000, "initial pool fee tier")
	cmd.Flags().StringSlice("fees", nil, "additional fee tiers to deploy (comma-separated)")
	cmd.Flags().String("price", "", "initial price in reference per hedged (defaults to the live price)")
	cmd.Flags().Int("range-width", 1, "range order width in tick spacings")
	cmd.Flags().Bool("only-authorized-fulfill", true, "restrict fulfill to managers")
	cmd.Flags().Bool("keeper-fulfill", false, "also let keepers fulfill while fulfill is restricted")
	cmd.Flags().Bool("auto-fulfill", true, "let the keeper fulfill filled orders")
	cmd.Flags().Duration("poll-interval", 15*time.Second, "keeper poll interval")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts for RPC reads")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("state", "./data/state.db", "state path (.json for a file store, otherwise sqlite)")
	cmd.Flags().String("journal", "./data/order_events.jsonl", "order event JSONL path (empty disables)")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for the order journal and state")
	cmd.Flags().String("listen", ":8080", "API listen address")
	cmd.Flags().String("metrics-listen", "", "separate metrics listen address (default: served on the API address)")
	cmd.Flags().StringSlice("api-token", nil, "API bearer tokens as token=address (comma-separated)")
	cmd.Flags().StringSlice("manager", nil, "extra manager addresses")
	cmd.Flags().StringSlice("guardian", nil, "extra guardian addresses")
	cmd.Flags().StringSlice("keeper", nil, "extra keeper addresses")
	cmd.Flags().String("custody-hedged", "0", "hedged amount minted to custody")
	cmd.Flags().String("custody-reference", "0", "reference amount minted to custody")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

// live is the read-only view of an on-chain pool the engine shadows.
type live struct {
	client *chain.Client
	pool   *dex.Pool
	oracle *dex.PoolOracle
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()

	pair, err := configPair(cfg)
	if err != nil {
		return err
	}

	var feed *live
	if cfg.RPCURL != "" {
		feed, err = connectLive(ctx, cfg, pair.HedgedToken, logger)
		if err != nil {
			return err
		}
		defer feed.client.Close()
		meta := feed.pool.Meta()
		if meta.Token0.Address != pair.ReferenceToken && meta.Token1.Address != pair.ReferenceToken {
			return fmt.Errorf("reference token %s is not in pool %s", pair.ReferenceToken.Hex(), meta.Address)
		}
		pair.HedgedDecimals, pair.ReferenceDecimals = meta.Token0.Decimals, meta.Token1.Decimals
		if meta.Token0.Address == pair.ReferenceToken {
			pair.HedgedDecimals, pair.ReferenceDecimals = meta.Token1.Decimals, meta.Token0.Decimals
		}
	}

	price, err := initialPrice(ctx, cfg, feed)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	warnStaleOrder(ctx, store, logger)

	journal := openJournal(cfg, store)

	custodyHedged, err := decimal.NewFromString(cfg.CustodyHedged)
	if err != nil {
		return fmt.Errorf("custody-hedged: %w", err)
	}
	custodyReference, err := decimal.NewFromString(cfg.CustodyReference)
	if err != nil {
		return fmt.Errorf("custody-reference: %w", err)
	}

	roles, err := extraRoles(cfg)
	if err != nil {
		return err
	}

	tokens, err := api.ParseTokens(cfg.APITokens)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		logger.Warn("no api tokens configured, mutations are disabled")
	}

	prom := metrics.NewPrometheus()
	opts := scenario.Options{
		Store:   store,
		Journal: journal,
		Metrics: prom.Metrics,
		Logger:  logger,
	}
	if feed != nil {
		opts.Oracle = feed.oracle
	}

	env, err := scenario.NewEnvironment(ctx, scenario.EnvConfig{
		Pair:                  pair,
		InitialPrice:          price,
		Fees:                  cfg.Fees,
		PoolFee:               cfg.PoolFee,
		RangeWidth:            cfg.RangeWidth,
		OnlyAuthorizedFulfill: cfg.OnlyAuthorizedFulfill,
		KeeperFulfill:         cfg.KeeperFulfill,
		ExtraRoles:            roles,
		CustodyHedged:         custodyHedged,
		CustodyReference:      custodyReference,
	}, opts)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	if cfg.AutoFulfill && env.Manager.OnlyAuthorizedFulfill() && !cfg.KeeperFulfill {
		logger.Warn("auto fulfill is on but fulfill is manager-only; set keeper-fulfill to let the keeper settle orders")
	}

	var source keeper.PriceSource
	var shadow keeper.Shadow
	if feed != nil {
		source, shadow = feed.pool, env.Factory
	}
	k := keeper.New(keeper.Config{
		PollInterval: cfg.PollInterval,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		AutoFulfill:  cfg.AutoFulfill,
		Caller:       env.Config.Accounts.Keeper,
	}, env.Manager, source, shadow, prom.Metrics, logger.Named("keeper"))

	mux := http.NewServeMux()
	mux.Handle("/v1/", api.NewServer(env.Controller, tokens, logger.Named("api")).Handler())
	servers := []*http.Server{{Addr: cfg.Listen, Handler: mux}}
	if cfg.MetricsListen == "" {
		mux.Handle("GET /metrics", prom.Handler())
	} else {
		servers = append(servers, &http.Server{Addr: cfg.MetricsListen, Handler: prom.Handler()})
	}

	logger.Info("hedger start",
		zap.String("engine", env.Config.Accounts.Engine.Hex()),
		zap.String("custody", env.Config.Accounts.Vault.Hex()),
		zap.String("hedged", pair.HedgedToken.Hex()),
		zap.String("reference", pair.ReferenceToken.Hex()),
		zap.String("price", price.String()),
		zap.Uint32("pool_fee", env.Manager.PoolFee()),
		zap.Bool("live", feed != nil),
		zap.String("listen", cfg.Listen),
		zap.Int("api_tokens", len(tokens)),
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		return k.Run(gctx)
	})

	err = g.Wait()
	logger.Info("hedger stop", zap.Error(err))
	return err
}

func configPair(cfg config.Config) (scenario.Pair, error) {
	hedged, err := parseAddress("hedged", cfg.HedgedToken)
	if err != nil {
		return scenario.Pair{}, err
	}
	reference, err := parseAddress("reference", cfg.ReferenceToken)
	if err != nil {
		return scenario.Pair{}, err
	}
	if hedged == reference {
		return scenario.Pair{}, fmt.Errorf("hedged and reference tokens must differ")
	}
	return scenario.Pair{
		HedgedToken:       hedged,
		ReferenceToken:    reference,
		HedgedDecimals:    cfg.HedgedDecimals,
		ReferenceDecimals: cfg.ReferenceDecimals,
	}, nil
}

func connectLive(ctx context.Context, cfg config.Config, hedged common.Address, logger *zap.Logger) (*live, error) {
	client, err := chain.NewClient(ctx, cfg.RPCURL, cfg.RPCRate)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	poolAddr, err := lookupLivePool(ctx, cfg, client, hedged)
	if err != nil {
		client.Close()
		return nil, err
	}
	pool, err := dex.NewPool(ctx, client, poolAddr, dex.NewTokenMetaCache(), logger.Named("dex"))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("load pool: %w", err)
	}
	conv, err := dex.ConverterFor(pool.Meta(), hedged)
	if err != nil {
		client.Close()
		return nil, err
	}
	return &live{client: client, pool: pool, oracle: dex.NewPoolOracle(pool, conv)}, nil
}

func lookupLivePool(ctx context.Context, cfg config.Config, client *chain.Client, hedged common.Address) (common.Address, error) {
	if cfg.PoolAddress != "" {
		return parseAddress("pool", cfg.PoolAddress)
	}
	if cfg.Factory == "" {
		return common.Address{}, fmt.Errorf("pool or factory address is required with --rpc")
	}
	factory, err := parseAddress("factory", cfg.Factory)
	if err != nil {
		return common.Address{}, err
	}
	reference, err := parseAddress("reference", cfg.ReferenceToken)
	if err != nil {
		return common.Address{}, err
	}
	return dex.LookupPool(ctx, client, factory, hedged, reference, cfg.PoolFee)
}

func initialPrice(ctx context.Context, cfg config.Config, feed *live) (decimal.Decimal, error) {
	if cfg.InitialPrice != "" {
		price, err := decimal.NewFromString(cfg.InitialPrice)
		if err != nil {
			return decimal.Zero, fmt.Errorf("price: %w", err)
		}
		return price, nil
	}
	if feed == nil {
		return decimal.Zero, fmt.Errorf("price is required without --rpc")
	}
	price, err := feed.oracle.Price(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("read live price: %w", err)
	}
	return price, nil
}

func openStore(ctx context.Context, cfg config.Config) (state.Store, error) {
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	}
	if strings.HasSuffix(cfg.StatePath, ".json") {
		return state.NewFileStore(cfg.StatePath), nil
	}
	if dir := filepath.Dir(cfg.StatePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	store, err := sqlite.New(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite state: %w", err)
	}
	return store, nil
}

// warnStaleOrder flags a persisted active order. serve deploys fresh simulated
// pools, so the engine drops that order and its escrow on start.
func warnStaleOrder(ctx context.Context, store state.Store, logger *zap.Logger) {
	snap, ok, err := state.LoadEngineSnapshot(ctx, store)
	if err != nil || !ok || !snap.Position.Active() {
		return
	}
	fields := []zap.Field{
		zap.Int("lower_tick", snap.Position.LowerTick),
		zap.Int("upper_tick", snap.Position.UpperTick),
		zap.String("direction", string(snap.Position.Direction)),
		zap.String("amount", bigString(snap.Position.Amount)),
	}
	if s, ok := store.(*sqlite.Store); ok {
		if at, ok, err := s.UpdatedAt(ctx, state.EngineSnapshotKey); err == nil && ok {
			fields = append(fields, zap.Time("snapshot_at", at))
		}
	}
	logger.Warn("persisted order cannot be restored into fresh simulated pools and will be dropped", fields...)
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// openJournal fans order events out to the JSONL file and, when the state
// store is Postgres, to its event table.
func openJournal(cfg config.Config, store state.Store) storage.Journal {
	var journal storage.Multi
	if cfg.JournalPath != "" {
		journal = append(journal, storage.NewJsonlStorage(cfg.JournalPath))
	}
	if pg, ok := store.(*postgres.Store); ok {
		journal = append(journal, pg)
	}
	if len(journal) == 0 {
		return nil
	}
	return journal
}

func extraRoles(cfg config.Config) (map[rangeorder.Role][]common.Address, error) {
	out := make(map[rangeorder.Role][]common.Address)
	for role, values := range map[rangeorder.Role][]string{
		rangeorder.RoleManager:  cfg.Managers,
		rangeorder.RoleGuardian: cfg.Guardians,
		rangeorder.RoleKeeper:   cfg.Keepers,
	} {
		addrs, err := parseAddresses(string(role), values)
		if err != nil {
			return nil, err
		}
		if len(addrs) > 0 {
			out[role] = addrs
		}
	}
	return out, nil
}
