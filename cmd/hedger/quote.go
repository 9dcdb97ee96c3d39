package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rangeHedger/internal/chain"
	"rangeHedger/internal/config"
	"rangeHedger/internal/dex"
)

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Read the live pool price for the hedged token",
		RunE:  runQuote,
	}

	cmd.Flags().String("rpc", "", "RPC URL")
	cmd.Flags().Float64("rpc-rate", 10, "RPC requests per second (0 disables the limit)")
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().String("factory", "", "factory address, used with --reference and --pool-fee when --pool is empty")
	cmd.Flags().String("hedged", "", "hedged token address")
	cmd.Flags().String("reference", "", "reference token address")
	cmd.Flags().Uint32("pool-fee", 3000, "pool fee tier")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

type quoteOutput struct {
	ChainID     string `json:"chain_id"`
	Block       uint64 `json:"block"`
	Pool        string `json:"pool"`
	Hedged      string `json:"hedged"`
	Reference   string `json:"reference"`
	Fee         uint32 `json:"fee"`
	TickSpacing int    `json:"tick_spacing"`
	Tick        int    `json:"tick"`
	SqrtPrice   string `json:"sqrt_price_x96"`
	Liquidity   string `json:"liquidity"`
	Price       string `json:"price"`
	Inverted    bool   `json:"inverted"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
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

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	hedged, err := parseAddress("hedged", cfg.HedgedToken)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	client, err := chain.NewClient(ctx, cfg.RPCURL, cfg.RPCRate)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	poolAddr, err := resolvePool(cmd, cfg, client, hedged)
	if err != nil {
		return err
	}

	pool, err := dex.NewPool(ctx, client, poolAddr, dex.NewTokenMetaCache(), logger)
	if err != nil {
		return fmt.Errorf("load pool: %w", err)
	}
	conv, err := dex.ConverterFor(pool.Meta(), hedged)
	if err != nil {
		return err
	}
	snap, err := pool.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("read pool: %w", err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}
	block, err := client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("block number: %w", err)
	}

	hedgedMeta, referenceMeta := snap.Token0, snap.Token1
	if conv.Inverted() {
		hedgedMeta, referenceMeta = snap.Token1, snap.Token0
	}
	out := quoteOutput{
		ChainID:     chainID.String(),
		Block:       block,
		Pool:        pool.Address().Hex(),
		Hedged:      hedgedMeta.Label(),
		Reference:   referenceMeta.Label(),
		Fee:         snap.Fee,
		TickSpacing: snap.TickSpacing,
		Tick:        snap.Slot0.Tick,
		SqrtPrice:   hexutil.EncodeBig(snap.Slot0.SqrtPriceX96),
		Liquidity:   snap.Liquidity,
		Price:       conv.SqrtToPrice(snap.Slot0.SqrtPriceX96).String(),
		Inverted:    conv.Inverted(),
	}

	logger.Info("quote",
		zap.String("pool", out.Pool),
		zap.Uint64("block", block),
		zap.Int("tick", out.Tick),
		zap.String("price", out.Price),
	)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func resolvePool(cmd *cobra.Command, cfg config.Config, client *chain.Client, hedged common.Address) (common.Address, error) {
	if cfg.PoolAddress != "" {
		return parseAddress("pool", cfg.PoolAddress)
	}
	if cfg.Factory == "" {
		return common.Address{}, fmt.Errorf("pool or factory address is required")
	}
	factory, err := parseAddress("factory", cfg.Factory)
	if err != nil {
		return common.Address{}, err
	}
	reference, err := parseAddress("reference", cfg.ReferenceToken)
	if err != nil {
		return common.Address{}, err
	}
	return dex.LookupPool(cmd.Context(), client, factory, hedged, reference, cfg.PoolFee)
}
