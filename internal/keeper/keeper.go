package keeper

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"rangeHedger/internal/metrics"
	"rangeHedger/internal/model"
	"rangeHedger/internal/rangeorder"
)

// Config holds runtime settings for the keeper loop.
type Config struct {
	PollInterval time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	AutoFulfill  bool
	// Caller is the identity the keeper fulfills as.
	Caller common.Address
}

// PriceSource reports the price of the pool being shadowed.
type PriceSource interface {
	Slot0(ctx context.Context) (model.Slot0, error)
}

// Shadow mirrors an external price into the simulated pools. The keeper
// applies it through the Manager so it never lands inside a hedge.
type Shadow = rangeorder.PriceShadow

// Keeper polls the pool and settles filled range orders.
type Keeper struct {
	cfg     Config
	manager *rangeorder.Manager
	source  PriceSource
	shadow  Shadow
	metrics *metrics.Metrics
	logger  *zap.Logger
	retry   backoff

	lastSqrt *big.Int
}

// New builds a Keeper. source and shadow may both be nil to skip price shadowing.
func New(cfg Config, manager *rangeorder.Manager, source PriceSource, shadow Shadow, m *metrics.Metrics, logger *zap.Logger) *Keeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	k := &Keeper{
		cfg:     cfg,
		manager: manager,
		source:  source,
		shadow:  shadow,
		metrics: m,
		logger:  logger,
	}
	k.retry = newBackoff(cfg, func(retry int, delay time.Duration, err error) {
		k.metrics.KeeperRetries.Inc()
		k.logger.Warn("slot0 fetch failed, retrying",
			zap.Int("retry", retry),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	})
	return k
}

// Run polls until ctx is cancelled. Poll errors are logged and counted.
func (k *Keeper) Run(ctx context.Context) error {
	if k.manager == nil {
		return fmt.Errorf("manager is nil")
	}

	k.logger.Info("keeper start",
		zap.Duration("poll_interval", k.cfg.PollInterval),
		zap.Bool("auto_fulfill", k.cfg.AutoFulfill),
		zap.Bool("shadow", k.source != nil && k.shadow != nil),
	)

	ticker := time.NewTicker(k.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := k.Tick(ctx); err != nil && ctx.Err() == nil {
			k.logger.Warn("keeper poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			k.logger.Info("keeper stop")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs one poll: shadow the price, then fulfill a filled order.
func (k *Keeper) Tick(ctx context.Context) error {
	k.metrics.KeeperPolls.Inc()
	if err := k.tick(ctx); err != nil {
		k.metrics.KeeperErrors.Inc()
		return err
	}
	return nil
}

func (k *Keeper) tick(ctx context.Context) error {
	if k.source != nil && k.shadow != nil {
		if err := k.syncPrice(ctx); err != nil {
			return err
		}
	}

	if !k.cfg.AutoFulfill {
		return nil
	}
	st, err := k.manager.State(ctx)
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}
	if st != rangeorder.StateActiveFilled {
		return nil
	}

	proceeds, err := k.manager.FulfillActiveRangeOrder(ctx, k.cfg.Caller)
	if err != nil {
		var stateErr *rangeorder.StateError
		if errors.As(err, &stateErr) {
			// a concurrent hedge settled it first
			k.logger.Debug("fulfill skipped", zap.String("reason", stateErr.Name))
			return nil
		}
		return fmt.Errorf("fulfill: %w", err)
	}
	k.logger.Info("auto fulfill",
		zap.String("caller", k.cfg.Caller.Hex()),
		zap.String("amount0", proceeds.Amount0.String()),
		zap.String("amount1", proceeds.Amount1.String()),
	)
	return nil
}

func (k *Keeper) syncPrice(ctx context.Context) error {
	var slot0 model.Slot0
	err := k.retry.do(ctx, func(ctx context.Context) error {
		var err error
		slot0, err = k.source.Slot0(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("fetch slot0: %w", err)
	}
	if slot0.SqrtPriceX96 == nil || slot0.SqrtPriceX96.Sign() <= 0 {
		return fmt.Errorf("source pool is not initialized")
	}
	if k.lastSqrt != nil && k.lastSqrt.Cmp(slot0.SqrtPriceX96) == 0 {
		return nil
	}

	if err := k.manager.ShadowPrice(ctx, k.shadow, slot0.SqrtPriceX96); err != nil {
		return fmt.Errorf("sync price: %w", err)
	}
	k.lastSqrt = new(big.Int).Set(slot0.SqrtPriceX96)
	k.logger.Debug("price shadowed", zap.Int("tick", slot0.Tick), zap.String("sqrt_price_x96", slot0.SqrtPriceX96.String()))
	return nil
}
