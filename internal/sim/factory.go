package sim

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/daoleno/uniswapv3-sdk/constants"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

var (
	ErrPoolNotFound   = errors.New("pool not found")
	ErrPoolExists     = errors.New("pool already exists")
	ErrUnsupportedFee = errors.New("unsupported fee tier")
)

type poolKey struct {
	token0 common.Address
	token1 common.Address
	fee    uint32
}

// Factory creates and resolves simulated pools keyed by (token0, token1, fee).
type Factory struct {
	mu     sync.RWMutex
	ledger *Ledger
	trader common.Address
	logger *zap.Logger
	pools  map[poolKey]*Pool
}

func NewFactory(ledger *Ledger, trader common.Address, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		ledger: ledger,
		trader: trader,
		logger: logger,
		pools:  make(map[poolKey]*Pool),
	}
}

// SortTokens orders two token addresses the way pools do.
func SortTokens(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		return b, a
	}
	return a, b
}

// PoolAddress derives a deterministic address for a pool key.
func PoolAddress(token0, token1 common.Address, fee uint32) common.Address {
	var feeBytes [4]byte
	binary.BigEndian.PutUint32(feeBytes[:], fee)
	hash := crypto.Keccak256(token0.Bytes(), token1.Bytes(), feeBytes[:])
	return common.BytesToAddress(hash[12:])
}

// TickSpacing returns the tick spacing of a standard fee tier.
func TickSpacing(fee uint32) (int, error) {
	spacing, ok := constants.TickSpacings[constants.FeeAmount(fee)]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedFee, fee)
	}
	return spacing, nil
}

// CreatePool initializes a pool at sqrtPriceX96.
func (f *Factory) CreatePool(tokenA, tokenB common.Address, fee uint32, sqrtPriceX96 *big.Int) (*Pool, error) {
	spacing, err := TickSpacing(fee)
	if err != nil {
		return nil, err
	}
	token0, token1 := SortTokens(tokenA, tokenB)
	key := poolKey{token0: token0, token1: token1, fee: fee}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pools[key]; ok {
		return nil, fmt.Errorf("%w: fee %d", ErrPoolExists, fee)
	}
	pool, err := NewPool(PoolConfig{
		Address:      PoolAddress(token0, token1, fee),
		Token0:       token0,
		Token1:       token1,
		Fee:          fee,
		TickSpacing:  spacing,
		SqrtPriceX96: sqrtPriceX96,
		Trader:       f.trader,
	}, f.ledger, f.logger.With(zap.Uint32("fee", fee)))
	if err != nil {
		return nil, err
	}
	f.pools[key] = pool
	f.logger.Info("pool created",
		zap.String("pool", pool.Address().Hex()),
		zap.Uint32("fee", fee),
		zap.Int("tick_spacing", spacing),
		zap.Int("tick", pool.tick),
	)
	return pool, nil
}

// GetPool resolves the pool for a token pair in either order.
func (f *Factory) GetPool(_ context.Context, tokenA, tokenB common.Address, fee uint32) (*Pool, error) {
	token0, token1 := SortTokens(tokenA, tokenB)
	f.mu.RLock()
	defer f.mu.RUnlock()
	pool, ok := f.pools[poolKey{token0: token0, token1: token1, fee: fee}]
	if !ok {
		return nil, fmt.Errorf("%w: fee %d", ErrPoolNotFound, fee)
	}
	return pool, nil
}

// Pools returns every pool for a token pair ordered by fee.
func (f *Factory) Pools(tokenA, tokenB common.Address) []*Pool {
	token0, token1 := SortTokens(tokenA, tokenB)
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*Pool, 0, len(f.pools))
	for key, pool := range f.pools {
		if key.token0 == token0 && key.token1 == token1 {
			out = append(out, pool)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].fee < out[j].fee })
	return out
}

// SyncPrice moves every pool of the pair to sqrtPriceX96.
func (f *Factory) SyncPrice(ctx context.Context, tokenA, tokenB common.Address, sqrtPriceX96 *big.Int) error {
	for _, pool := range f.Pools(tokenA, tokenB) {
		if _, _, err := pool.SwapToSqrtPrice(ctx, sqrtPriceX96); err != nil {
			return fmt.Errorf("sync pool %s: %w", pool.Address().Hex(), err)
		}
	}
	return nil
}
