package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rangeHedger/internal/model"
	"rangeHedger/internal/pricing"
)

// Pool is a read-only view of a deployed V3 pool.
type Pool struct {
	caller  ContractCaller
	address common.Address
	meta    model.PoolMeta
}

// NewPool loads the pool's immutable metadata.
func NewPool(ctx context.Context, caller ContractCaller, address common.Address, tokens *TokenMetaCache, logger *zap.Logger) (*Pool, error) {
	meta, err := FetchPoolMeta(ctx, caller, address, tokens, logger)
	if err != nil {
		return nil, err
	}
	return &Pool{caller: caller, address: address, meta: meta}, nil
}

func (p *Pool) Address() common.Address { return p.address }
func (p *Pool) Meta() model.PoolMeta    { return p.meta }

// Slot0 reads the current price.
func (p *Pool) Slot0(ctx context.Context) (model.Slot0, error) {
	return FetchSlot0(ctx, p.caller, p.address, nil)
}

// Snapshot returns the metadata together with the current price and liquidity.
func (p *Pool) Snapshot(ctx context.Context) (model.PoolMeta, error) {
	slot0, err := p.Slot0(ctx)
	if err != nil {
		return model.PoolMeta{}, err
	}
	liquidity, err := FetchLiquidity(ctx, p.caller, p.address)
	if err != nil {
		return model.PoolMeta{}, err
	}
	meta := p.meta
	meta.Slot0 = &slot0
	meta.Liquidity = liquidity.String()
	return meta, nil
}

// Position reads the pool's record of owner's liquidity in [lower, upper).
// Tokens owed exclude fees not yet poked into the position.
func (p *Pool) Position(ctx context.Context, owner common.Address, lower, upper int) (model.PositionInfo, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return model.PositionInfo{}, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := callMethod(ctx, p.caller, p.address, poolABI, "positions", nil, PositionKey(owner, lower, upper))
	if err != nil {
		return model.PositionInfo{}, err
	}
	if len(values) < 5 {
		return model.PositionInfo{}, fmt.Errorf("positions: short result")
	}
	var out [3]*big.Int
	for i, idx := range []int{0, 3, 4} {
		if out[i], err = asBigInt(values[idx]); err != nil {
			return model.PositionInfo{}, fmt.Errorf("positions: %w", err)
		}
	}
	return model.PositionInfo{Liquidity: out[0], TokensOwed0: out[1], TokensOwed1: out[2]}, nil
}

// PositionKey is keccak256(abi.encodePacked(owner, int24 lower, int24 upper)).
func PositionKey(owner common.Address, lower, upper int) [32]byte {
	buf := make([]byte, 0, common.AddressLength+6)
	buf = append(buf, owner.Bytes()...)
	buf = append(buf, int24Bytes(lower)...)
	buf = append(buf, int24Bytes(upper)...)
	return crypto.Keccak256Hash(buf)
}

func int24Bytes(v int) []byte {
	u := uint32(int32(v)) & 0xffffff
	return []byte{byte(u >> 16), byte(u >> 8), byte(u)}
}

// ConverterFor builds the price converter for hedging token hedged on the pool.
func ConverterFor(meta model.PoolMeta, hedged common.Address) (pricing.Converter, error) {
	d := pricing.Decimals{Token0: meta.Token0.Decimals, Token1: meta.Token1.Decimals}
	switch hedged {
	case meta.Token0.Address:
		return pricing.NewConverter(d, false), nil
	case meta.Token1.Address:
		return pricing.NewConverter(d, true), nil
	default:
		return pricing.Converter{}, fmt.Errorf("token %s is not in pool %s", hedged.Hex(), meta.Address)
	}
}

// PoolOracle prices the hedged token from a live pool's slot0.
type PoolOracle struct {
	pool *Pool
	conv pricing.Converter
}

func NewPoolOracle(pool *Pool, conv pricing.Converter) *PoolOracle {
	return &PoolOracle{pool: pool, conv: conv}
}

// Price returns the pool price in reference units per hedged unit.
func (o *PoolOracle) Price(ctx context.Context) (decimal.Decimal, error) {
	slot0, err := o.pool.Slot0(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if slot0.SqrtPriceX96 == nil || slot0.SqrtPriceX96.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("pool %s is not initialized", o.pool.address.Hex())
	}
	return o.conv.SqrtToPrice(slot0.SqrtPriceX96), nil
}
