package rangeorder

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"rangeHedger/internal/model"
	"rangeHedger/internal/pricing"
)

// GetUnderlyingBalances returns the pool-ordered token amounts held by the
// order, including fees owed. Both are zero when no order is active.
func (m *Manager) GetUnderlyingBalances(ctx context.Context) (*big.Int, *big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.underlyingLocked(ctx)
}

// GetPoolDenominatedValue values the order in reference units at the oracle price.
func (m *Manager) GetPoolDenominatedValue(ctx context.Context) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	amount0, amount1, err := m.underlyingLocked(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	price, err := m.oracle.Price(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("oracle price: %w", err)
	}
	hedged, reference := m.conv.Split(amount0, amount1)
	value := pricing.FromRaw(reference, m.conv.ReferenceDecimals())
	return value.Add(pricing.FromRaw(hedged, m.conv.HedgedDecimals()).Mul(price)), nil
}

func (m *Manager) underlyingLocked(ctx context.Context) (*big.Int, *big.Int, error) {
	if !m.position.Active() {
		return new(big.Int), new(big.Int), nil
	}
	slot0, err := m.pool.Slot0(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read slot0: %w", err)
	}
	info, err := m.pool.Position(ctx, m.cfg.Self, m.position.LowerTick, m.position.UpperTick)
	if err != nil {
		return nil, nil, fmt.Errorf("read position: %w", err)
	}
	amount0, amount1, err := amountsAt(m.position, slot0.SqrtPriceX96, info.Liquidity)
	if err != nil {
		return nil, nil, err
	}
	if info.TokensOwed0 != nil {
		amount0.Add(amount0, info.TokensOwed0)
	}
	if info.TokensOwed1 != nil {
		amount1.Add(amount1, info.TokensOwed1)
	}
	return amount0, amount1, nil
}

// amountsAt returns the principal held by liquidity in the position's band at sqrtPrice.
func amountsAt(pos model.Position, sqrtPrice, liquidity *big.Int) (*big.Int, *big.Int, error) {
	if liquidity == nil || liquidity.Sign() == 0 {
		return new(big.Int), new(big.Int), nil
	}
	sqrtLower, err := pricing.SqrtRatioAtTick(pos.LowerTick)
	if err != nil {
		return nil, nil, err
	}
	sqrtUpper, err := pricing.SqrtRatioAtTick(pos.UpperTick)
	if err != nil {
		return nil, nil, err
	}
	amount0, amount1 := pricing.AmountsForLiquidity(sqrtPrice, sqrtLower, sqrtUpper, liquidity)
	return amount0, amount1, nil
}
