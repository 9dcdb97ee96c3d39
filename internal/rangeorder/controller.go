package rangeorder

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rangeHedger/internal/model"
	"rangeHedger/internal/pricing"
)

// Controller turns signed delta requests from custody into range orders.
type Controller struct {
	m      *Manager
	width  int
	logger *zap.Logger
}

// NewController builds a controller that places bands width tick spacings wide.
func NewController(m *Manager, width int, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if width < 1 {
		width = 1
	}
	return &Controller{m: m, width: width, logger: logger}
}

func (c *Controller) Manager() *Manager { return c.m }

// HedgeDelta offsets delta units of the hedged asset. A negative delta buys the
// hedged asset and a positive delta sells it. An unfilled order is exited and
// its unconverted remainder netted into the new request; a filled order is
// fulfilled to custody first. Every read and check runs before the first
// transfer, so a failed call leaves the order and balances untouched.
func (c *Controller) HedgeDelta(ctx context.Context, caller common.Address, delta decimal.Decimal) (model.Position, error) {
	m := c.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireCustody(caller); err != nil {
		return model.Position{}, err
	}
	m.metrics.HedgeRequests.Inc()
	if delta.IsZero() {
		return clonePosition(m.position), nil
	}

	net := delta
	fulfill, exit := false, false
	var held0, held1 *big.Int
	if m.position.Active() {
		slot0, err := m.pool.Slot0(ctx)
		if err != nil {
			return model.Position{}, fmt.Errorf("read slot0: %w", err)
		}
		if m.position.Filled(slot0.Tick) {
			fulfill = true
		} else {
			pending, err := m.pendingDeltaLocked(slot0)
			if err != nil {
				return model.Position{}, err
			}
			net = net.Add(pending)
			exit = true
		}
		held0, held1, err = m.underlyingLocked(ctx)
		if err != nil {
			return model.Position{}, err
		}
	}

	var plan mintPlan
	if !net.IsZero() {
		params, amount, err := c.sizeLocked(ctx, net)
		if err == nil {
			plan, err = m.planLocked(ctx, params, amount)
		}
		if err == nil {
			incoming := held1
			if plan.token == m.token0 {
				incoming = held0
			}
			err = m.checkFundsLocked(ctx, plan.token, plan.amount, incoming)
		}
		if err != nil {
			m.metrics.OrdersFailed.Inc()
			return model.Position{}, err
		}
	}

	switch {
	case fulfill:
		if _, err := m.fulfillLocked(ctx, caller); err != nil {
			return model.Position{}, fmt.Errorf("fulfill filled order: %w", err)
		}
	case exit:
		if _, err := m.exitLocked(ctx, caller); err != nil {
			return model.Position{}, fmt.Errorf("exit unfilled order: %w", err)
		}
	}
	if net.IsZero() {
		c.logger.Info("hedge netted to zero", zap.String("delta", delta.String()))
		return model.Position{}, nil
	}
	if err := m.mintLocked(ctx, caller, plan); err != nil {
		m.metrics.OrdersFailed.Inc()
		return model.Position{}, err
	}
	c.logger.Info("hedge placed",
		zap.String("delta", delta.String()),
		zap.String("net", net.String()),
		zap.String("direction", string(plan.params.Direction)),
		zap.Int("lower_tick", plan.params.LowerTick),
		zap.Int("upper_tick", plan.params.UpperTick),
	)
	return clonePosition(m.position), nil
}

// GetPoolPrice returns the pool price in reference per hedged and whether the pool is inverted.
func (c *Controller) GetPoolPrice(ctx context.Context) (decimal.Decimal, bool, error) {
	m := c.m
	m.mu.Lock()
	defer m.mu.Unlock()
	slot0, err := m.pool.Slot0(ctx)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("read slot0: %w", err)
	}
	return m.conv.SqrtToPrice(slot0.SqrtPriceX96), m.conv.Inverted(), nil
}

// CurrentPosition returns the active band, or (0, 0) when inactive.
func (c *Controller) CurrentPosition() (int, int) {
	return c.m.CurrentPosition()
}

// pendingDeltaLocked returns the part of the order's delta not yet converted,
// pro rata to the deposit token still resting in the band.
func (m *Manager) pendingDeltaLocked(slot0 model.Slot0) (decimal.Decimal, error) {
	pos := m.position
	if pos.Delta.IsZero() || pos.Liquidity == nil || pos.Liquidity.Sign() == 0 {
		return decimal.Zero, nil
	}
	sqrtLower, err := pricing.SqrtRatioAtTick(pos.LowerTick)
	if err != nil {
		return decimal.Zero, err
	}
	sqrtUpper, err := pricing.SqrtRatioAtTick(pos.UpperTick)
	if err != nil {
		return decimal.Zero, err
	}
	amount0, amount1 := pricing.AmountsForLiquidity(slot0.SqrtPriceX96, sqrtLower, sqrtUpper, pos.Liquidity)

	var initial, remaining *big.Int
	if pos.Direction == model.DirectionAbove {
		initial = pricing.Amount0Delta(sqrtLower, sqrtUpper, pos.Liquidity, false)
		remaining = amount0
	} else {
		initial = pricing.Amount1Delta(sqrtLower, sqrtUpper, pos.Liquidity, false)
		remaining = amount1
	}
	if initial.Sign() == 0 || remaining.Sign() == 0 {
		return decimal.Zero, nil
	}
	if remaining.Cmp(initial) >= 0 {
		return pos.Delta, nil
	}
	frac := decimal.NewFromBigInt(remaining, 0).DivRound(decimal.NewFromBigInt(initial, 0), 18)
	return pos.Delta.Mul(frac), nil
}

// sizeLocked computes the band and deposit for a net delta.
func (c *Controller) sizeLocked(ctx context.Context, net decimal.Decimal) (RangeOrderParams, *big.Int, error) {
	m := c.m
	buy := net.IsNegative()
	direction := m.conv.DepositDirection(!buy)

	slot0, err := m.pool.Slot0(ctx)
	if err != nil {
		return RangeOrderParams{}, nil, fmt.Errorf("read slot0: %w", err)
	}
	poolPrice := m.conv.SqrtToPrice(slot0.SqrtPriceX96)
	oraclePrice, err := m.oracle.Price(ctx)
	if err != nil {
		return RangeOrderParams{}, nil, fmt.Errorf("oracle price: %w", err)
	}
	ref := m.conv.PriceToUse(poolPrice, oraclePrice, direction)
	refTick, err := m.conv.PriceToTick(ref)
	if err != nil {
		return RangeOrderParams{}, nil, fmt.Errorf("%w: reference price %s: %v", ErrInvalidRange, ref, err)
	}
	lower, upper, err := pricing.RangeTicks(refTick, slot0.Tick, m.pool.TickSpacing(), c.width, direction)
	if err != nil {
		return RangeOrderParams{}, nil, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	lowerPrice, err := m.conv.TickToPrice(lower)
	if err != nil {
		return RangeOrderParams{}, nil, err
	}
	upperPrice, err := m.conv.TickToPrice(upper)
	if err != nil {
		return RangeOrderParams{}, nil, err
	}
	mean := lowerPrice.Add(upperPrice).Div(decimal.NewFromInt(2))

	var amount *big.Int
	if buy {
		amount = pricing.ToRaw(net.Abs().Mul(mean), m.conv.ReferenceDecimals())
	} else {
		amount = pricing.ToRaw(net, m.conv.HedgedDecimals())
	}

	c.logger.Debug("hedge sized",
		zap.String("pool_price", poolPrice.String()),
		zap.String("oracle_price", oraclePrice.String()),
		zap.String("reference_price", ref.String()),
		zap.Int("current_tick", slot0.Tick),
		zap.Int("lower_tick", lower),
		zap.Int("upper_tick", upper),
		zap.String("amount", amount.String()),
	)
	return RangeOrderParams{
		LowerTick:    lower,
		UpperTick:    upper,
		SqrtPriceX96: slot0.SqrtPriceX96,
		MeanPrice:    mean,
		Direction:    direction,
		Delta:        net,
	}, amount, nil
}
