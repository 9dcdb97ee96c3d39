package sim

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/daoleno/uniswapv3-sdk/constants"
	"github.com/daoleno/uniswapv3-sdk/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rangeHedger/internal/model"
	"rangeHedger/internal/pricing"
)

var (
	ErrInvalidTicks     = errors.New("invalid tick range")
	ErrZeroLiquidity    = errors.New("liquidity must be positive")
	ErrUnknownPosition  = errors.New("position not found")
	ErrBurnExceeds      = errors.New("burn exceeds position liquidity")
	ErrInvalidSqrtPrice = errors.New("sqrt price out of bounds")
)

// swapBudget is the exact-input amount used when swapping to a target price;
// large enough that the target, not the budget, ends every step.
var swapBudget = new(big.Int).Lsh(big.NewInt(1), 200)

type tickInfo struct {
	liquidityGross    *big.Int
	liquidityNet      *big.Int
	feeGrowthOutside0 *big.Int
	feeGrowthOutside1 *big.Int
}

type positionKey struct {
	owner common.Address
	lower int
	upper int
}

type position struct {
	liquidity            *big.Int
	feeGrowthInside0Last *big.Int
	feeGrowthInside1Last *big.Int
	tokensOwed0          *big.Int
	tokensOwed1          *big.Int
}

// Pool is an in-memory concentrated-liquidity pool with tick crossing and
// fee accounting. Token movements settle against a shared Ledger.
type Pool struct {
	mu sync.Mutex

	address     common.Address
	token0      common.Address
	token1      common.Address
	fee         uint32
	tickSpacing int
	ledger      *Ledger
	trader      common.Address
	logger      *zap.Logger

	sqrtPriceX96     *big.Int
	tick             int
	liquidity        *big.Int
	feeGrowthGlobal0 *big.Int
	feeGrowthGlobal1 *big.Int
	ticks            map[int]*tickInfo
	positions        map[positionKey]*position
}

// PoolConfig describes a pool to create.
type PoolConfig struct {
	Address      common.Address
	Token0       common.Address
	Token1       common.Address
	Fee          uint32
	TickSpacing  int
	SqrtPriceX96 *big.Int
	// Trader is the account that takes the other side of price moves.
	Trader common.Address
}

func NewPool(cfg PoolConfig, ledger *Ledger, logger *zap.Logger) (*Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TickSpacing <= 0 {
		return nil, pricing.ErrInvalidTickSpacing
	}
	tick, err := pricing.TickAtSqrtRatio(cfg.SqrtPriceX96)
	if err != nil {
		return nil, fmt.Errorf("initial tick: %w", err)
	}
	if cfg.SqrtPriceX96.Cmp(pricing.MaxSqrtRatio) >= 0 {
		return nil, ErrInvalidSqrtPrice
	}
	return &Pool{
		address:          cfg.Address,
		token0:           cfg.Token0,
		token1:           cfg.Token1,
		fee:              cfg.Fee,
		tickSpacing:      cfg.TickSpacing,
		ledger:           ledger,
		trader:           cfg.Trader,
		logger:           logger,
		sqrtPriceX96:     new(big.Int).Set(cfg.SqrtPriceX96),
		tick:             tick,
		liquidity:        new(big.Int),
		feeGrowthGlobal0: new(big.Int),
		feeGrowthGlobal1: new(big.Int),
		ticks:            make(map[int]*tickInfo),
		positions:        make(map[positionKey]*position),
	}, nil
}

func (p *Pool) Address() common.Address { return p.address }
func (p *Pool) Token0() common.Address  { return p.token0 }
func (p *Pool) Token1() common.Address  { return p.token1 }
func (p *Pool) Fee() uint32             { return p.fee }
func (p *Pool) TickSpacing() int        { return p.tickSpacing }

// Slot0 returns the current sqrt price and tick.
func (p *Pool) Slot0(_ context.Context) (model.Slot0, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return model.Slot0{SqrtPriceX96: new(big.Int).Set(p.sqrtPriceX96), Tick: p.tick}, nil
}

// Liquidity returns the in-range liquidity.
func (p *Pool) Liquidity() *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.liquidity)
}

// Mint adds liquidity for owner and pulls the required tokens from owner's ledger balance.
func (p *Pool) Mint(ctx context.Context, owner common.Address, lower, upper int, liquidity *big.Int) (*big.Int, *big.Int, error) {
	if err := p.checkTicks(lower, upper); err != nil {
		return nil, nil, err
	}
	if liquidity == nil || liquidity.Sign() <= 0 {
		return nil, nil, ErrZeroLiquidity
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	amount0, amount1, err := p.amountsForDelta(lower, upper, liquidity, true)
	if err != nil {
		return nil, nil, err
	}
	if err := p.requireBalance(ctx, p.token0, owner, amount0); err != nil {
		return nil, nil, err
	}
	if err := p.requireBalance(ctx, p.token1, owner, amount1); err != nil {
		return nil, nil, err
	}

	if err := p.modifyPosition(owner, lower, upper, liquidity); err != nil {
		return nil, nil, err
	}
	if err := p.ledger.Transfer(ctx, p.token0, owner, p.address, amount0); err != nil {
		return nil, nil, err
	}
	if err := p.ledger.Transfer(ctx, p.token1, owner, p.address, amount1); err != nil {
		return nil, nil, err
	}
	p.logger.Debug("mint",
		zap.String("owner", owner.Hex()),
		zap.Int("lower_tick", lower),
		zap.Int("upper_tick", upper),
		zap.String("liquidity", liquidity.String()),
	)
	return amount0, amount1, nil
}

// Burn removes liquidity and credits the released amounts to the position's tokens owed.
func (p *Pool) Burn(_ context.Context, owner common.Address, lower, upper int, liquidity *big.Int) (*big.Int, *big.Int, error) {
	if err := p.checkTicks(lower, upper); err != nil {
		return nil, nil, err
	}
	if liquidity == nil || liquidity.Sign() < 0 {
		return nil, nil, ErrZeroLiquidity
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[positionKey{owner: owner, lower: lower, upper: upper}]
	if !ok || pos.liquidity.Sign() == 0 {
		return nil, nil, ErrUnknownPosition
	}
	if pos.liquidity.Cmp(liquidity) < 0 {
		return nil, nil, ErrBurnExceeds
	}

	amount0, amount1, err := p.amountsForDelta(lower, upper, liquidity, false)
	if err != nil {
		return nil, nil, err
	}
	if err := p.modifyPosition(owner, lower, upper, new(big.Int).Neg(liquidity)); err != nil {
		return nil, nil, err
	}
	pos.tokensOwed0.Add(pos.tokensOwed0, amount0)
	pos.tokensOwed1.Add(pos.tokensOwed1, amount1)
	return amount0, amount1, nil
}

// Collect pays out up to the requested tokens owed to recipient.
func (p *Pool) Collect(ctx context.Context, owner, recipient common.Address, lower, upper int, max0, max1 *big.Int) (*big.Int, *big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := positionKey{owner: owner, lower: lower, upper: upper}
	pos, ok := p.positions[key]
	if !ok {
		return new(big.Int), new(big.Int), nil
	}
	amount0 := minBig(max0, pos.tokensOwed0)
	amount1 := minBig(max1, pos.tokensOwed1)

	if err := p.ledger.Transfer(ctx, p.token0, p.address, recipient, amount0); err != nil {
		return nil, nil, err
	}
	if err := p.ledger.Transfer(ctx, p.token1, p.address, recipient, amount1); err != nil {
		return nil, nil, err
	}
	pos.tokensOwed0.Sub(pos.tokensOwed0, amount0)
	pos.tokensOwed1.Sub(pos.tokensOwed1, amount1)
	if pos.liquidity.Sign() == 0 && pos.tokensOwed0.Sign() == 0 && pos.tokensOwed1.Sign() == 0 {
		delete(p.positions, key)
	}
	return amount0, amount1, nil
}

// Position returns liquidity and tokens owed, including fees accrued but not yet poked.
func (p *Pool) Position(_ context.Context, owner common.Address, lower, upper int) (model.PositionInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[positionKey{owner: owner, lower: lower, upper: upper}]
	if !ok {
		return model.PositionInfo{Liquidity: new(big.Int), TokensOwed0: new(big.Int), TokensOwed1: new(big.Int)}, nil
	}
	inside0, inside1 := p.feeGrowthInside(lower, upper)
	owed0 := new(big.Int).Add(pos.tokensOwed0, feesEarned(inside0, pos.feeGrowthInside0Last, pos.liquidity))
	owed1 := new(big.Int).Add(pos.tokensOwed1, feesEarned(inside1, pos.feeGrowthInside1Last, pos.liquidity))
	return model.PositionInfo{
		Liquidity:   new(big.Int).Set(pos.liquidity),
		TokensOwed0: owed0,
		TokensOwed1: owed1,
	}, nil
}

// SwapToTick moves the price to the sqrt ratio of tick.
func (p *Pool) SwapToTick(ctx context.Context, tick int) (*big.Int, *big.Int, error) {
	sqrt, err := pricing.SqrtRatioAtTick(tick)
	if err != nil {
		return nil, nil, err
	}
	return p.SwapToSqrtPrice(ctx, sqrt)
}

// SwapToPrice moves the price to a human price under conv.
func (p *Pool) SwapToPrice(ctx context.Context, conv pricing.Converter, price decimal.Decimal) (*big.Int, *big.Int, error) {
	sqrt, err := conv.PriceToSqrt(price)
	if err != nil {
		return nil, nil, err
	}
	return p.SwapToSqrtPrice(ctx, sqrt)
}

// SwapToSqrtPrice trades against in-range liquidity until the price reaches
// target, crossing initialized ticks and paying fees to active liquidity.
// The returned amounts are the pool's signed balance changes.
func (p *Pool) SwapToSqrtPrice(ctx context.Context, target *big.Int) (*big.Int, *big.Int, error) {
	if target == nil || target.Cmp(pricing.MinSqrtRatio) <= 0 || target.Cmp(pricing.MaxSqrtRatio) >= 0 {
		return nil, nil, ErrInvalidSqrtPrice
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	zeroForOne := target.Cmp(p.sqrtPriceX96) < 0
	amountIn := new(big.Int)
	amountOut := new(big.Int)
	crossed := 0

	for p.sqrtPriceX96.Cmp(target) != 0 {
		next, hasNext := p.nextInitializedTick(zeroForOne)
		stepTarget := target
		var sqrtNext *big.Int
		if hasNext {
			s, err := pricing.SqrtRatioAtTick(next)
			if err != nil {
				return nil, nil, err
			}
			sqrtNext = s
			if (zeroForOne && sqrtNext.Cmp(target) > 0) || (!zeroForOne && sqrtNext.Cmp(target) < 0) {
				stepTarget = sqrtNext
			}
		}

		sqrtNew, in, out, feeAmount, err := utils.ComputeSwapStep(p.sqrtPriceX96, stepTarget, p.liquidity, swapBudget, constants.FeeAmount(p.fee))
		if err != nil {
			return nil, nil, fmt.Errorf("swap step: %w", err)
		}
		amountIn.Add(amountIn, in)
		amountIn.Add(amountIn, feeAmount)
		amountOut.Add(amountOut, out)
		if p.liquidity.Sign() > 0 && feeAmount.Sign() > 0 {
			growth := new(big.Int).Lsh(feeAmount, 128)
			growth.Quo(growth, p.liquidity)
			if zeroForOne {
				p.feeGrowthGlobal0.Add(p.feeGrowthGlobal0, growth)
			} else {
				p.feeGrowthGlobal1.Add(p.feeGrowthGlobal1, growth)
			}
		}
		p.sqrtPriceX96 = sqrtNew

		if hasNext && sqrtNew.Cmp(sqrtNext) == 0 {
			p.crossTick(next, zeroForOne)
			crossed++
			if zeroForOne {
				p.tick = next - 1
			} else {
				p.tick = next
			}
			continue
		}
		tick, err := pricing.TickAtSqrtRatio(sqrtNew)
		if err != nil {
			return nil, nil, err
		}
		p.tick = tick
	}

	tokenIn, tokenOut := p.token1, p.token0
	amount0 := new(big.Int).Neg(amountOut)
	amount1 := new(big.Int).Set(amountIn)
	if zeroForOne {
		tokenIn, tokenOut = p.token0, p.token1
		amount0 = new(big.Int).Set(amountIn)
		amount1 = new(big.Int).Neg(amountOut)
	}
	p.ledger.Mint(tokenIn, p.trader, amountIn)
	if err := p.ledger.Transfer(ctx, tokenIn, p.trader, p.address, amountIn); err != nil {
		return nil, nil, err
	}
	if err := p.ledger.Transfer(ctx, tokenOut, p.address, p.trader, amountOut); err != nil {
		return nil, nil, err
	}

	p.logger.Debug("swap",
		zap.Bool("zero_for_one", zeroForOne),
		zap.Int("tick", p.tick),
		zap.Int("crossed", crossed),
		zap.String("amount_in", amountIn.String()),
		zap.String("amount_out", amountOut.String()),
	)
	return amount0, amount1, nil
}

func (p *Pool) checkTicks(lower, upper int) error {
	if lower >= upper || lower < pricing.MinTick || upper > pricing.MaxTick {
		return fmt.Errorf("%w: [%d, %d]", ErrInvalidTicks, lower, upper)
	}
	if lower%p.tickSpacing != 0 || upper%p.tickSpacing != 0 {
		return fmt.Errorf("%w: ticks not multiples of %d", ErrInvalidTicks, p.tickSpacing)
	}
	return nil
}

func (p *Pool) requireBalance(ctx context.Context, token, owner common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	bal, err := p.ledger.BalanceOf(ctx, token, owner)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s needs %s of %s, holds %s", ErrInsufficientBalance, owner.Hex(), amount, token.Hex(), bal)
	}
	return nil
}

func (p *Pool) amountsForDelta(lower, upper int, liquidity *big.Int, roundUp bool) (*big.Int, *big.Int, error) {
	sqrtLower, err := pricing.SqrtRatioAtTick(lower)
	if err != nil {
		return nil, nil, err
	}
	sqrtUpper, err := pricing.SqrtRatioAtTick(upper)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case p.tick < lower:
		return pricing.Amount0Delta(sqrtLower, sqrtUpper, liquidity, roundUp), new(big.Int), nil
	case p.tick < upper:
		return pricing.Amount0Delta(p.sqrtPriceX96, sqrtUpper, liquidity, roundUp),
			pricing.Amount1Delta(sqrtLower, p.sqrtPriceX96, liquidity, roundUp), nil
	default:
		return new(big.Int), pricing.Amount1Delta(sqrtLower, sqrtUpper, liquidity, roundUp), nil
	}
}

// modifyPosition applies a signed liquidity delta to a position and its boundary ticks.
func (p *Pool) modifyPosition(owner common.Address, lower, upper int, delta *big.Int) error {
	key := positionKey{owner: owner, lower: lower, upper: upper}
	pos, ok := p.positions[key]
	if !ok {
		if delta.Sign() < 0 {
			return ErrUnknownPosition
		}
		pos = &position{
			liquidity:            new(big.Int),
			feeGrowthInside0Last: new(big.Int),
			feeGrowthInside1Last: new(big.Int),
			tokensOwed0:          new(big.Int),
			tokensOwed1:          new(big.Int),
		}
		p.positions[key] = pos
	}

	if delta.Sign() != 0 {
		p.updateTick(lower, delta, false)
		p.updateTick(upper, delta, true)
	}

	inside0, inside1 := p.feeGrowthInside(lower, upper)
	pos.tokensOwed0.Add(pos.tokensOwed0, feesEarned(inside0, pos.feeGrowthInside0Last, pos.liquidity))
	pos.tokensOwed1.Add(pos.tokensOwed1, feesEarned(inside1, pos.feeGrowthInside1Last, pos.liquidity))
	pos.feeGrowthInside0Last = inside0
	pos.feeGrowthInside1Last = inside1
	pos.liquidity.Add(pos.liquidity, delta)

	if delta.Sign() < 0 {
		for _, t := range []int{lower, upper} {
			if info := p.ticks[t]; info != nil && info.liquidityGross.Sign() == 0 {
				delete(p.ticks, t)
			}
		}
	}
	if lower <= p.tick && p.tick < upper {
		p.liquidity.Add(p.liquidity, delta)
	}
	return nil
}

func (p *Pool) updateTick(tick int, delta *big.Int, upper bool) {
	info, ok := p.ticks[tick]
	if !ok {
		info = &tickInfo{
			liquidityGross:    new(big.Int),
			liquidityNet:      new(big.Int),
			feeGrowthOutside0: new(big.Int),
			feeGrowthOutside1: new(big.Int),
		}
		// By convention all growth before initialization happened below the tick.
		if tick <= p.tick {
			info.feeGrowthOutside0.Set(p.feeGrowthGlobal0)
			info.feeGrowthOutside1.Set(p.feeGrowthGlobal1)
		}
		p.ticks[tick] = info
	}
	info.liquidityGross.Add(info.liquidityGross, delta)
	if upper {
		info.liquidityNet.Sub(info.liquidityNet, delta)
	} else {
		info.liquidityNet.Add(info.liquidityNet, delta)
	}
}

func (p *Pool) crossTick(tick int, zeroForOne bool) {
	info := p.ticks[tick]
	if info == nil {
		return
	}
	info.feeGrowthOutside0 = new(big.Int).Sub(p.feeGrowthGlobal0, info.feeGrowthOutside0)
	info.feeGrowthOutside1 = new(big.Int).Sub(p.feeGrowthGlobal1, info.feeGrowthOutside1)
	if zeroForOne {
		p.liquidity.Sub(p.liquidity, info.liquidityNet)
	} else {
		p.liquidity.Add(p.liquidity, info.liquidityNet)
	}
}

func (p *Pool) feeGrowthInside(lower, upper int) (*big.Int, *big.Int) {
	lo := p.ticks[lower]
	hi := p.ticks[upper]
	zero := new(big.Int)
	outside := func(info *tickInfo) (*big.Int, *big.Int) {
		if info == nil {
			return zero, zero
		}
		return info.feeGrowthOutside0, info.feeGrowthOutside1
	}
	lo0, lo1 := outside(lo)
	hi0, hi1 := outside(hi)

	var below0, below1, above0, above1 *big.Int
	if p.tick >= lower {
		below0, below1 = lo0, lo1
	} else {
		below0 = new(big.Int).Sub(p.feeGrowthGlobal0, lo0)
		below1 = new(big.Int).Sub(p.feeGrowthGlobal1, lo1)
	}
	if p.tick < upper {
		above0, above1 = hi0, hi1
	} else {
		above0 = new(big.Int).Sub(p.feeGrowthGlobal0, hi0)
		above1 = new(big.Int).Sub(p.feeGrowthGlobal1, hi1)
	}
	inside0 := new(big.Int).Sub(p.feeGrowthGlobal0, below0)
	inside0.Sub(inside0, above0)
	inside1 := new(big.Int).Sub(p.feeGrowthGlobal1, below1)
	inside1.Sub(inside1, above1)
	return inside0, inside1
}

// nextInitializedTick returns the nearest initialized tick in the swap direction:
// at or below the current tick when moving down, strictly above it when moving up.
func (p *Pool) nextInitializedTick(zeroForOne bool) (int, bool) {
	keys := make([]int, 0, len(p.ticks))
	for t := range p.ticks {
		keys = append(keys, t)
	}
	sort.Ints(keys)
	if zeroForOne {
		idx := sort.SearchInts(keys, p.tick+1) - 1
		if idx < 0 {
			return 0, false
		}
		return keys[idx], true
	}
	idx := sort.SearchInts(keys, p.tick+1)
	if idx >= len(keys) {
		return 0, false
	}
	return keys[idx], true
}

func feesEarned(insideNow, insideLast, liquidity *big.Int) *big.Int {
	if liquidity.Sign() == 0 {
		return new(big.Int)
	}
	delta := new(big.Int).Sub(insideNow, insideLast)
	if delta.Sign() <= 0 {
		return new(big.Int)
	}
	delta.Mul(delta, liquidity)
	return delta.Rsh(delta, 128)
}

func minBig(a, b *big.Int) *big.Int {
	if a == nil || a.Cmp(b) > 0 {
		return new(big.Int).Set(b)
	}
	return new(big.Int).Set(a)
}
