package rangeorder

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"rangeHedger/internal/model"
	"rangeHedger/internal/pricing"
)

func TestHedgeBuyOnInvertedPoolFillsAndFulfills(t *testing.T) {
	env := newTestEnv(t, usdcWeth, nil)
	ctx := context.Background()
	startWeth := env.balance(t, weth, vaultAddr)

	env.hedge(t, "-0.5")
	pos := env.manager.Position()
	if pos.Direction != model.DirectionAbove {
		t.Fatalf("expected ABOVE order, got %s", pos.Direction)
	}
	if pos.LowerTick <= env.tick(t) || pos.UpperTick-pos.LowerTick != env.pool.TickSpacing() {
		t.Fatalf("unexpected band [%d, %d] at tick %d", pos.LowerTick, pos.UpperTick, env.tick(t))
	}
	if !pos.Delta.Equal(decimal.RequireFromString("-0.5")) {
		t.Fatalf("expected delta -0.5, got %s", pos.Delta)
	}
	if st := env.state(t); st != StateActiveUnfilled {
		t.Fatalf("expected %s, got %s", StateActiveUnfilled, st)
	}

	if _, err := env.manager.FulfillActiveRangeOrder(ctx, managerAddr); !errors.Is(err, ErrRangeOrderNotFilled) {
		t.Fatalf("expected ErrRangeOrderNotFilled, got %v", err)
	}

	// Half way through the band nothing reaches the engine's free balance.
	if _, _, err := env.pool.SwapToTick(ctx, pos.LowerTick+env.pool.TickSpacing()/2); err != nil {
		t.Fatalf("swap: %v", err)
	}
	if _, err := env.manager.FulfillActiveRangeOrder(ctx, managerAddr); !errors.Is(err, ErrRangeOrderNotFilled) {
		t.Fatalf("expected ErrRangeOrderNotFilled inside band, got %v", err)
	}
	if bal := env.balance(t, weth, engineAddr); bal.Sign() != 0 {
		t.Fatalf("expected no engine WETH before fill, got %s", bal)
	}

	if _, _, err := env.pool.SwapToTick(ctx, pos.UpperTick); err != nil {
		t.Fatalf("swap: %v", err)
	}
	if st := env.state(t); st != StateActiveFilled {
		t.Fatalf("expected %s, got %s", StateActiveFilled, st)
	}
	proceeds, err := env.manager.FulfillActiveRangeOrder(ctx, managerAddr)
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if proceeds.Amount0.Sign() != 0 {
		t.Fatalf("expected no USDC left after fill, got %s", proceeds.Amount0)
	}

	gained := pricing.FromRaw(new(big.Int).Sub(env.balance(t, weth, vaultAddr), startWeth), 18)
	if gained.LessThan(decimal.RequireFromString("0.495")) || gained.GreaterThan(decimal.RequireFromString("0.51")) {
		t.Fatalf("expected custody to gain about 0.5 WETH, got %s", gained)
	}
	if lower, upper := env.controller.CurrentPosition(); lower != 0 || upper != 0 {
		t.Fatalf("expected reset position, got [%d, %d]", lower, upper)
	}
	if st := env.state(t); st != StateInactive {
		t.Fatalf("expected %s, got %s", StateInactive, st)
	}
}

func TestHedgeSellOnInvertedPoolRestsBelow(t *testing.T) {
	env := newTestEnv(t, usdcWeth, nil)
	env.hedge(t, "1")
	pos := env.manager.Position()
	if pos.Direction != model.DirectionBelow {
		t.Fatalf("expected BELOW order, got %s", pos.Direction)
	}
	if pos.UpperTick > env.tick(t) {
		t.Fatalf("expected band below tick %d, got [%d, %d]", env.tick(t), pos.LowerTick, pos.UpperTick)
	}
	if pos.Amount.Cmp(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)) != 0 {
		t.Fatalf("expected 1 WETH deposit, got %s", pos.Amount)
	}
}

func TestHedgeDirectionsOnPlainPool(t *testing.T) {
	buy := newTestEnv(t, wbtcDai, nil)
	buy.hedge(t, "-0.1")
	if pos := buy.manager.Position(); pos.Direction != model.DirectionBelow || pos.UpperTick > buy.tick(t) {
		t.Fatalf("expected BELOW buy band, got %+v", pos)
	}

	sell := newTestEnv(t, wbtcDai, nil)
	sell.hedge(t, "0.1")
	if pos := sell.manager.Position(); pos.Direction != model.DirectionAbove || pos.LowerTick <= sell.tick(t) {
		t.Fatalf("expected ABOVE sell band, got %+v", pos)
	}
}

func TestHedgeRoundTripNetsToZero(t *testing.T) {
	env := newTestEnv(t, usdcWeth, nil)
	total := func() *big.Int {
		return new(big.Int).Add(env.balance(t, usdc, vaultAddr), env.balance(t, usdc, engineAddr))
	}
	before := total()

	env.hedge(t, "0.75")
	env.hedge(t, "-0.75")
	if st := env.state(t); st != StateInactive {
		t.Fatalf("expected %s, got %s", StateInactive, st)
	}

	env.hedge(t, "-0.5")
	env.hedge(t, "0.5")
	if lower, upper := env.manager.CurrentPosition(); lower != 0 || upper != 0 {
		t.Fatalf("expected no position, got [%d, %d]", lower, upper)
	}
	diff := new(big.Int).Sub(before, total())
	if diff.Sign() < 0 || diff.Cmp(big.NewInt(2)) > 0 {
		t.Fatalf("expected rounding-only loss, got %s", diff)
	}
}

func TestHedgeNetsUnfilledRemainder(t *testing.T) {
	env := newTestEnv(t, usdcWeth, nil)
	env.hedge(t, "-0.5")
	first := env.manager.Position()

	env.hedge(t, "-0.25")
	pos := env.manager.Position()
	if !pos.Delta.Equal(decimal.RequireFromString("-0.75")) {
		t.Fatalf("expected netted delta -0.75, got %s", pos.Delta)
	}
	if pos.Liquidity.Cmp(first.Liquidity) <= 0 {
		t.Fatalf("expected larger order, got %s vs %s", pos.Liquidity, first.Liquidity)
	}
}

func TestHedgeNetsPartiallyFilledBuy(t *testing.T) {
	env := newTestEnv(t, usdcWeth, nil)
	env.controller = NewController(env.manager, 4, nil)
	ctx := context.Background()

	env.hedge(t, "-1")
	pos := env.manager.Position()
	if _, _, err := env.pool.SwapToTick(ctx, (pos.LowerTick+pos.UpperTick)/2); err != nil {
		t.Fatalf("swap: %v", err)
	}
	if _, err := env.controller.HedgeDelta(ctx, vaultAddr, decimal.RequireFromString("0.2")); err != nil {
		t.Fatalf("hedge: %v", err)
	}
	next := env.manager.Position()
	// Roughly half of the buy converted, so about -0.5 + 0.2 remains.
	if next.Delta.GreaterThan(decimal.RequireFromString("-0.2")) || next.Delta.LessThan(decimal.RequireFromString("-0.45")) {
		t.Fatalf("expected netted delta near -0.3, got %s", next.Delta)
	}
	if next.Direction != model.DirectionAbove {
		t.Fatalf("expected ABOVE order for net buy, got %s", next.Direction)
	}
	if bal := env.balance(t, weth, engineAddr); bal.Sign() <= 0 {
		t.Fatalf("expected acquired WETH returned to engine on exit, got %s", bal)
	}
}

func TestHedgeFulfillsFilledOrderFirst(t *testing.T) {
	env := newTestEnv(t, usdcWeth, nil)
	ctx := context.Background()
	startWeth := env.balance(t, weth, vaultAddr)

	env.hedge(t, "-0.5")
	pos := env.manager.Position()
	if _, _, err := env.pool.SwapToTick(ctx, pos.UpperTick+env.pool.TickSpacing()); err != nil {
		t.Fatalf("swap: %v", err)
	}
	env.hedge(t, "-0.2")

	if env.balance(t, weth, vaultAddr).Cmp(startWeth) <= 0 {
		t.Fatalf("expected custody to receive filled proceeds")
	}
	next := env.manager.Position()
	if !next.Delta.Equal(decimal.RequireFromString("-0.2")) {
		t.Fatalf("expected fresh order for -0.2, got %s", next.Delta)
	}
}

func TestHedgeZeroIsNoop(t *testing.T) {
	env := newTestEnv(t, usdcWeth, nil)
	pos, err := env.controller.HedgeDelta(context.Background(), vaultAddr, decimal.Zero)
	if err != nil {
		t.Fatalf("hedge: %v", err)
	}
	if pos.Active() {
		t.Fatalf("expected no position")
	}
}

func TestHedgeRequiresCustody(t *testing.T) {
	env := newTestEnv(t, usdcWeth, nil)
	for _, caller := range []struct {
		name string
		addr common.Address
	}{{"stranger", strangerAddr}, {"manager", managerAddr}} {
		_, err := env.controller.HedgeDelta(context.Background(), caller.addr, decimal.NewFromInt(-1))
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", caller.name, err)
		}
	}
}

func TestHedgeFailsOnOracleError(t *testing.T) {
	env := newTestEnv(t, usdcWeth, nil)
	env.oracle.SetError(errors.New("stale"))
	if _, err := env.controller.HedgeDelta(context.Background(), vaultAddr, decimal.NewFromInt(-1)); err == nil {
		t.Fatalf("expected oracle failure")
	}
	if env.manager.Position().Active() {
		t.Fatalf("expected no position after failed hedge")
	}
}

func TestHedgeInsufficientCustodyLeavesNoOrder(t *testing.T) {
	env := newTestEnv(t, usdcWeth, nil)
	_, err := env.controller.HedgeDelta(context.Background(), vaultAddr, decimal.NewFromInt(-1_000_000))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if env.manager.Position().Active() {
		t.Fatalf("expected no position after failed hedge")
	}
}

func TestHedgeRejectedNetLeavesUnfilledOrder(t *testing.T) {
	env := newTestEnv(t, usdcWeth, nil)
	env.hedge(t, "-0.5")
	before := env.manager.Position()
	vaultUSDC := env.balance(t, usdc, vaultAddr)

	_, err := env.controller.HedgeDelta(context.Background(), vaultAddr, decimal.RequireFromString("0.50000000000000000001"))
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	after := env.manager.Position()
	if after.LowerTick != before.LowerTick || after.UpperTick != before.UpperTick || after.Liquidity.Cmp(before.Liquidity) != 0 {
		t.Fatalf("expected order [%d, %d] kept, got [%d, %d]", before.LowerTick, before.UpperTick, after.LowerTick, after.UpperTick)
	}
	if got := env.balance(t, usdc, vaultAddr); got.Cmp(vaultUSDC) != 0 {
		t.Fatalf("expected custody USDC %s, got %s", vaultUSDC, got)
	}
	if st := env.state(t); st != StateActiveUnfilled {
		t.Fatalf("expected %s, got %s", StateActiveUnfilled, st)
	}
}

func TestHedgeStaleOracleLeavesFilledOrder(t *testing.T) {
	env := newTestEnv(t, usdcWeth, nil)
	ctx := context.Background()
	env.hedge(t, "-0.5")
	pos := env.manager.Position()
	if _, _, err := env.pool.SwapToTick(ctx, pos.UpperTick); err != nil {
		t.Fatalf("swap: %v", err)
	}
	vaultWeth := env.balance(t, weth, vaultAddr)

	env.oracle.SetError(errors.New("stale"))
	if _, err := env.controller.HedgeDelta(ctx, vaultAddr, decimal.RequireFromString("-0.2")); err == nil {
		t.Fatalf("expected oracle failure")
	}
	if lower, upper := env.manager.CurrentPosition(); lower != pos.LowerTick || upper != pos.UpperTick {
		t.Fatalf("expected order [%d, %d] kept, got [%d, %d]", pos.LowerTick, pos.UpperTick, lower, upper)
	}
	if got := env.balance(t, weth, vaultAddr); got.Cmp(vaultWeth) != 0 {
		t.Fatalf("expected custody WETH %s, got %s", vaultWeth, got)
	}
	if st := env.state(t); st != StateActiveFilled {
		t.Fatalf("expected %s, got %s", StateActiveFilled, st)
	}

	env.oracle.SetError(nil)
	env.hedge(t, "-0.2")
	if env.balance(t, weth, vaultAddr).Cmp(vaultWeth) <= 0 {
		t.Fatalf("expected custody to receive filled proceeds after recovery")
	}
}

func TestHedgeShortfallKeepsExistingOrder(t *testing.T) {
	env := newTestEnv(t, usdcWeth, nil)
	env.hedge(t, "-0.5")
	before := env.manager.Position()
	engineUSDC := env.balance(t, usdc, engineAddr)

	_, err := env.controller.HedgeDelta(context.Background(), vaultAddr, decimal.NewFromInt(-1_000_000))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if lower, upper := env.manager.CurrentPosition(); lower != before.LowerTick || upper != before.UpperTick {
		t.Fatalf("expected order kept, got [%d, %d]", lower, upper)
	}
	if bal := env.balance(t, usdc, engineAddr); bal.Cmp(engineUSDC) != 0 {
		t.Fatalf("expected engine USDC %s, got %s", engineUSDC, bal)
	}
}

func TestGetPoolPrice(t *testing.T) {
	env := newTestEnv(t, usdcWeth, nil)
	price, inverted, err := env.controller.GetPoolPrice(context.Background())
	if err != nil {
		t.Fatalf("pool price: %v", err)
	}
	if !inverted {
		t.Fatalf("expected inverted USDC/WETH pool")
	}
	if price.Sub(decimal.NewFromInt(3280)).Abs().GreaterThan(decimal.RequireFromString("0.001")) {
		t.Fatalf("expected price near 3280, got %s", price)
	}
}
