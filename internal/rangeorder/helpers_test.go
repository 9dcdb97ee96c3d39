package rangeorder

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"rangeHedger/internal/pricing"
	"rangeHedger/internal/sim"
)

var (
	usdc = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	weth = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	wbtc = common.HexToAddress("0x0000000000000000000000000000000000000010")
	dai  = common.HexToAddress("0x00000000000000000000000000000000000000f0")

	engineAddr   = common.HexToAddress("0x0000000000000000000000000000000000001001")
	vaultAddr    = common.HexToAddress("0x0000000000000000000000000000000000001002")
	managerAddr  = common.HexToAddress("0x0000000000000000000000000000000000001003")
	guardianAddr = common.HexToAddress("0x0000000000000000000000000000000000001004")
	traderAddr   = common.HexToAddress("0x0000000000000000000000000000000000001005")
	strangerAddr = common.HexToAddress("0x0000000000000000000000000000000000001006")
)

type pairSpec struct {
	hedged, reference       common.Address
	hedgedDec, referenceDec uint8
	price                   string
}

// USDC is token0, so the pool quotes WETH per USDC.
var usdcWeth = pairSpec{hedged: weth, reference: usdc, hedgedDec: 18, referenceDec: 6, price: "3280"}

// WBTC is token0, so the pool quotes DAI per WBTC.
var wbtcDai = pairSpec{hedged: wbtc, reference: dai, hedgedDec: 8, referenceDec: 18, price: "27000"}

type testEnv struct {
	ledger     *sim.Ledger
	factory    *sim.Factory
	pool       *sim.Pool
	vault      *sim.Vault
	oracle     *sim.Oracle
	manager    *Manager
	controller *Controller
	pair       pairSpec
	deps       Deps
	cfg        Config
}

func simFactory(f *sim.Factory) PoolFactory {
	return PoolFactoryFunc(func(ctx context.Context, a, b common.Address, fee uint32) (Pool, error) {
		p, err := f.GetPool(ctx, a, b, fee)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func newTestEnv(t *testing.T, pair pairSpec, tweak func(*Config, *Deps)) *testEnv {
	t.Helper()
	ledger := sim.NewLedger()
	factory := sim.NewFactory(ledger, traderAddr, nil)

	token0, _ := sim.SortTokens(pair.hedged, pair.reference)
	inverted := token0 == pair.reference
	d := pricing.Decimals{Token0: pair.hedgedDec, Token1: pair.referenceDec}
	if inverted {
		d = pricing.Decimals{Token0: pair.referenceDec, Token1: pair.hedgedDec}
	}
	sqrt, err := pricing.NewConverter(d, inverted).PriceToSqrt(decimal.RequireFromString(pair.price))
	if err != nil {
		t.Fatalf("initial sqrt: %v", err)
	}
	pool, err := factory.CreatePool(pair.hedged, pair.reference, 3000, sqrt)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	if _, err := factory.CreatePool(pair.hedged, pair.reference, 500, sqrt); err != nil {
		t.Fatalf("create pool: %v", err)
	}

	ledger.Mint(pair.reference, vaultAddr, new(big.Int).Mul(big.NewInt(10_000_000), pow10(pair.referenceDec)))
	ledger.Mint(pair.hedged, vaultAddr, new(big.Int).Mul(big.NewInt(1_000), pow10(pair.hedgedDec)))

	vault := sim.NewVault(vaultAddr, ledger)
	oracle := sim.NewOracle(decimal.RequireFromString(pair.price))
	cfg := Config{
		Self:                  engineAddr,
		HedgedToken:           pair.hedged,
		ReferenceToken:        pair.reference,
		HedgedDecimals:        pair.hedgedDec,
		ReferenceDecimals:     pair.referenceDec,
		PoolFee:               3000,
		OnlyAuthorizedFulfill: true,
	}
	deps := Deps{
		Factory: simFactory(factory),
		Ledger:  ledger,
		Custody: vault,
		Oracle:  oracle,
		Authority: NewStaticAuthority(map[Role][]common.Address{
			RoleManager:  {managerAddr},
			RoleGuardian: {guardianAddr},
		}),
	}
	if tweak != nil {
		tweak(&cfg, &deps)
	}
	manager, err := NewManager(context.Background(), cfg, deps)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return &testEnv{
		ledger:     ledger,
		factory:    factory,
		pool:       pool,
		vault:      vault,
		oracle:     oracle,
		manager:    manager,
		controller: NewController(manager, 1, nil),
		pair:       pair,
		deps:       deps,
		cfg:        cfg,
	}
}

func (e *testEnv) balance(t *testing.T, token, owner common.Address) *big.Int {
	t.Helper()
	bal, err := e.ledger.BalanceOf(context.Background(), token, owner)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal
}

func (e *testEnv) hedge(t *testing.T, delta string) {
	t.Helper()
	if _, err := e.controller.HedgeDelta(context.Background(), vaultAddr, decimal.RequireFromString(delta)); err != nil {
		t.Fatalf("hedge %s: %v", delta, err)
	}
}

func (e *testEnv) tick(t *testing.T) int {
	t.Helper()
	slot0, err := e.pool.Slot0(context.Background())
	if err != nil {
		t.Fatalf("slot0: %v", err)
	}
	return slot0.Tick
}

func (e *testEnv) state(t *testing.T) State {
	t.Helper()
	st, err := e.manager.State(context.Background())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	return st
}
