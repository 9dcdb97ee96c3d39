package scenario

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rangeHedger/internal/metrics"
	"rangeHedger/internal/pricing"
	"rangeHedger/internal/rangeorder"
	"rangeHedger/internal/sim"
	"rangeHedger/internal/state"
	"rangeHedger/internal/storage"
)

// Accounts are the well-known identities of a simulated deployment.
type Accounts struct {
	Engine   common.Address `yaml:"engine"`
	Vault    common.Address `yaml:"vault"`
	Trader   common.Address `yaml:"trader"`
	Manager  common.Address `yaml:"manager"`
	Guardian common.Address `yaml:"guardian"`
	Keeper   common.Address `yaml:"keeper"`
	Stranger common.Address `yaml:"stranger"`
}

func DefaultAccounts() Accounts {
	return Accounts{
		Engine:   common.HexToAddress("0x000000000000000000000000000000000000e001"),
		Vault:    common.HexToAddress("0x000000000000000000000000000000000000e002"),
		Trader:   common.HexToAddress("0x000000000000000000000000000000000000e003"),
		Manager:  common.HexToAddress("0x000000000000000000000000000000000000e004"),
		Guardian: common.HexToAddress("0x000000000000000000000000000000000000e005"),
		Keeper:   common.HexToAddress("0x000000000000000000000000000000000000e006"),
		Stranger: common.HexToAddress("0x000000000000000000000000000000000000e007"),
	}
}

// Pair is the hedged/reference token pairing.
type Pair struct {
	HedgedToken       common.Address
	ReferenceToken    common.Address
	HedgedDecimals    uint8
	ReferenceDecimals uint8
}

// Converter returns the price converter for the pool of this pair.
func (p Pair) Converter() pricing.Converter {
	token0, _ := sim.SortTokens(p.HedgedToken, p.ReferenceToken)
	inverted := token0 == p.ReferenceToken
	d := pricing.Decimals{Token0: p.HedgedDecimals, Token1: p.ReferenceDecimals}
	if inverted {
		d = pricing.Decimals{Token0: p.ReferenceDecimals, Token1: p.HedgedDecimals}
	}
	return pricing.NewConverter(d, inverted)
}

// EnvConfig describes a simulated deployment.
type EnvConfig struct {
	Pair         Pair
	InitialPrice decimal.Decimal
	// Fees lists the fee tiers to deploy pools for. PoolFee is added when missing.
	Fees                  []uint32
	PoolFee               uint32
	RangeWidth            int
	OnlyAuthorizedFulfill bool
	// KeeperFulfill lets the keeper role fulfill while fulfill is restricted.
	KeeperFulfill bool
	Accounts      Accounts
	// ExtraRoles are granted on top of the roles of Accounts.
	ExtraRoles       map[rangeorder.Role][]common.Address
	CustodyHedged    decimal.Decimal
	CustodyReference decimal.Decimal
}

// Options carries optional collaborators for the Manager.
type Options struct {
	Store   state.Store
	Journal storage.Journal
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	// Oracle replaces the simulated oracle as the Manager's price feed.
	Oracle rangeorder.Oracle
}

// Environment is a Manager wired to simulated pools, ledger and custody.
type Environment struct {
	Config     EnvConfig
	Ledger     *sim.Ledger
	Factory    *sim.Factory
	Vault      *sim.Vault
	Oracle     *sim.Oracle
	Authority  *rangeorder.StaticAuthority
	Manager    *rangeorder.Manager
	Controller *rangeorder.Controller
}

// SimFactory adapts a simulated factory to the engine's PoolFactory.
func SimFactory(f *sim.Factory) rangeorder.PoolFactory {
	return rangeorder.PoolFactoryFunc(func(ctx context.Context, a, b common.Address, fee uint32) (rangeorder.Pool, error) {
		pool, err := f.GetPool(ctx, a, b, fee)
		if err != nil {
			return nil, err
		}
		return pool, nil
	})
}

// NewEnvironment deploys the pools, funds custody and builds the engine.
func NewEnvironment(ctx context.Context, cfg EnvConfig, opts Options) (*Environment, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if cfg.Accounts == (Accounts{}) {
		cfg.Accounts = DefaultAccounts()
	}
	if cfg.RangeWidth <= 0 {
		cfg.RangeWidth = 1
	}
	if !cfg.InitialPrice.IsPositive() {
		return nil, fmt.Errorf("initial price must be positive")
	}

	conv := cfg.Pair.Converter()
	sqrt, err := conv.PriceToSqrt(cfg.InitialPrice)
	if err != nil {
		return nil, fmt.Errorf("initial price: %w", err)
	}

	ledger := sim.NewLedger()
	factory := sim.NewFactory(ledger, cfg.Accounts.Trader, opts.Logger.Named("sim"))
	fees := cfg.Fees
	if !containsFee(fees, cfg.PoolFee) {
		fees = append(append([]uint32(nil), fees...), cfg.PoolFee)
	}
	for _, fee := range fees {
		if _, err := factory.CreatePool(cfg.Pair.HedgedToken, cfg.Pair.ReferenceToken, fee, sqrt); err != nil {
			return nil, fmt.Errorf("create pool fee %d: %w", fee, err)
		}
	}

	if cfg.CustodyHedged.IsPositive() {
		ledger.Mint(cfg.Pair.HedgedToken, cfg.Accounts.Vault, pricing.ToRaw(cfg.CustodyHedged, cfg.Pair.HedgedDecimals))
	}
	if cfg.CustodyReference.IsPositive() {
		ledger.Mint(cfg.Pair.ReferenceToken, cfg.Accounts.Vault, pricing.ToRaw(cfg.CustodyReference, cfg.Pair.ReferenceDecimals))
	}

	authority := rangeorder.NewStaticAuthority(map[rangeorder.Role][]common.Address{
		rangeorder.RoleManager:  {cfg.Accounts.Manager},
		rangeorder.RoleGuardian: {cfg.Accounts.Guardian},
		rangeorder.RoleKeeper:   {cfg.Accounts.Keeper},
	})
	for role, addrs := range cfg.ExtraRoles {
		for _, addr := range addrs {
			authority.Grant(addr, role)
		}
	}

	vault := sim.NewVault(cfg.Accounts.Vault, ledger)
	oracle := sim.NewOracle(cfg.InitialPrice)
	var feed rangeorder.Oracle = oracle
	if opts.Oracle != nil {
		feed = opts.Oracle
	}

	manager, err := rangeorder.NewManager(ctx, rangeorder.Config{
		Self:                  cfg.Accounts.Engine,
		HedgedToken:           cfg.Pair.HedgedToken,
		ReferenceToken:        cfg.Pair.ReferenceToken,
		HedgedDecimals:        cfg.Pair.HedgedDecimals,
		ReferenceDecimals:     cfg.Pair.ReferenceDecimals,
		PoolFee:               cfg.PoolFee,
		OnlyAuthorizedFulfill: cfg.OnlyAuthorizedFulfill,
		KeeperFulfill:         cfg.KeeperFulfill,
	}, rangeorder.Deps{
		Factory:   SimFactory(factory),
		Ledger:    ledger,
		Custody:   vault,
		Oracle:    feed,
		Authority: authority,
		Store:     opts.Store,
		Journal:   opts.Journal,
		Metrics:   opts.Metrics,
		Logger:    opts.Logger.Named("engine"),
	})
	if err != nil {
		return nil, err
	}

	return &Environment{
		Config:     cfg,
		Ledger:     ledger,
		Factory:    factory,
		Vault:      vault,
		Oracle:     oracle,
		Authority:  authority,
		Manager:    manager,
		Controller: rangeorder.NewController(manager, cfg.RangeWidth, opts.Logger.Named("controller")),
	}, nil
}

func containsFee(fees []uint32, fee uint32) bool {
	for _, f := range fees {
		if f == fee {
			return true
		}
	}
	return false
}

// MovePrice swaps every pool of the pair to price and updates the oracle.
func (e *Environment) MovePrice(ctx context.Context, price decimal.Decimal) error {
	conv := e.Manager.Converter()
	for _, pool := range e.Factory.Pools(e.Config.Pair.HedgedToken, e.Config.Pair.ReferenceToken) {
		if _, _, err := pool.SwapToPrice(ctx, conv, price); err != nil {
			return fmt.Errorf("move pool %s: %w", pool.Address().Hex(), err)
		}
	}
	e.Oracle.SetPrice(price)
	return nil
}

// MoveTick swaps every pool of the pair to tick and marks the oracle to the new price.
func (e *Environment) MoveTick(ctx context.Context, tick int) error {
	for _, pool := range e.Factory.Pools(e.Config.Pair.HedgedToken, e.Config.Pair.ReferenceToken) {
		if _, _, err := pool.SwapToTick(ctx, tick); err != nil {
			return fmt.Errorf("move pool %s: %w", pool.Address().Hex(), err)
		}
	}
	price, err := e.Manager.Converter().TickToPrice(tick)
	if err != nil {
		return err
	}
	e.Oracle.SetPrice(price)
	return nil
}

// Balance returns owner's balance of token in human units.
func (e *Environment) Balance(ctx context.Context, token, owner common.Address) (decimal.Decimal, error) {
	raw, err := e.Ledger.BalanceOf(ctx, token, owner)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return pricing.FromRaw(raw, e.decimals(token)), nil
}

func (e *Environment) decimals(token common.Address) uint8 {
	if token == e.Config.Pair.HedgedToken {
		return e.Config.Pair.HedgedDecimals
	}
	return e.Config.Pair.ReferenceDecimals
}

// Account resolves an account alias or a hex address.
func (e *Environment) Account(name string) (common.Address, error) {
	a := e.Config.Accounts
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "engine":
		return a.Engine, nil
	case "vault", "custody", "":
		return a.Vault, nil
	case "trader":
		return a.Trader, nil
	case "manager":
		return a.Manager, nil
	case "guardian":
		return a.Guardian, nil
	case "keeper":
		return a.Keeper, nil
	case "stranger":
		return a.Stranger, nil
	}
	if common.IsHexAddress(name) {
		return common.HexToAddress(name), nil
	}
	return common.Address{}, fmt.Errorf("unknown account %q", name)
}

// Token resolves "hedged", "reference" or a hex address.
func (e *Environment) Token(name string) (common.Address, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hedged":
		return e.Config.Pair.HedgedToken, nil
	case "reference":
		return e.Config.Pair.ReferenceToken, nil
	}
	if common.IsHexAddress(name) {
		return common.HexToAddress(name), nil
	}
	return common.Address{}, fmt.Errorf("unknown token %q", name)
}

// RawAmount converts a human amount of token into raw units.
func (e *Environment) RawAmount(token common.Address, amount decimal.Decimal) *big.Int {
	return pricing.ToRaw(amount, e.decimals(token))
}
