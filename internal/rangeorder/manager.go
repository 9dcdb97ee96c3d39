package rangeorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rangeHedger/internal/metrics"
	"rangeHedger/internal/model"
	"rangeHedger/internal/pricing"
	"rangeHedger/internal/state"
	"rangeHedger/internal/storage"
)

// Config fixes the token pairing and initial settings of a Manager.
type Config struct {
	// Self is the engine's own account on the ledger and in the pool.
	Self                  common.Address
	HedgedToken           common.Address
	ReferenceToken        common.Address
	HedgedDecimals        uint8
	ReferenceDecimals     uint8
	PoolFee               uint32
	OnlyAuthorizedFulfill bool
	// KeeperFulfill lets keepers fulfill while fulfill is restricted.
	KeeperFulfill bool
}

// Deps are the collaborators of a Manager. Store, Journal, Metrics and Logger are optional.
type Deps struct {
	Factory   PoolFactory
	Ledger    Ledger
	Custody   Custody
	Oracle    Oracle
	Authority Authority
	Store     state.Store
	Journal   storage.Journal
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	Now       func() time.Time
}

// RangeOrderParams describes a range order to mint.
type RangeOrderParams struct {
	LowerTick int
	UpperTick int
	// SqrtPriceX96 is the price used to size liquidity; nil means the pool's current price.
	SqrtPriceX96 *big.Int
	MeanPrice    decimal.Decimal
	Direction    model.Direction
	Delta        decimal.Decimal
}

// Proceeds are the token amounts released by a fulfill or exit.
type Proceeds struct {
	Amount0 *big.Int `json:"amount0"`
	Amount1 *big.Int `json:"amount1"`
}

// Manager owns the single range order and every transition of it.
// All methods are serialized by one mutex.
type Manager struct {
	mu sync.Mutex

	cfg       Config
	token0    common.Address
	token1    common.Address
	conv      pricing.Converter
	factory   PoolFactory
	ledger    Ledger
	custody   Custody
	oracle    Oracle
	authority Authority
	store     state.Store
	journal   storage.Journal
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time

	pool                  Pool
	poolFee               uint32
	onlyAuthorizedFulfill bool
	position              model.Position
}

func NewManager(ctx context.Context, cfg Config, deps Deps) (*Manager, error) {
	switch {
	case deps.Factory == nil:
		return nil, errors.New("pool factory is required")
	case deps.Ledger == nil:
		return nil, errors.New("ledger is required")
	case deps.Custody == nil:
		return nil, errors.New("custody is required")
	case deps.Oracle == nil:
		return nil, errors.New("oracle is required")
	case deps.Authority == nil:
		return nil, errors.New("authority is required")
	case cfg.HedgedToken == cfg.ReferenceToken:
		return nil, errors.New("hedged and reference tokens must differ")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	token0, token1 := sortTokens(cfg.HedgedToken, cfg.ReferenceToken)
	inverted := token0 == cfg.ReferenceToken
	decimals := pricing.Decimals{Token0: cfg.HedgedDecimals, Token1: cfg.ReferenceDecimals}
	if inverted {
		decimals = pricing.Decimals{Token0: cfg.ReferenceDecimals, Token1: cfg.HedgedDecimals}
	}

	m := &Manager{
		cfg:                   cfg,
		token0:                token0,
		token1:                token1,
		conv:                  pricing.NewConverter(decimals, inverted),
		factory:               deps.Factory,
		ledger:                deps.Ledger,
		custody:               deps.Custody,
		oracle:                deps.Oracle,
		authority:             deps.Authority,
		store:                 deps.Store,
		journal:               deps.Journal,
		metrics:               deps.Metrics,
		logger:                deps.Logger,
		now:                   deps.Now,
		poolFee:               cfg.PoolFee,
		onlyAuthorizedFulfill: cfg.OnlyAuthorizedFulfill,
	}

	snapshot, ok, err := state.LoadEngineSnapshot(ctx, deps.Store)
	if err != nil {
		return nil, fmt.Errorf("load engine snapshot: %w", err)
	}
	if ok {
		m.poolFee = snapshot.PoolFee
		m.onlyAuthorizedFulfill = snapshot.OnlyAuthorizedFulfill
		m.position = snapshot.Position
	}

	pool, err := m.factory.GetPool(ctx, token0, token1, m.poolFee)
	if err != nil {
		return nil, fmt.Errorf("resolve pool fee %d: %w", m.poolFee, err)
	}
	m.pool = pool

	if m.position.Active() {
		if err := m.reconcileLocked(ctx); err != nil {
			return nil, err
		}
	}

	m.logger.Info("range order manager ready",
		zap.String("pool", pool.Address().Hex()),
		zap.Uint32("fee", m.poolFee),
		zap.Int("tick_spacing", pool.TickSpacing()),
		zap.Bool("inverted", inverted),
		zap.Bool("restored", ok),
		zap.Int("lower_tick", m.position.LowerTick),
		zap.Int("upper_tick", m.position.UpperTick),
	)
	return m, nil
}

// reconcileLocked drops a restored position the pool no longer holds.
func (m *Manager) reconcileLocked(ctx context.Context) error {
	info, err := m.pool.Position(ctx, m.cfg.Self, m.position.LowerTick, m.position.UpperTick)
	if err != nil {
		return fmt.Errorf("read restored position: %w", err)
	}
	if info.Liquidity != nil && info.Liquidity.Sign() > 0 {
		return nil
	}
	dropped := m.position
	m.logger.Warn("restored position not found in pool, dropping it",
		zap.Int("lower_tick", dropped.LowerTick),
		zap.Int("upper_tick", dropped.UpperTick),
		zap.String("direction", string(dropped.Direction)),
		zap.String("liquidity", bigString(dropped.Liquidity)),
		zap.String("amount", bigString(dropped.Amount)),
		zap.String("delta", dropped.Delta.String()),
	)
	m.position = model.Position{}
	m.metrics.OrdersDropped.Inc()
	amount0, amount1 := new(big.Int), new(big.Int)
	if dropped.Amount != nil {
		if dropped.Direction == model.DirectionAbove {
			amount0.Set(dropped.Amount)
		} else {
			amount1.Set(dropped.Amount)
		}
	}
	m.recordLocked(ctx, model.OrderDropped, m.cfg.Self, dropped, amount0, amount1)
	return nil
}

func sortTokens(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		return b, a
	}
	return a, b
}

// Converter returns the price converter for the managed pair.
func (m *Manager) Converter() pricing.Converter { return m.conv }

// Self returns the engine's own address.
func (m *Manager) Self() common.Address { return m.cfg.Self }

// Tokens returns the pool-ordered token pair.
func (m *Manager) Tokens() (common.Address, common.Address) { return m.token0, m.token1 }

// HedgedToken returns the token whose exposure is hedged.
func (m *Manager) HedgedToken() common.Address { return m.cfg.HedgedToken }

// ReferenceToken returns the token prices are quoted in.
func (m *Manager) ReferenceToken() common.Address { return m.cfg.ReferenceToken }

func (m *Manager) Pool() Pool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool
}

func (m *Manager) PoolFee() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.poolFee
}

func (m *Manager) OnlyAuthorizedFulfill() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onlyAuthorizedFulfill
}

// CurrentPosition returns the active band, or (0, 0) when inactive.
func (m *Manager) CurrentPosition() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position.LowerTick, m.position.UpperTick
}

// Position returns a copy of the recorded order.
func (m *Manager) Position() model.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clonePosition(m.position)
}

// State derives the order state from the pool's current tick.
func (m *Manager) State(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.position.Active() {
		return StateInactive, nil
	}
	slot0, err := m.pool.Slot0(ctx)
	if err != nil {
		return "", fmt.Errorf("read slot0: %w", err)
	}
	return stateOf(m.position, slot0.Tick), nil
}

// CreateRangeOrder mints a single-sided position in [LowerTick, UpperTick].
func (m *Manager) CreateRangeOrder(ctx context.Context, caller common.Address, params RangeOrderParams, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.authorize(caller, RoleManager); err != nil {
		return err
	}
	if err := m.createLocked(ctx, caller, params, amount); err != nil {
		m.metrics.OrdersFailed.Inc()
		return err
	}
	return nil
}

// FulfillActiveRangeOrder harvests a fully crossed order to custody.
func (m *Manager) FulfillActiveRangeOrder(ctx context.Context, caller common.Address) (Proceeds, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.onlyAuthorizedFulfill && !m.mayFulfill(caller) {
		return Proceeds{}, ErrUnauthorizedFulfill
	}
	return m.fulfillLocked(ctx, caller)
}

func (m *Manager) mayFulfill(caller common.Address) bool {
	if m.authority.HasRole(caller, RoleManager) {
		return true
	}
	return m.cfg.KeeperFulfill && m.authority.HasRole(caller, RoleKeeper)
}

// ShadowPrice moves the pair's pools to sqrtPriceX96 through shadow. It holds
// the engine lock, so no hedge observes the price mid-operation.
func (m *Manager) ShadowPrice(ctx context.Context, shadow PriceShadow, sqrtPriceX96 *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return shadow.SyncPrice(ctx, m.cfg.HedgedToken, m.cfg.ReferenceToken, sqrtPriceX96)
}

// ExitActiveRangeOrder pulls the order back to the engine regardless of fill.
// It does nothing when no order is active.
func (m *Manager) ExitActiveRangeOrder(ctx context.Context, caller common.Address) (Proceeds, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.authorize(caller, RoleManager); err != nil {
		return Proceeds{}, err
	}
	return m.exitLocked(ctx, caller)
}

// SetPoolFee switches to the pool of another fee tier.
func (m *Manager) SetPoolFee(ctx context.Context, caller common.Address, fee uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.authorize(caller, RoleManager); err != nil {
		return err
	}
	if m.position.Active() {
		return ErrInActivePosition
	}
	pool, err := m.factory.GetPool(ctx, m.token0, m.token1, fee)
	if err != nil {
		return fmt.Errorf("resolve pool fee %d: %w", fee, err)
	}
	prev := m.poolFee
	m.pool = pool
	m.poolFee = fee
	m.persistLocked(ctx)
	m.logger.Info("pool fee updated",
		zap.Uint32("from", prev),
		zap.Uint32("to", fee),
		zap.String("pool", pool.Address().Hex()),
		zap.Int("tick_spacing", pool.TickSpacing()),
	)
	return nil
}

// SetAuthorizedFulfill toggles whether fulfill is restricted to authorized callers.
func (m *Manager) SetAuthorizedFulfill(ctx context.Context, caller common.Address, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.authorize(caller, RoleManager); err != nil {
		return err
	}
	m.onlyAuthorizedFulfill = enabled
	m.persistLocked(ctx)
	m.logger.Info("authorized fulfill updated", zap.Bool("enabled", enabled))
	return nil
}

func (m *Manager) authorize(caller common.Address, role Role) error {
	if !m.authority.HasRole(caller, role) {
		return ErrUnauthorized
	}
	return nil
}

func (m *Manager) requireCustody(caller common.Address) error {
	if caller != m.custody.Address() {
		return ErrUnauthorized
	}
	return nil
}

// mintPlan is a range order that passed every check short of moving funds.
type mintPlan struct {
	params    RangeOrderParams
	amount    *big.Int
	token     common.Address
	liquidity *big.Int
}

func (m *Manager) createLocked(ctx context.Context, caller common.Address, params RangeOrderParams, amount *big.Int) error {
	if m.position.Active() {
		return ErrInActivePosition
	}
	plan, err := m.planLocked(ctx, params, amount)
	if err != nil {
		return err
	}
	if err := m.checkFundsLocked(ctx, plan.token, plan.amount, nil); err != nil {
		return err
	}
	return m.mintLocked(ctx, caller, plan)
}

// planLocked validates an order against the pool's current tick and sizes its liquidity.
func (m *Manager) planLocked(ctx context.Context, params RangeOrderParams, amount *big.Int) (mintPlan, error) {
	if amount == nil || amount.Sign() <= 0 {
		return mintPlan{}, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	slot0, err := m.pool.Slot0(ctx)
	if err != nil {
		return mintPlan{}, fmt.Errorf("read slot0: %w", err)
	}
	if err := m.validateRange(params, slot0.Tick); err != nil {
		return mintPlan{}, err
	}
	sqrtLower, err := pricing.SqrtRatioAtTick(params.LowerTick)
	if err != nil {
		return mintPlan{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	sqrtUpper, err := pricing.SqrtRatioAtTick(params.UpperTick)
	if err != nil {
		return mintPlan{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}

	hint := params.SqrtPriceX96
	if hint == nil {
		hint = slot0.SqrtPriceX96
	}
	amount0, amount1 := new(big.Int), new(big.Int)
	token := m.token1
	if params.Direction == model.DirectionAbove {
		amount0 = amount
		token = m.token0
	} else {
		amount1 = amount
	}
	liquidity := pricing.LiquidityForAmounts(hint, sqrtLower, sqrtUpper, amount0, amount1)
	if liquidity.Sign() <= 0 {
		return mintPlan{}, fmt.Errorf("%w: amount %s too small for range [%d, %d]", ErrInvalidAmount, amount, params.LowerTick, params.UpperTick)
	}
	return mintPlan{params: params, amount: new(big.Int).Set(amount), token: token, liquidity: liquidity}, nil
}

// checkFundsLocked fails unless the engine, custody and incoming proceeds together cover amount.
func (m *Manager) checkFundsLocked(ctx context.Context, token common.Address, amount, incoming *big.Int) error {
	own, err := m.ledger.BalanceOf(ctx, token, m.cfg.Self)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	vault, err := m.ledger.BalanceOf(ctx, token, m.custody.Address())
	if err != nil {
		return fmt.Errorf("read custody balance: %w", err)
	}
	available := new(big.Int).Add(own, vault)
	if incoming != nil {
		available.Add(available, incoming)
	}
	if available.Cmp(amount) < 0 {
		return fmt.Errorf("%w: need %s of %s, %s available", ErrInsufficientFunds, amount, token.Hex(), available)
	}
	return nil
}

// mintLocked funds and mints a checked plan. Funds pulled from custody go back
// if the mint fails.
func (m *Manager) mintLocked(ctx context.Context, caller common.Address, plan mintPlan) error {
	params := plan.params
	slot0, err := m.pool.Slot0(ctx)
	if err != nil {
		return fmt.Errorf("read slot0: %w", err)
	}
	if err := m.validateRange(params, slot0.Tick); err != nil {
		return err
	}

	funded, err := m.ensureFunds(ctx, plan.token, plan.amount)
	if err != nil {
		return err
	}
	used0, used1, err := m.pool.Mint(ctx, m.cfg.Self, params.LowerTick, params.UpperTick, plan.liquidity)
	if err != nil {
		m.refundLocked(ctx, plan.token, funded)
		return fmt.Errorf("mint: %w", err)
	}

	m.position = model.Position{
		LowerTick: params.LowerTick,
		UpperTick: params.UpperTick,
		Liquidity: plan.liquidity,
		Direction: params.Direction,
		MeanPrice: params.MeanPrice,
		Amount:    plan.amount,
		Delta:     params.Delta,
		CreatedAt: m.now().UTC(),
	}
	m.metrics.OrdersCreated.Inc()
	m.recordLocked(ctx, model.OrderCreated, caller, m.position, used0, used1)
	m.logger.Info("range order created",
		zap.String("direction", string(params.Direction)),
		zap.Int("lower_tick", params.LowerTick),
		zap.Int("upper_tick", params.UpperTick),
		zap.String("liquidity", plan.liquidity.String()),
		zap.String("amount0", used0.String()),
		zap.String("amount1", used1.String()),
		zap.String("mean_price", params.MeanPrice.String()),
		zap.String("delta", params.Delta.String()),
	)
	return nil
}

func (m *Manager) validateRange(params RangeOrderParams, currentTick int) error {
	spacing := m.pool.TickSpacing()
	switch {
	case !params.Direction.Valid():
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidRange, params.Direction)
	case params.LowerTick >= params.UpperTick:
		return fmt.Errorf("%w: lower %d not below upper %d", ErrInvalidRange, params.LowerTick, params.UpperTick)
	case params.LowerTick < pricing.MinTick || params.UpperTick > pricing.MaxTick:
		return fmt.Errorf("%w: [%d, %d] out of bounds", ErrInvalidRange, params.LowerTick, params.UpperTick)
	case params.LowerTick%spacing != 0 || params.UpperTick%spacing != 0:
		return fmt.Errorf("%w: ticks must be multiples of %d", ErrInvalidRange, spacing)
	case params.Direction == model.DirectionAbove && params.LowerTick <= currentTick:
		return fmt.Errorf("%w: ABOVE band must start above tick %d", ErrInvalidRange, currentTick)
	case params.Direction == model.DirectionBelow && params.UpperTick > currentTick:
		return fmt.Errorf("%w: BELOW band must end at or below tick %d", ErrInvalidRange, currentTick)
	}
	return nil
}

// ensureFunds tops up the engine's balance of token from custody and returns
// the amount pulled.
func (m *Manager) ensureFunds(ctx context.Context, token common.Address, amount *big.Int) (*big.Int, error) {
	bal, err := m.ledger.BalanceOf(ctx, token, m.cfg.Self)
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	if bal.Cmp(amount) >= 0 {
		return new(big.Int), nil
	}
	shortfall := new(big.Int).Sub(amount, bal)
	if err := m.custody.Fund(ctx, token, m.cfg.Self, shortfall); err != nil {
		return nil, fmt.Errorf("fund %s from custody: %w", shortfall, err)
	}
	m.logger.Debug("funded from custody", zap.String("token", token.Hex()), zap.String("amount", shortfall.String()))
	return shortfall, nil
}

func (m *Manager) refundLocked(ctx context.Context, token common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() == 0 {
		return
	}
	if err := m.ledger.Transfer(ctx, token, m.cfg.Self, m.custody.Address(), amount); err != nil {
		m.logger.Error("refund to custody failed",
			zap.String("token", token.Hex()),
			zap.String("amount", amount.String()),
			zap.Error(err),
		)
		return
	}
	m.logger.Warn("refunded custody after failed mint", zap.String("token", token.Hex()), zap.String("amount", amount.String()))
}

func (m *Manager) fulfillLocked(ctx context.Context, caller common.Address) (Proceeds, error) {
	if !m.position.Active() {
		return Proceeds{}, ErrNoActivePosition
	}
	slot0, err := m.pool.Slot0(ctx)
	if err != nil {
		return Proceeds{}, fmt.Errorf("read slot0: %w", err)
	}
	if !m.position.Filled(slot0.Tick) {
		return Proceeds{}, ErrRangeOrderNotFilled
	}
	proceeds, err := m.withdrawLocked(ctx, m.custody.Address())
	if err != nil {
		m.metrics.OrdersFailed.Inc()
		return Proceeds{}, err
	}
	closed := m.position
	m.position = model.Position{}
	m.metrics.OrdersFulfilled.Inc()
	m.recordLocked(ctx, model.OrderFulfilled, caller, closed, proceeds.Amount0, proceeds.Amount1)
	m.logger.Info("range order fulfilled",
		zap.Int("lower_tick", closed.LowerTick),
		zap.Int("upper_tick", closed.UpperTick),
		zap.Int("tick", slot0.Tick),
		zap.String("amount0", proceeds.Amount0.String()),
		zap.String("amount1", proceeds.Amount1.String()),
	)
	return proceeds, nil
}

func (m *Manager) exitLocked(ctx context.Context, caller common.Address) (Proceeds, error) {
	if !m.position.Active() {
		return Proceeds{Amount0: new(big.Int), Amount1: new(big.Int)}, nil
	}
	proceeds, err := m.withdrawLocked(ctx, m.cfg.Self)
	if err != nil {
		m.metrics.OrdersFailed.Inc()
		return Proceeds{}, err
	}
	closed := m.position
	m.position = model.Position{}
	m.metrics.OrdersExited.Inc()
	m.recordLocked(ctx, model.OrderExited, caller, closed, proceeds.Amount0, proceeds.Amount1)
	m.logger.Info("range order exited",
		zap.Int("lower_tick", closed.LowerTick),
		zap.Int("upper_tick", closed.UpperTick),
		zap.String("amount0", proceeds.Amount0.String()),
		zap.String("amount1", proceeds.Amount1.String()),
	)
	return proceeds, nil
}

// withdrawLocked burns all liquidity of the order and collects everything owed to recipient.
func (m *Manager) withdrawLocked(ctx context.Context, recipient common.Address) (Proceeds, error) {
	lower, upper := m.position.LowerTick, m.position.UpperTick
	info, err := m.pool.Position(ctx, m.cfg.Self, lower, upper)
	if err != nil {
		return Proceeds{}, fmt.Errorf("read position: %w", err)
	}
	if info.Liquidity != nil && info.Liquidity.Sign() > 0 {
		if _, _, err := m.pool.Burn(ctx, m.cfg.Self, lower, upper, info.Liquidity); err != nil {
			return Proceeds{}, fmt.Errorf("burn: %w", err)
		}
	}
	amount0, amount1, err := m.pool.Collect(ctx, m.cfg.Self, recipient, lower, upper, pricing.MaxUint128, pricing.MaxUint128)
	if err != nil {
		return Proceeds{}, fmt.Errorf("collect: %w", err)
	}
	return Proceeds{Amount0: amount0, Amount1: amount1}, nil
}

func (m *Manager) recordLocked(ctx context.Context, kind model.OrderEventKind, caller common.Address, pos model.Position, amount0, amount1 *big.Int) {
	m.persistLocked(ctx)
	if m.journal == nil {
		return
	}
	event := model.OrderEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Pool:      m.pool.Address().Hex(),
		Fee:       m.poolFee,
		LowerTick: pos.LowerTick,
		UpperTick: pos.UpperTick,
		Direction: pos.Direction,
		Liquidity: bigString(pos.Liquidity),
		Amount0:   bigString(amount0),
		Amount1:   bigString(amount1),
		MeanPrice: pos.MeanPrice.String(),
		Delta:     pos.Delta.String(),
		Caller:    caller.Hex(),
		Time:      m.now().UTC(),
	}
	if err := m.journal.PutOrderEvents(ctx, []model.OrderEvent{event}); err != nil {
		m.logger.Warn("journal order event failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func (m *Manager) persistLocked(ctx context.Context) {
	if m.store == nil {
		return
	}
	snapshot := state.EngineSnapshot{
		Position:              m.position,
		PoolFee:               m.poolFee,
		OnlyAuthorizedFulfill: m.onlyAuthorizedFulfill,
		UpdatedAtMS:           m.now().UnixMilli(),
	}
	if err := state.SaveEngineSnapshot(ctx, m.store, snapshot); err != nil {
		m.logger.Warn("persist engine snapshot failed", zap.Error(err))
	}
}

func clonePosition(p model.Position) model.Position {
	if p.Liquidity != nil {
		p.Liquidity = new(big.Int).Set(p.Liquidity)
	}
	if p.Amount != nil {
		p.Amount = new(big.Int).Set(p.Amount)
	}
	return p
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
