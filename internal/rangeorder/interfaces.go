package rangeorder

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"rangeHedger/internal/model"
)

// Pool is a concentrated-liquidity pool the engine can mint into.
type Pool interface {
	Address() common.Address
	Token0() common.Address
	Token1() common.Address
	Fee() uint32
	TickSpacing() int
	Slot0(ctx context.Context) (model.Slot0, error)
	Mint(ctx context.Context, owner common.Address, lower, upper int, liquidity *big.Int) (*big.Int, *big.Int, error)
	Burn(ctx context.Context, owner common.Address, lower, upper int, liquidity *big.Int) (*big.Int, *big.Int, error)
	Collect(ctx context.Context, owner, recipient common.Address, lower, upper int, max0, max1 *big.Int) (*big.Int, *big.Int, error)
	Position(ctx context.Context, owner common.Address, lower, upper int) (model.PositionInfo, error)
}

// PoolFactory resolves the pool for a token pair and fee tier.
type PoolFactory interface {
	GetPool(ctx context.Context, tokenA, tokenB common.Address, fee uint32) (Pool, error)
}

// PoolFactoryFunc adapts a function to PoolFactory.
type PoolFactoryFunc func(ctx context.Context, tokenA, tokenB common.Address, fee uint32) (Pool, error)

func (f PoolFactoryFunc) GetPool(ctx context.Context, tokenA, tokenB common.Address, fee uint32) (Pool, error) {
	return f(ctx, tokenA, tokenB, fee)
}

// Ledger holds the engine's free token balances.
type Ledger interface {
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	Transfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error
}

// Custody is the vault that requests hedges, funds orders and receives proceeds.
type Custody interface {
	Address() common.Address
	Fund(ctx context.Context, token, to common.Address, amount *big.Int) error
}

// PriceShadow moves simulated pools to an externally observed price.
type PriceShadow interface {
	SyncPrice(ctx context.Context, tokenA, tokenB common.Address, sqrtPriceX96 *big.Int) error
}

// Oracle reports the reference price in reference units per hedged unit.
type Oracle interface {
	Price(ctx context.Context) (decimal.Decimal, error)
}
