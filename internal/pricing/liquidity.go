package pricing

import (
	"math/big"

	"github.com/daoleno/uniswapv3-sdk/utils"
)

func sortRatios(a, b *big.Int) (*big.Int, *big.Int) {
	if a.Cmp(b) > 0 {
		return b, a
	}
	return a, b
}

// Amount0Delta returns the token0 amount spanned by liquidity between two sqrt prices.
func Amount0Delta(sqrtA, sqrtB, liquidity *big.Int, roundUp bool) *big.Int {
	a, b := sortRatios(sqrtA, sqrtB)
	if a.Sign() <= 0 || a.Cmp(b) == 0 || liquidity.Sign() <= 0 {
		return new(big.Int)
	}
	return utils.GetAmount0Delta(a, b, liquidity, roundUp)
}

// Amount1Delta returns the token1 amount spanned by liquidity between two sqrt prices.
func Amount1Delta(sqrtA, sqrtB, liquidity *big.Int, roundUp bool) *big.Int {
	if liquidity.Sign() <= 0 {
		return new(big.Int)
	}
	return utils.GetAmount1Delta(sqrtA, sqrtB, liquidity, roundUp)
}

// LiquidityForAmount0 returns the liquidity a token0 amount buys over [sqrtA, sqrtB].
func LiquidityForAmount0(sqrtA, sqrtB, amount0 *big.Int) *big.Int {
	a, b := sortRatios(sqrtA, sqrtB)
	if a.Cmp(b) == 0 {
		return new(big.Int)
	}
	return utils.MaxLiquidityForAmounts(a, a, b, amount0, new(big.Int), false)
}

// LiquidityForAmount1 returns the liquidity a token1 amount buys over [sqrtA, sqrtB].
func LiquidityForAmount1(sqrtA, sqrtB, amount1 *big.Int) *big.Int {
	a, b := sortRatios(sqrtA, sqrtB)
	if a.Cmp(b) == 0 {
		return new(big.Int)
	}
	return utils.MaxLiquidityForAmounts(b, a, b, new(big.Int), amount1, false)
}

// LiquidityForAmounts returns the maximum liquidity the amounts support at the
// given price, matching the periphery's rounding.
func LiquidityForAmounts(sqrtPrice, sqrtA, sqrtB, amount0, amount1 *big.Int) *big.Int {
	a, b := sortRatios(sqrtA, sqrtB)
	if a.Cmp(b) == 0 {
		return new(big.Int)
	}
	return utils.MaxLiquidityForAmounts(sqrtPrice, a, b, amount0, amount1, false)
}

// AmountsForLiquidity returns the token amounts held by liquidity at the given price, rounded down.
func AmountsForLiquidity(sqrtPrice, sqrtA, sqrtB, liquidity *big.Int) (*big.Int, *big.Int) {
	a, b := sortRatios(sqrtA, sqrtB)
	switch {
	case sqrtPrice.Cmp(a) <= 0:
		return Amount0Delta(a, b, liquidity, false), new(big.Int)
	case sqrtPrice.Cmp(b) < 0:
		return Amount0Delta(sqrtPrice, b, liquidity, false), Amount1Delta(a, sqrtPrice, liquidity, false)
	default:
		return new(big.Int), Amount1Delta(a, b, liquidity, false)
	}
}
