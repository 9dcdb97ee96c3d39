package pricing

import (
	"fmt"
	"math/big"

	"github.com/daoleno/uniswapv3-sdk/utils"
	"github.com/shopspring/decimal"

	"rangeHedger/internal/model"
)

const (
	floatPrec         = 256
	significantDigits = 40
)

// Decimals holds token decimal counts in pool order.
type Decimals struct {
	Token0 uint8 `json:"token0"`
	Token1 uint8 `json:"token1"`
}

// SqrtRatioAtTick returns the Q64.96 sqrt price at tick.
func SqrtRatioAtTick(tick int) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("%w: %d", ErrTickOutOfRange, tick)
	}
	return utils.GetSqrtRatioAtTick(tick)
}

// TickAtSqrtRatio returns the greatest tick whose sqrt ratio is <= sqrtPriceX96.
func TickAtSqrtRatio(sqrtPriceX96 *big.Int) (int, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Cmp(MinSqrtRatio) < 0 {
		return 0, fmt.Errorf("%w: sqrt price below minimum", ErrPriceOutOfRange)
	}
	if sqrtPriceX96.Cmp(MaxSqrtRatio) >= 0 {
		return MaxTick, nil
	}
	return utils.GetTickAtSqrtRatio(sqrtPriceX96)
}

// TickToPrice converts a tick to a human price in token1 per token0,
// or token0 per token1 when inverted.
func TickToPrice(tick int, d Decimals, inverted bool) (decimal.Decimal, error) {
	sqrt, err := SqrtRatioAtTick(tick)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sqrt ratio at tick %d: %w", tick, err)
	}
	return ratToDecimal(orient(sqrtToRat(sqrt, d), inverted)), nil
}

// SqrtToPrice converts a Q64.96 sqrt price to a human price in token1 per token0.
func SqrtToPrice(sqrtPriceX96 *big.Int, d Decimals) decimal.Decimal {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return decimal.Zero
	}
	return ratToDecimal(sqrtToRat(sqrtPriceX96, d))
}

// PriceToSqrt converts a human price back into a Q64.96 sqrt price.
func PriceToSqrt(price decimal.Decimal, inverted bool, d Decimals) (*big.Int, error) {
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPrice, price)
	}
	raw := orient(price.Rat(), inverted)

	diff := int(d.Token0) - int(d.Token1)
	if diff > 0 {
		raw.Quo(raw, new(big.Rat).SetInt(pow10(diff)))
	} else if diff < 0 {
		raw.Mul(raw, new(big.Rat).SetInt(pow10(-diff)))
	}
	raw.Mul(raw, new(big.Rat).SetInt(Q192))

	f := new(big.Float).SetPrec(floatPrec).SetRat(raw)
	f.Sqrt(f)
	sqrt, _ := f.Int(nil)
	if sqrt.Cmp(MinSqrtRatio) < 0 || sqrt.Cmp(MaxSqrtRatio) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrPriceOutOfRange, price)
	}
	return sqrt, nil
}

// PriceToUse picks between two candidate prices so that the resulting band
// stays on the passive side of the market for the given direction.
func PriceToUse(price0, price1 decimal.Decimal, inverted bool, direction model.Direction) decimal.Decimal {
	higher := (direction == model.DirectionAbove) != inverted
	if higher {
		return decimal.Max(price0, price1)
	}
	return decimal.Min(price0, price1)
}

// sqrtToRat returns (sqrt/2^96)^2 * 10^(d0-d1) without rounding.
func sqrtToRat(sqrtPriceX96 *big.Int, d Decimals) *big.Rat {
	num := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	den := new(big.Int).Set(Q192)
	diff := int(d.Token0) - int(d.Token1)
	if diff > 0 {
		num.Mul(num, pow10(diff))
	} else if diff < 0 {
		den.Mul(den, pow10(-diff))
	}
	return new(big.Rat).SetFrac(num, den)
}

func orient(r *big.Rat, inverted bool) *big.Rat {
	if inverted && r.Sign() != 0 {
		return r.Inv(r)
	}
	return r
}

func ratToDecimal(r *big.Rat) decimal.Decimal {
	if r.Sign() == 0 {
		return decimal.Zero
	}
	f := new(big.Float).SetPrec(floatPrec).SetRat(r)
	out, err := decimal.NewFromString(f.Text('e', significantDigits))
	if err != nil {
		return decimal.Zero
	}
	return out
}
