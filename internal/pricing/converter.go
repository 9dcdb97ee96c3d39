package pricing

import (
	"math/big"

	"github.com/shopspring/decimal"

	"rangeHedger/internal/model"
)

// Converter translates between pool-native values and human prices for one
// token pairing. Human prices are always reference units per hedged unit.
type Converter struct {
	decimals Decimals
	inverted bool
}

// NewConverter builds a converter. inverted is true when token0 is the reference asset.
func NewConverter(d Decimals, inverted bool) Converter {
	return Converter{decimals: d, inverted: inverted}
}

func (c Converter) Decimals() Decimals { return c.decimals }

// Inverted reports whether the pool quotes hedged per reference.
func (c Converter) Inverted() bool { return c.inverted }

// HedgedDecimals returns the decimals of the hedged token.
func (c Converter) HedgedDecimals() uint8 {
	if c.inverted {
		return c.decimals.Token1
	}
	return c.decimals.Token0
}

// ReferenceDecimals returns the decimals of the reference token.
func (c Converter) ReferenceDecimals() uint8 {
	if c.inverted {
		return c.decimals.Token0
	}
	return c.decimals.Token1
}

// DepositDirection returns where a deposit of the hedged (or reference) token rests.
func (c Converter) DepositDirection(depositHedged bool) model.Direction {
	token0 := depositHedged != c.inverted
	if token0 {
		return model.DirectionAbove
	}
	return model.DirectionBelow
}

// Split maps pool-ordered amounts to (hedged, reference).
func (c Converter) Split(amount0, amount1 *big.Int) (*big.Int, *big.Int) {
	if c.inverted {
		return amount1, amount0
	}
	return amount0, amount1
}

func (c Converter) TickToPrice(tick int) (decimal.Decimal, error) {
	return TickToPrice(tick, c.decimals, c.inverted)
}

func (c Converter) PriceToSqrt(price decimal.Decimal) (*big.Int, error) {
	return PriceToSqrt(price, c.inverted, c.decimals)
}

func (c Converter) SqrtToPrice(sqrtPriceX96 *big.Int) decimal.Decimal {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return decimal.Zero
	}
	return ratToDecimal(orient(sqrtToRat(sqrtPriceX96, c.decimals), c.inverted))
}

// PriceToTick returns the tick at or just below the given human price in pool orientation.
func (c Converter) PriceToTick(price decimal.Decimal) (int, error) {
	sqrt, err := c.PriceToSqrt(price)
	if err != nil {
		return 0, err
	}
	return TickAtSqrtRatio(sqrt)
}

func (c Converter) PriceToUse(price0, price1 decimal.Decimal, direction model.Direction) decimal.Decimal {
	return PriceToUse(price0, price1, c.inverted, direction)
}

// ToRaw scales a human amount to integer token units, truncating.
func ToRaw(amount decimal.Decimal, decimals uint8) *big.Int {
	return amount.Shift(int32(decimals)).BigInt()
}

// FromRaw scales integer token units to a human amount.
func FromRaw(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

func (c Converter) ToRaw(amount decimal.Decimal, decimals uint8) *big.Int {
	return ToRaw(amount, decimals)
}

func (c Converter) FromRaw(raw *big.Int, decimals uint8) decimal.Decimal {
	return FromRaw(raw, decimals)
}
