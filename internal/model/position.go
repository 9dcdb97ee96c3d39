package model

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of the current tick a range order rests on.
type Direction string

const (
	// DirectionAbove deposits token0 into a band above the current tick.
	DirectionAbove Direction = "ABOVE"
	// DirectionBelow deposits token1 into a band below the current tick.
	DirectionBelow Direction = "BELOW"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionAbove || d == DirectionBelow
}

// Position is the single range order held by the engine.
// Both ticks zero means no active order.
type Position struct {
	LowerTick int             `json:"lower_tick"`
	UpperTick int             `json:"upper_tick"`
	Liquidity *big.Int        `json:"liquidity,omitempty"`
	Direction Direction       `json:"direction,omitempty"`
	MeanPrice decimal.Decimal `json:"mean_price"`
	Amount    *big.Int        `json:"amount,omitempty"`
	Delta     decimal.Decimal `json:"delta"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
}

// Active reports whether the position holds a live order.
func (p Position) Active() bool {
	return p.LowerTick != 0 || p.UpperTick != 0
}

// Filled reports whether tick has moved fully through the band.
func (p Position) Filled(tick int) bool {
	if !p.Active() {
		return false
	}
	if p.Direction == DirectionAbove {
		return tick >= p.UpperTick
	}
	return tick < p.LowerTick
}

// PositionInfo is the pool's view of a liquidity position.
// Tokens owed include fees accrued since the last poke.
type PositionInfo struct {
	Liquidity   *big.Int `json:"liquidity"`
	TokensOwed0 *big.Int `json:"tokens_owed0"`
	TokensOwed1 *big.Int `json:"tokens_owed1"`
}
