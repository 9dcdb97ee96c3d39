package model

import "math/big"

// PoolMeta identifies a concentrated-liquidity pool and its token pair.
type PoolMeta struct {
	Address     string    `json:"address"`
	Token0      TokenMeta `json:"token0"`
	Token1      TokenMeta `json:"token1"`
	Fee         uint32    `json:"fee"`
	TickSpacing int       `json:"tick_spacing"`
	Liquidity   string    `json:"liquidity,omitempty"`
	Slot0       *Slot0    `json:"slot0,omitempty"`
}

// Slot0 is the pool's current price state.
type Slot0 struct {
	SqrtPriceX96 *big.Int `json:"sqrt_price_x96"`
	Tick         int      `json:"tick"`
}
