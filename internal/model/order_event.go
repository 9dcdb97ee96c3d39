package model

import "time"

// OrderEventKind names a range order lifecycle transition.
type OrderEventKind string

const (
	OrderCreated   OrderEventKind = "created"
	OrderFulfilled OrderEventKind = "fulfilled"
	OrderExited    OrderEventKind = "exited"
	// OrderDropped marks a restored order the pool no longer holds.
	OrderDropped OrderEventKind = "dropped"
)

// OrderEvent is a journal record of a lifecycle transition.
type OrderEvent struct {
	ID        string         `json:"id"`
	Kind      OrderEventKind `json:"kind"`
	Pool      string         `json:"pool"`
	Fee       uint32         `json:"fee"`
	LowerTick int            `json:"lower_tick"`
	UpperTick int            `json:"upper_tick"`
	Direction Direction      `json:"direction"`
	Liquidity string         `json:"liquidity"`
	Amount0   string         `json:"amount0"`
	Amount1   string         `json:"amount1"`
	MeanPrice string         `json:"mean_price,omitempty"`
	Delta     string         `json:"delta,omitempty"`
	Caller    string         `json:"caller"`
	Time      time.Time      `json:"time"`
}
