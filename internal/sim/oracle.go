package sim

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
)

var ErrStalePrice = errors.New("oracle price unavailable")

// Oracle is a settable reference price source.
type Oracle struct {
	mu    sync.RWMutex
	price decimal.Decimal
	err   error
}

func NewOracle(price decimal.Decimal) *Oracle {
	return &Oracle{price: price}
}

func (o *Oracle) SetPrice(price decimal.Decimal) {
	o.mu.Lock()
	o.price = price
	o.err = nil
	o.mu.Unlock()
}

// SetError makes subsequent reads fail until the next SetPrice.
func (o *Oracle) SetError(err error) {
	o.mu.Lock()
	o.err = err
	o.mu.Unlock()
}

func (o *Oracle) Price(_ context.Context) (decimal.Decimal, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.err != nil {
		return decimal.Zero, o.err
	}
	if !o.price.IsPositive() {
		return decimal.Zero, ErrStalePrice
	}
	return o.price, nil
}
