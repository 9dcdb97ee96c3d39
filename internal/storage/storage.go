package storage

import (
	"context"
	"errors"

	"rangeHedger/internal/model"
)

// Journal is a sink for range order lifecycle events.
type Journal interface {
	PutOrderEvents(ctx context.Context, events []model.OrderEvent) error
}

// Multi fans events out to several journals, attempting every one.
type Multi []Journal

func (m Multi) PutOrderEvents(ctx context.Context, events []model.OrderEvent) error {
	var errs []error
	for _, j := range m {
		if j == nil {
			continue
		}
		if err := j.PutOrderEvents(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
