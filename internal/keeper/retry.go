package keeper

import (
	"context"
	"errors"
	"time"
)

// backoff retries source reads, doubling the delay up to maxDelay.
type backoff struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	// onRetry runs before each wait with the 1-based retry number.
	onRetry func(retry int, delay time.Duration, err error)
}

func newBackoff(cfg Config, onRetry func(int, time.Duration, error)) backoff {
	b := backoff{
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBackoff,
		maxDelay:   cfg.PollInterval,
		onRetry:    onRetry,
	}
	if b.maxRetries < 0 {
		b.maxRetries = 0
	}
	if b.baseDelay <= 0 {
		b.baseDelay = 100 * time.Millisecond
	}
	if b.maxDelay < b.baseDelay {
		b.maxDelay = b.baseDelay
	}
	return b
}

// do runs fn until it succeeds, the retries run out or ctx ends.
// Cancellation from fn itself is not retried.
func (b backoff) do(ctx context.Context, fn func(context.Context) error) error {
	delay := b.baseDelay
	for retry := 0; ; retry++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if retry >= b.maxRetries || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if b.onRetry != nil {
			b.onRetry(retry+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > b.maxDelay {
			delay = b.maxDelay
		}
	}
}
