package keeper

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestBackoffSucceedsAfterFailures(t *testing.T) {
	var retries []int
	b := newBackoff(Config{MaxRetries: 3, RetryBackoff: time.Millisecond}, func(n int, _ time.Duration, _ error) {
		retries = append(retries, n)
	})
	attempts := 0
	err := b.do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if fmt.Sprint(retries) != "[1 2]" {
		t.Fatalf("expected retries [1 2], got %v", retries)
	}
}

func TestBackoffReturnsLastError(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0
	b := newBackoff(Config{MaxRetries: 2, RetryBackoff: time.Millisecond}, nil)
	err := b.do(context.Background(), func(context.Context) error {
		attempts++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestBackoffStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	b := newBackoff(Config{MaxRetries: 5, RetryBackoff: time.Hour}, nil)
	err := b.do(ctx, func(context.Context) error {
		attempts++
		cancel()
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestBackoffDoesNotRetryDeadline(t *testing.T) {
	attempts := 0
	b := newBackoff(Config{MaxRetries: 5, RetryBackoff: time.Millisecond}, nil)
	err := b.do(context.Background(), func(context.Context) error {
		attempts++
		return fmt.Errorf("read slot0: %w", context.DeadlineExceeded)
	})
	if !errors.Is(err, context.DeadlineExceeded) || attempts != 1 {
		t.Fatalf("expected one attempt ending in deadline, got %d attempts and %v", attempts, err)
	}
}

func TestBackoffCapsDelayAtPollInterval(t *testing.T) {
	var delays []time.Duration
	b := newBackoff(Config{MaxRetries: 4, RetryBackoff: time.Millisecond, PollInterval: 3 * time.Millisecond}, func(_ int, d time.Duration, _ error) {
		delays = append(delays, d)
	})
	_ = b.do(context.Background(), func(context.Context) error { return errors.New("down") })
	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond, 3 * time.Millisecond}
	if fmt.Sprint(delays) != fmt.Sprint(want) {
		t.Fatalf("expected delays %v, got %v", want, delays)
	}
}
