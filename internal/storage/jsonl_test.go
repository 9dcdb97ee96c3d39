package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"rangeHedger/internal/model"
)

func TestJsonlAppendsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "orders.jsonl")
	store := NewJsonlStorage(path)
	ctx := context.Background()

	first := model.OrderEvent{Kind: model.OrderCreated, LowerTick: 60, UpperTick: 120, Direction: model.DirectionAbove, Time: time.Unix(1700000000, 0).UTC()}
	second := model.OrderEvent{Kind: model.OrderFulfilled, LowerTick: 60, UpperTick: 120, Amount1: "42"}
	if err := store.PutOrderEvents(ctx, []model.OrderEvent{first}); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := store.PutOrderEvents(ctx, []model.OrderEvent{second}); err != nil {
		t.Fatalf("put second: %v", err)
	}

	events, err := ReadOrderEvents(path)
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != model.OrderCreated || events[1].Amount1 != "42" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

type failingJournal struct{ err error }

func (f failingJournal) PutOrderEvents(context.Context, []model.OrderEvent) error { return f.err }

func TestMultiAttemptsAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.jsonl")
	boom := errors.New("boom")
	multi := Multi{failingJournal{err: boom}, NewJsonlStorage(path)}

	err := multi.PutOrderEvents(context.Background(), []model.OrderEvent{{Kind: model.OrderExited}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	events, err := ReadOrderEvents(path)
	if err != nil || len(events) != 1 {
		t.Fatalf("expected later journal to receive event, got %d %v", len(events), err)
	}
}
