package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"rangeHedger/internal/model"
	"rangeHedger/internal/state"
)

func TestNewStoreRequiresDSN(t *testing.T) {
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestNumericDefaults(t *testing.T) {
	if got := numeric(""); got != "0" {
		t.Fatalf("expected 0, got %q", got)
	}
	if got := numeric("12"); got != "12" {
		t.Fatalf("expected 12, got %q", got)
	}
}

// Runs against a live database when HEDGER_TEST_PG_DSN is set.
func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("HEDGER_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("HEDGER_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	var _ state.Store = store
	if err := state.SaveEngineSnapshot(ctx, store, state.EngineSnapshot{PoolFee: 3000}); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	snap, ok, err := state.LoadEngineSnapshot(ctx, store)
	if err != nil || !ok || snap.PoolFee != 3000 {
		t.Fatalf("unexpected snapshot %+v ok=%v err=%v", snap, ok, err)
	}

	event := model.OrderEvent{
		ID:        uuid.NewString(),
		Kind:      model.OrderCreated,
		Pool:      "0xpool",
		Fee:       3000,
		LowerTick: 60,
		UpperTick: 120,
		Direction: model.DirectionAbove,
		Liquidity: "1000",
		Amount0:   "10",
		Caller:    "0xcaller",
		Time:      time.Now().UTC(),
	}
	if err := store.PutOrderEvents(ctx, []model.OrderEvent{event}); err != nil {
		t.Fatalf("put events: %v", err)
	}
	if err := store.PutOrderEvents(ctx, []model.OrderEvent{event}); err != nil {
		t.Fatalf("replayed event should be ignored: %v", err)
	}
}
