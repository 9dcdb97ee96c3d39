package main

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"rangeHedger/internal/model"
	"rangeHedger/internal/state"
	"rangeHedger/internal/state/sqlite"
)

func TestWarnStaleOrder(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	core, logs := observer.New(zapcore.WarnLevel)
	warnStaleOrder(ctx, store, zap.New(core))
	if logs.Len() != 0 {
		t.Fatalf("expected no warning without a snapshot, got %d", logs.Len())
	}

	snap := state.EngineSnapshot{
		PoolFee: 3000,
		Position: model.Position{
			LowerTick: 60,
			UpperTick: 120,
			Direction: model.DirectionAbove,
			Amount:    big.NewInt(1_000_000_000),
			Liquidity: big.NewInt(42),
		},
	}
	if err := state.SaveEngineSnapshot(ctx, store, snap); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	warnStaleOrder(ctx, store, zap.New(core))
	if logs.Len() != 1 {
		t.Fatalf("expected one warning, got %d", logs.Len())
	}
	fields := logs.All()[0].ContextMap()
	if fields["amount"] != "1000000000" || fields["lower_tick"] != int64(60) {
		t.Fatalf("unexpected warning fields %v", fields)
	}
	if _, ok := fields["snapshot_at"]; !ok {
		t.Fatalf("expected snapshot time in warning, got %v", fields)
	}
}
