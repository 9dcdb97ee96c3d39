package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"rangeHedger/internal/state"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	if err := store.Set(ctx, "engine:key", "value"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := store.Set(ctx, "engine:key", "value2"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	val, ok, err := store.Get(ctx, "engine:key")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !ok || val != "value2" {
		t.Fatalf("unexpected value: %v (ok=%v)", val, ok)
	}
	if err := store.Delete(ctx, "engine:key"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	_, ok, err = store.Get(ctx, "engine:key")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if ok {
		t.Fatalf("expected key to be deleted")
	}
}

func TestStoreSplitsNamespaces(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	for _, key := range []string{"engine:b", "engine:a", "keeper:a", "plain"} {
		if err := store.Set(ctx, key, key); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}
	names, err := store.Names(ctx, "engine")
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	if fmt.Sprint(names) != "[a b]" {
		t.Fatalf("expected [a b], got %v", names)
	}
	if v, ok, _ := store.Get(ctx, "keeper:a"); !ok || v != "keeper:a" {
		t.Fatalf("expected keeper:a isolated from engine:a, got %q", v)
	}
	if names, _ := store.Names(ctx, defaultNamespace); fmt.Sprint(names) != "[plain]" {
		t.Fatalf("expected unprefixed key in default namespace, got %v", names)
	}
}

func TestStoreTracksUpdateTime(t *testing.T) {
	store := openStore(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return at }
	ctx := context.Background()

	if _, ok, err := store.UpdatedAt(ctx, state.EngineSnapshotKey); err != nil || ok {
		t.Fatalf("expected no timestamp before write: ok=%v err=%v", ok, err)
	}
	if err := store.Set(ctx, state.EngineSnapshotKey, "{}"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := store.UpdatedAt(ctx, state.EngineSnapshotKey)
	if err != nil || !ok || !got.Equal(at) {
		t.Fatalf("expected %s, got %s ok=%v err=%v", at, got, ok, err)
	}
}

func TestStoreHoldsEngineSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := New(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	ctx := context.Background()
	if err := state.SaveEngineSnapshot(ctx, store, state.EngineSnapshot{PoolFee: 500}); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	store.Close()

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()
	snap, ok, err := state.LoadEngineSnapshot(ctx, reopened)
	if err != nil || !ok {
		t.Fatalf("load snapshot: ok=%v err=%v", ok, err)
	}
	if snap.PoolFee != 500 {
		t.Fatalf("expected fee 500, got %d", snap.PoolFee)
	}
}
