package state

import (
	"context"
	"encoding/json"
	"strings"

	"rangeHedger/internal/model"
)

const EngineSnapshotKey = "engine:last_snapshot"

// EngineSnapshot is the durable part of the hedging engine.
type EngineSnapshot struct {
	Position              model.Position `json:"position"`
	PoolFee               uint32         `json:"pool_fee"`
	OnlyAuthorizedFulfill bool           `json:"only_authorized_fulfill"`
	UpdatedAtMS           int64          `json:"updated_at_ms"`
}

func LoadEngineSnapshot(ctx context.Context, store Store) (EngineSnapshot, bool, error) {
	if store == nil {
		return EngineSnapshot{}, false, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	raw, ok, err := store.Get(ctx, EngineSnapshotKey)
	if err != nil {
		return EngineSnapshot{}, false, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return EngineSnapshot{}, false, nil
	}
	var snapshot EngineSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return EngineSnapshot{}, false, err
	}
	return snapshot, true, nil
}

func SaveEngineSnapshot(ctx context.Context, store Store, snapshot EngineSnapshot) error {
	if store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return store.Set(ctx, EngineSnapshotKey, string(payload))
}
