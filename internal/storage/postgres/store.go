package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rangeHedger/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS range_order_events (
	id UUID PRIMARY KEY,
	kind TEXT NOT NULL,
	pool_address TEXT NOT NULL,
	fee INTEGER NOT NULL,
	lower_tick INTEGER NOT NULL,
	upper_tick INTEGER NOT NULL,
	direction TEXT NOT NULL,
	liquidity NUMERIC NOT NULL,
	amount0 NUMERIC NOT NULL,
	amount1 NUMERIC NOT NULL,
	mean_price NUMERIC,
	delta NUMERIC,
	caller TEXT NOT NULL,
	event_ts TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS hedger_state (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for the order journal and engine state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// EnsureSchema creates the tables the store writes to.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// PutOrderEvents inserts a batch of order events.
func (s *Store) PutOrderEvents(ctx context.Context, events []model.OrderEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO range_order_events (
				id, kind, pool_address, fee, lower_tick, upper_tick, direction,
				liquidity, amount0, amount1, mean_price, delta, caller, event_ts
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULLIF($11,'')::NUMERIC,NULLIF($12,'')::NUMERIC,$13,$14)
			ON CONFLICT (id) DO NOTHING
		`,
			e.ID,
			string(e.Kind),
			e.Pool,
			int64(e.Fee),
			e.LowerTick,
			e.UpperTick,
			string(e.Direction),
			numeric(e.Liquidity),
			numeric(e.Amount0),
			numeric(e.Amount1),
			e.MeanPrice,
			e.Delta,
			e.Caller,
			e.Time,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// Get returns a state value by key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, fmt.Errorf("state key required")
	}
	var value string
	row := s.pool.QueryRow(ctx, `SELECT value FROM hedger_state WHERE key=$1`, key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// Set upserts a state value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("state key required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hedger_state (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = now()
	`, key, value)
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM hedger_state WHERE key=$1`, key)
	return err
}

func numeric(v string) string {
	if v == "" {
		return "0"
	}
	return v
}
