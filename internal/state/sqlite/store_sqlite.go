package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const defaultNamespace = "default"

// Store is a state.Store over an engine_state table. Keys of the form
// "namespace:name" are split so each engine component gets its own rows.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS engine_state (
		namespace TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at_ms INTEGER NOT NULL,
		PRIMARY KEY (namespace, name)
	)`)
	return err
}

func splitKey(key string) (string, string) {
	ns, name, ok := strings.Cut(key, ":")
	if !ok || ns == "" {
		return defaultNamespace, key
	}
	return ns, name
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	ns, name := splitKey(key)
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM engine_state WHERE namespace = ? AND name = ?`, ns, name).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	ns, name := splitKey(key)
	_, err := s.db.ExecContext(ctx, `INSERT INTO engine_state (namespace, name, value, updated_at_ms) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, name) DO UPDATE SET value = excluded.value, updated_at_ms = excluded.updated_at_ms`,
		ns, name, value, s.now().UnixMilli())
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	ns, name := splitKey(key)
	_, err := s.db.ExecContext(ctx, `DELETE FROM engine_state WHERE namespace = ? AND name = ?`, ns, name)
	return err
}

// UpdatedAt reports when key was last written.
func (s *Store) UpdatedAt(ctx context.Context, key string) (time.Time, bool, error) {
	ns, name := splitKey(key)
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT updated_at_ms FROM engine_state WHERE namespace = ? AND name = ?`, ns, name).Scan(&ms)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms).UTC(), true, nil
}

// Names lists the keys stored under namespace.
func (s *Store) Names(ctx context.Context, namespace string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM engine_state WHERE namespace = ? ORDER BY name`, namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
