// Package postgres provides a PostgreSQL-backed implementation of kv.Store.
//
// Values live in a single kv_entries table keyed by TEXT. [Migrate] creates
// the table on startup; [NewStore] runs it automatically.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Set(ctx, "glossary", `[]`)
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/dictato/pkg/kv"
)

var (
	_ kv.Store  = (*Store)(nil)
	_ kv.Pinger = (*Store)(nil)
	_ kv.Closer = (*Store)(nil)
)

const ddlEntries = `
CREATE TABLE IF NOT EXISTS kv_entries (
    key        TEXT         PRIMARY KEY,
    value      TEXT         NOT NULL,
    updated_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);`

// Migrate creates the kv_entries table if it does not exist. It is
// idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlEntries); err != nil {
		return fmt.Errorf("postgres kv: migrate: %w", err)
	}
	return nil
}

// Store is a kv.Store backed by a [pgxpool.Pool]. All operations are safe
// for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, verifies the connection, and
// runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres kv: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres kv: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres kv: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool}, nil
}

// Get implements kv.Store.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv_entries WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("postgres kv: get %q: %w", key, err)
	}
	return value, true, nil
}

// Set implements kv.Store as an upsert.
func (s *Store) Set(ctx context.Context, key, value string) error {
	const q = `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := s.pool.Exec(ctx, q, key, value); err != nil {
		return fmt.Errorf("postgres kv: set %q: %w", key, err)
	}
	return nil
}

// Ping implements kv.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}
