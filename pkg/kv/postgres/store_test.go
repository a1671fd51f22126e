package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/dictato/pkg/kv/postgres"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if DICTATO_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("DICTATO_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DICTATO_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] over an empty kv_entries table.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS kv_entries"); err != nil {
		t.Fatalf("drop: %v", err)
	}

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestNewStore_BadDSN(t *testing.T) {
	t.Parallel()
	if _, err := postgres.NewStore(context.Background(), "://not a dsn"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)
	v, ok, err := s.Get(context.Background(), "glossary")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok || v != "" {
		t.Errorf("Get = (%q, %v), want (\"\", false)", v, ok)
	}
}

func TestStore_SetUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "glossary", "[]"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "glossary", `[{"from":"x","to":"y"}]`); err != nil {
		t.Fatalf("Set (overwrite): %v", err)
	}

	v, ok, err := s.Get(ctx, "glossary")
	if err != nil || !ok {
		t.Fatalf("Get = (%q, %v, %v)", v, ok, err)
	}
	if v != `[{"from":"x","to":"y"}]` {
		t.Errorf("value = %q", v)
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	defer pool.Close()

	for i := range 2 {
		if err := postgres.Migrate(ctx, pool); err != nil {
			t.Fatalf("Migrate #%d: %v", i+1, err)
		}
	}
}
