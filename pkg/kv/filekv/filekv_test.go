package filekv_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/dictato/pkg/kv/filekv"
)

func newStore(t *testing.T) (*filekv.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s, err := filekv.New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, path
}

func TestNew_EmptyPath(t *testing.T) {
	t.Parallel()
	if _, err := filekv.New(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestGet_MissingFile(t *testing.T) {
	t.Parallel()
	s, _ := newStore(t)

	v, ok, err := s.Get(context.Background(), "glossary")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok || v != "" {
		t.Errorf("Get = (%q, %v), want (\"\", false)", v, ok)
	}
}

func TestSetThenGet(t *testing.T) {
	t.Parallel()
	s, path := newStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "glossary", `[{"from":"x","to":"y"}]`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "other", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// A second instance over the same file sees both keys.
	s2, err := filekv.New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	v, ok, err := s2.Get(ctx, "glossary")
	if err != nil || !ok {
		t.Fatalf("Get = (%q, %v, %v)", v, ok, err)
	}
	if v != `[{"from":"x","to":"y"}]` {
		t.Errorf("value = %q", v)
	}
	if v, _, _ := s2.Get(ctx, "other"); v != "v" {
		t.Errorf("other = %q, want %q", v, "v")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want only the state file", len(entries))
	}
}

func TestGet_CorruptFile(t *testing.T) {
	t.Parallel()
	s, path := newStore(t)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.Get(context.Background(), "glossary"); !errors.Is(err, filekv.ErrCorrupt) {
		t.Fatalf("Get err = %v, want ErrCorrupt", err)
	}
}

func TestSet_QuarantinesCorruptFile(t *testing.T) {
	t.Parallel()
	s, path := newStore(t)
	ctx := context.Background()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := s.Set(ctx, "glossary", "[]"); err != nil {
		t.Fatalf("Set over corrupt file: %v", err)
	}
	v, ok, err := s.Get(ctx, "glossary")
	if err != nil || !ok || v != "[]" {
		t.Fatalf("Get = (%q, %v, %v), want (\"[]\", true, nil)", v, ok, err)
	}
	// Later writes keep working.
	if err := s.Set(ctx, "other", "v"); err != nil {
		t.Fatalf("second Set: %v", err)
	}

	moved, err := filepath.Glob(path + ".corrupt-*")
	if err != nil {
		t.Fatal(err)
	}
	if len(moved) != 1 {
		t.Fatalf("quarantined files = %v, want exactly one", moved)
	}
	raw, err := os.ReadFile(moved[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "{not json" {
		t.Errorf("quarantined content = %q, want original bytes", raw)
	}
}

func TestPing(t *testing.T) {
	t.Parallel()
	s, _ := newStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping before first write: %v", err)
	}

	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	bad, _ := filekv.New(filepath.Join(blocker, "state.json"))
	if err := bad.Ping(context.Background()); err == nil {
		t.Error("Ping with a file as parent dir should fail")
	}
}
