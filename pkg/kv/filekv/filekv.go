// Package filekv implements kv.Store on top of a single JSON object file.
//
// The file holds a flat {"key": "value"} object, the same shape a browser
// profile's local storage has. Every Set rewrites the whole file through a
// temporary file and an atomic rename, so a crash mid-write leaves the
// previous contents intact. A file that no longer decodes is moved aside to
// "<path>.corrupt-<timestamp>" by the next Set, which then starts from an
// empty object.
package filekv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MrWong99/dictato/pkg/kv"
)

// ErrCorrupt is returned by Get when the backing file is not a JSON object
// of strings.
var ErrCorrupt = errors.New("filekv: corrupt file")

var (
	_ kv.Store  = (*Store)(nil)
	_ kv.Pinger = (*Store)(nil)
)

// Store is a file-backed kv.Store. It is safe for concurrent use within a
// single process; concurrent writers in separate processes are not
// coordinated.
type Store struct {
	mu   sync.Mutex
	path string
}

// New returns a Store persisting to path. The file and its parent
// directory are created on the first Set.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("filekv: path must not be empty")
	}
	return &Store{path: path}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Get implements kv.Store. A missing file reads as an empty store.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readAll()
	if err != nil {
		return "", false, err
	}
	v, ok := data[key]
	return v, ok, nil
}

// Set implements kv.Store. A corrupt file is quarantined first, so only
// the keys written from then on survive.
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readAll()
	if errors.Is(err, ErrCorrupt) {
		data, err = s.quarantine(err)
	}
	if err != nil {
		return err
	}
	data[key] = value

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("filekv: marshal: %w", err)
	}
	return s.writeAtomic(raw)
}

// Ping reports whether the backing directory is usable.
func (s *Store) Ping(_ context.Context) error {
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		// Created lazily on first write.
		return nil
	}
	if err != nil {
		return fmt.Errorf("filekv: stat %q: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("filekv: %q is not a directory", dir)
	}
	return nil
}

func (s *Store) readAll() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("filekv: read %q: %w", s.path, err)
	}
	data := make(map[string]string)
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: decode %q: %w", ErrCorrupt, s.path, err)
	}
	return data, nil
}

// quarantine renames the undecodable file out of the way and returns an
// empty map to write into.
func (s *Store) quarantine(cause error) (map[string]string, error) {
	dst := s.path + ".corrupt-" + time.Now().UTC().Format("20060102T150405.000000000Z")
	if err := os.Rename(s.path, dst); err != nil {
		return nil, fmt.Errorf("filekv: move corrupt file aside: %w", err)
	}
	slog.Warn("filekv: corrupt file moved aside, starting empty", "path", s.path, "moved_to", dst, "err", cause)
	return make(map[string]string), nil
}

func (s *Store) writeAtomic(raw []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("filekv: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("filekv: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("filekv: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filekv: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("filekv: rename: %w", err)
	}
	return nil
}
