// Package mock provides an in-memory implementation of kv.Store for tests
// and for the "memory" storage backend.
//
// Set GetErr or SetErr to simulate an unreadable backend or a write failure
// (e.g. a quota being exceeded). Every call is recorded for later inspection.
//
// Example:
//
//	s := mock.New()
//	s.Data["glossary"] = `[{"from":"seu","to":"sua"}]`
//	s.SetErr = errors.New("quota exceeded")
package mock

import (
	"context"
	"maps"
	"sync"

	"github.com/MrWong99/dictato/pkg/kv"
)

var _ kv.Store = (*Store)(nil)

// SetCall records a single invocation of Store.Set.
type SetCall struct {
	Key   string
	Value string
}

// Store is a map-backed kv.Store. The zero value is ready to use.
type Store struct {
	mu sync.Mutex

	// Data holds the stored values. Tests may seed it directly before use.
	Data map[string]string

	// GetErr, if non-nil, is returned from every Get call.
	GetErr error

	// SetErr, if non-nil, is returned from every Set call and the value is
	// not stored.
	SetErr error

	// PingErr, if non-nil, is returned from Ping.
	PingErr error

	// GetCalls records the key of every Get call in order.
	GetCalls []string

	// SetCalls records every Set call in order, including failed ones.
	SetCalls []SetCall
}

// New returns an empty Store.
func New() *Store {
	return &Store{Data: make(map[string]string)}
}

// Get implements kv.Store.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetCalls = append(s.GetCalls, key)
	if s.GetErr != nil {
		return "", false, s.GetErr
	}
	v, ok := s.Data[key]
	return v, ok, nil
}

// Set implements kv.Store.
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SetCalls = append(s.SetCalls, SetCall{Key: key, Value: value})
	if s.SetErr != nil {
		return s.SetErr
	}
	if s.Data == nil {
		s.Data = make(map[string]string)
	}
	s.Data[key] = value
	return nil
}

// Ping implements kv.Pinger.
func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PingErr
}

// Snapshot returns a copy of the stored data.
func (s *Store) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.Data)
}

// Reset clears all data, injected errors, and call records.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Data = make(map[string]string)
	s.GetErr, s.SetErr, s.PingErr = nil, nil, nil
	s.GetCalls, s.SetCalls = nil, nil
}
