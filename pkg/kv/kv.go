// Package kv defines the string-keyed key/value storage contract that
// dictato persists user state through.
//
// The contract mirrors a browser's local storage: a single string value per
// key, read and written whole. Implementations live in sub-packages:
//
//   - [github.com/MrWong99/dictato/pkg/kv/mock] — in-memory, with error injection.
//   - [github.com/MrWong99/dictato/pkg/kv/filekv] — a JSON object file on local disk.
//   - [github.com/MrWong99/dictato/pkg/kv/postgres] — a PostgreSQL table.
//
// Implementations must be safe for concurrent use.
package kv

import "context"

// Store is a string-keyed key/value store.
type Store interface {
	// Get returns the value stored under key. ok is false when the key has
	// never been written; in that case value is "" and err is nil. A non-nil
	// err means the backend could not be read at all.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
}

// Pinger is implemented by stores that can report backend reachability.
// It is used for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Closer is implemented by stores holding resources (pools, handles) that
// must be released on shutdown.
type Closer interface {
	Close()
}
