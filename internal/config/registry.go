package config

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/dictato/pkg/kv"
	"github.com/MrWong99/dictato/pkg/provider/llm"
)

// ErrBackendNotRegistered is returned by Create* methods when no factory has
// been registered under the requested name.
var ErrBackendNotRegistered = errors.New("config: backend not registered")

// StorageFactory opens a key/value store for the given storage settings.
type StorageFactory func(ctx context.Context, cfg StorageConfig) (kv.Store, error)

// LLMFactory builds an LLM provider for the given rewrite settings.
type LLMFactory func(cfg RewriteConfig) (llm.Provider, error)

// Registry maps backend names to their constructor functions. It is safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	storage map[StorageBackend]StorageFactory
	llm     map[string]LLMFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		storage: make(map[StorageBackend]StorageFactory),
		llm:     make(map[string]LLMFactory),
	}
}

// RegisterStorage registers a storage factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterStorage(name StorageBackend, factory StorageFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storage[name] = factory
}

// RegisterLLM registers an LLM provider factory under name.
func (r *Registry) RegisterLLM(name string, factory LLMFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// CreateStorage opens the store registered under cfg.Backend.
// Returns [ErrBackendNotRegistered] if no factory has been registered for it.
func (r *Registry) CreateStorage(ctx context.Context, cfg StorageConfig) (kv.Store, error) {
	r.mu.RLock()
	factory, ok := r.storage[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: storage/%q", ErrBackendNotRegistered, cfg.Backend)
	}
	return factory(ctx, cfg)
}

// CreateLLM builds the provider registered under cfg.Provider.
// Returns [ErrBackendNotRegistered] if no factory has been registered for it.
func (r *Registry) CreateLLM(cfg RewriteConfig) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrBackendNotRegistered, cfg.Provider)
	}
	return factory(cfg)
}
