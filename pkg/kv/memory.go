package kv

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store. Nothing survives a restart, so it is
// meant for tests and demo deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: map[string][]byte{}}
}

// Get returns a copy of the value stored under key
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(value), nil
}

// Set stores a copy of value under key
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = clone(value)
	return nil
}

// GetByPrefix returns copies of all values whose key starts with prefix
func (m *MemoryStore) GetByPrefix(ctx context.Context, prefix string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out [][]byte
	for key, value := range m.items {
		if strings.HasPrefix(key, prefix) {
			out = append(out, clone(value))
		}
	}
	return out, nil
}

// Update holds the write lock for the whole read-modify-write
func (m *MemoryStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.items[key]
	next, err := fn(clone(current), exists)
	if err != nil {
		return err
	}
	m.items[key] = clone(next)
	return nil
}

// Ping always succeeds
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close drops every key
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = map[string][]byte{}
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
