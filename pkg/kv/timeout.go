package kv

import (
	"context"
	"time"
)

type timeoutStore struct {
	Store
	timeout time.Duration
}

// WithTimeout bounds every call on s with the given deadline. A non-positive
// timeout returns s unchanged.
func WithTimeout(s Store, timeout time.Duration) Store {
	if timeout <= 0 {
		return s
	}
	return &timeoutStore{Store: s, timeout: timeout}
}

func (t *timeoutStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Store.Get(ctx, key)
}

func (t *timeoutStore) Set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Store.Set(ctx, key, value)
}

func (t *timeoutStore) GetByPrefix(ctx context.Context, prefix string) ([][]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Store.GetByPrefix(ctx, prefix)
}

func (t *timeoutStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Store.Update(ctx, key, fn)
}

func (t *timeoutStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Store.Ping(ctx)
}
