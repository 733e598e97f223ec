// Package kv defines the key-value persistence contract the repositories are
// built on, plus JSON helpers and decorators shared by every backend.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("key not found")

	// ErrConflict is returned by Update when a backend using optimistic
	// concurrency gave up after too many competing writers.
	ErrConflict = errors.New("too many concurrent writers")
)

// UpdateFunc receives the current value of a key (nil and false when the key
// is absent) and returns the value to store. Returning an error aborts the
// update and leaves the key untouched. It may be called more than once.
type UpdateFunc func(current []byte, exists bool) ([]byte, error)

// Store is a durable mapping from string keys to opaque values.
//
// Set is durable before it returns. GetByPrefix observes every Set that
// completed before it was issued and makes no ordering promise. Update is an
// atomic read-modify-write of a single key: no other write to that key lands
// between the read and the write.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	GetByPrefix(ctx context.Context, prefix string) ([][]byte, error)
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Ping(ctx context.Context) error
	Close() error
}
