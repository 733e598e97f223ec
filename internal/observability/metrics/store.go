package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/yourorg/sity/pkg/kv"
)

type instrumentedStore struct {
	kv.Store
	backend string
}

// InstrumentStore records latency and outcome of every store call
func InstrumentStore(store kv.Store, backend string) kv.Store {
	return &instrumentedStore{Store: store, backend: backend}
}

func (s *instrumentedStore) observe(op string, start time.Time, err error) {
	ObserveStoreOperation(s.backend, op, storeResult(err), time.Since(start))
}

func storeResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, kv.ErrNotFound):
		return "not_found"
	case errors.Is(err, kv.ErrConflict):
		return "conflict"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "error"
	}
}

func (s *instrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	v, err := s.Store.Get(ctx, key)
	s.observe("get", start, err)
	return v, err
}

func (s *instrumentedStore) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := s.Store.Set(ctx, key, value)
	s.observe("set", start, err)
	return err
}

func (s *instrumentedStore) GetByPrefix(ctx context.Context, prefix string) ([][]byte, error) {
	start := time.Now()
	v, err := s.Store.GetByPrefix(ctx, prefix)
	s.observe("get_by_prefix", start, err)
	return v, err
}

// Update counts aborts from fn (seat shortages, bad transitions) as errors;
// the label says the write did not happen, not that the store failed.
func (s *instrumentedStore) Update(ctx context.Context, key string, fn kv.UpdateFunc) error {
	start := time.Now()
	err := s.Store.Update(ctx, key, fn)
	s.observe("update", start, err)
	return err
}
