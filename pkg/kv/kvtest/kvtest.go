// Package kvtest holds the behavioural suite every kv.Store backend must pass.
package kvtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/yourorg/sity/pkg/kv"
)

// Run exercises newStore against the kv.Store contract. newStore must return
// an empty store; cleanup is the caller's business (t.Cleanup).
func Run(t *testing.T, newStore func(t *testing.T) kv.Store) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Get(context.Background(), "ride:nope"); !errors.Is(err, kv.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SetThenGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.Set(ctx, "user:1", []byte(`{"name":"ada"}`)); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		if err := s.Set(ctx, "user:1", []byte(`{"name":"grace"}`)); err != nil {
			t.Fatalf("overwrite failed: %v", err)
		}
		got, err := s.Get(ctx, "user:1")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if string(got) != `{"name":"grace"}` {
			t.Fatalf("expected overwritten value, got %s", got)
		}
	})

	t.Run("GetByPrefix", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for key, value := range map[string]string{
			"ride:1":          `"r1"`,
			"ride:2":          `"r2"`,
			"ride_request:1":  `"q1"`,
			"driver_rides:d1": `["1"]`,
			"rides:x":         `"nope"`,
		} {
			if err := s.Set(ctx, key, []byte(value)); err != nil {
				t.Fatalf("set %s failed: %v", key, err)
			}
		}

		values, err := s.GetByPrefix(ctx, "ride:")
		if err != nil {
			t.Fatalf("prefix scan failed: %v", err)
		}
		got := make([]string, 0, len(values))
		for _, v := range values {
			got = append(got, string(v))
		}
		sort.Strings(got)
		if len(got) != 2 || got[0] != `"r1"` || got[1] != `"r2"` {
			t.Fatalf("expected only ride: values, got %v", got)
		}

		empty, err := s.GetByPrefix(ctx, "nothing:")
		if err != nil {
			t.Fatalf("empty prefix scan failed: %v", err)
		}
		if len(empty) != 0 {
			t.Fatalf("expected no values, got %d", len(empty))
		}
	})

	t.Run("UpdateCreatesMissingKey", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		err := s.Update(ctx, "counter", func(current []byte, exists bool) ([]byte, error) {
			if exists {
				return nil, fmt.Errorf("expected missing key, got %s", current)
			}
			return []byte("1"), nil
		})
		if err != nil {
			t.Fatalf("update failed: %v", err)
		}
		got, err := s.Get(ctx, "counter")
		if err != nil || string(got) != "1" {
			t.Fatalf("expected 1, got %s (err=%v)", got, err)
		}
	})

	t.Run("UpdateAbortLeavesValue", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.Set(ctx, "seats", []byte("2")); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		abort := errors.New("not enough seats")
		err := s.Update(ctx, "seats", func(current []byte, exists bool) ([]byte, error) {
			return nil, abort
		})
		if !errors.Is(err, abort) {
			t.Fatalf("expected abort error to propagate, got %v", err)
		}
		got, _ := s.Get(ctx, "seats")
		if string(got) != "2" {
			t.Fatalf("expected value untouched, got %s", got)
		}
	})

	t.Run("ConcurrentUpdatesDoNotLoseWrites", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		const writers = 10

		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- kv.UpdateJSON(ctx, s, "driver_rides:d1", func(ids *[]string, exists bool) error {
					*ids = append(*ids, fmt.Sprintf("ride-%d", i))
					return nil
				})
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("concurrent update failed: %v", err)
			}
		}

		var ids []string
		if err := kv.GetJSON(ctx, s, "driver_rides:d1", &ids); err != nil {
			t.Fatalf("read back failed: %v", err)
		}
		if len(ids) != writers {
			t.Fatalf("expected %d ids, got %d: %v", writers, len(ids), ids)
		}
	})

	t.Run("CancelledContext", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := s.Set(ctx, "user:late", []byte(`{}`)); err == nil {
			t.Fatalf("expected cancelled context to fail the write")
		}
		if _, err := s.Get(context.Background(), "user:late"); !errors.Is(err, kv.ErrNotFound) {
			t.Fatalf("expected no partial write, got %v", err)
		}
	})

	t.Run("JSONHelpers", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		type item struct {
			ID string `json:"id"`
		}
		for _, id := range []string{"a", "b"} {
			if err := kv.SetJSON(ctx, s, "item:"+id, item{ID: id}); err != nil {
				t.Fatalf("set json failed: %v", err)
			}
		}
		items, err := kv.ListJSON[item](ctx, s, "item:")
		if err != nil {
			t.Fatalf("list json failed: %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(items))
		}
		sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
		if items[0].ID != "a" || items[1].ID != "b" {
			t.Fatalf("expected items a and b, got %+v", items)
		}

		var got item
		if err := kv.GetJSON(ctx, s, "item:a", &got); err != nil || got.ID != "a" {
			t.Fatalf("get json returned %+v (err=%v)", got, err)
		}
		if err := kv.GetJSON(ctx, s, "item:zzz", &got); !errors.Is(err, kv.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for missing item, got %v", err)
		}

		if err := s.Set(ctx, "item:bad", []byte("not json")); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		if _, err := kv.ListJSON[item](ctx, s, "item:"); err == nil {
			t.Fatalf("expected decode error for corrupt record")
		}
	})
}
