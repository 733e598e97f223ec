package redis

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/yourorg/sity/pkg/kv"
	"github.com/yourorg/sity/pkg/kv/kvtest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStoreFromClient(rdb, nil)
}

func TestStoreContract(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store {
		return newTestStore(t)
	})
}

func TestGetByPrefixAcrossBatches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 2*scanBatch+7; i++ {
		if err := s.Set(ctx, "ride:"+strconv.Itoa(i), []byte(`{}`)); err != nil {
			t.Fatalf("set failed: %v", err)
		}
	}
	values, err := s.GetByPrefix(ctx, "ride:")
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(values) != 2*scanBatch+7 {
		t.Fatalf("expected %d values, got %d", 2*scanBatch+7, len(values))
	}
}

func TestEscapePattern(t *testing.T) {
	cases := map[string]string{
		"ride:":    "ride:",
		"a*b":      `a\*b`,
		"[x]?":     `\[x\]\?`,
		`back\sla`: `back\\sla`,
	}
	for in, want := range cases {
		if got := escapePattern(in); got != want {
			t.Errorf("escapePattern(%q) = %q, want %q", in, got, want)
		}
	}
}
