package cache

import (
	"testing"
	"time"
)

func TestGetHonoursTTL(t *testing.T) {
	now := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	c := New[string](time.Minute)
	c.now = func() time.Time { return now }

	c.Set("token-a", "user-1")
	if v, ok := c.Get("token-a"); !ok || v != "user-1" {
		t.Fatalf("expected hit, got %q %v", v, ok)
	}

	now = now.Add(time.Minute)
	if _, ok := c.Get("token-a"); ok {
		t.Fatalf("expected entry to expire at its ttl")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entry to be dropped on read, len=%d", c.Len())
	}
}

func TestPrune(t *testing.T) {
	now := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	c := New[int](time.Minute)
	c.now = func() time.Time { return now }

	c.Set("old", 1)
	now = now.Add(30 * time.Second)
	c.Set("user:1", 2)
	c.Set("user:2", 3)
	now = now.Add(45 * time.Second)

	if remaining := c.Prune(); remaining != 2 {
		t.Fatalf("expected 2 live entries, got %d", remaining)
	}
	if _, ok := c.Get("old"); ok {
		t.Fatalf("expected pruned entry to be gone")
	}
}
