package main

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/yourorg/sity/pkg/config"
	"github.com/yourorg/sity/pkg/kv"
)

func TestOpenStoreBackends(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	mr := miniredis.RunT(t)

	tests := []*config.Config{
		{StoreBackend: config.StoreMemory, StoreTimeout: time.Second},
		{StoreBackend: config.StoreSQLite, SQLitePath: filepath.Join(t.TempDir(), "sity.db"), StoreTimeout: time.Second},
		{StoreBackend: config.StoreRedis, RedisURL: "redis://" + mr.Addr(), StoreTimeout: time.Second},
	}
	for _, cfg := range tests {
		t.Run(cfg.StoreBackend, func(t *testing.T) {
			store, err := openStore(context.Background(), cfg, log)
			if err != nil {
				t.Fatalf("open failed: %v", err)
			}
			defer store.Close()

			ctx := context.Background()
			if err := store.Set(ctx, "user:1", []byte(`{"id":"1"}`)); err != nil {
				t.Fatalf("set failed: %v", err)
			}
			if _, err := store.Get(ctx, "user:2"); !errors.Is(err, kv.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestDialStoreRejectsUnknownBackend(t *testing.T) {
	if _, err := dialStore(context.Background(), &config.Config{StoreBackend: "cassandra"}, slog.New(slog.DiscardHandler)); err == nil {
		t.Fatalf("expected unknown backend error")
	}
}

func TestNewIdentityProvider(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	if _, err := newIdentityProvider(&config.Config{AuthMode: config.AuthLocal, JWTSecret: "s", TokenTTL: time.Hour}, log); err != nil {
		t.Fatalf("local provider: %v", err)
	}
	if _, err := newIdentityProvider(&config.Config{AuthMode: config.AuthLocal}, log); err == nil {
		t.Fatalf("expected missing secret to fail")
	}
	if _, err := newIdentityProvider(&config.Config{AuthMode: "ldap"}, log); err == nil {
		t.Fatalf("expected unknown mode to fail")
	}
}
