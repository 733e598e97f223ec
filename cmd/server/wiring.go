package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yourorg/sity/internal/domain"
	"github.com/yourorg/sity/internal/infrastructure/redis"
	"github.com/yourorg/sity/internal/observability/metrics"
	"github.com/yourorg/sity/internal/reliability/retry"
	"github.com/yourorg/sity/internal/security/auth"
	"github.com/yourorg/sity/pkg/config"
	"github.com/yourorg/sity/pkg/database"
	"github.com/yourorg/sity/pkg/kv"
)

// openStore connects the configured backend, retrying while it comes up,
// and wraps it with per-call timeouts and metrics
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (kv.Store, error) {
	raw, err := retry.Do(ctx, retry.DefaultConfig(), log, "connect "+cfg.StoreBackend, func(ctx context.Context) (kv.Store, error) {
		return dialStore(ctx, cfg, log)
	})
	if err != nil {
		return nil, err
	}
	return metrics.InstrumentStore(kv.WithTimeout(raw, cfg.StoreTimeout), cfg.StoreBackend), nil
}

func dialStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (kv.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		log.Warn("using in-memory store; data is lost on restart")
		return kv.NewMemoryStore(), nil
	case config.StoreRedis:
		store, err := redis.NewStore(cfg.RedisURL, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorePostgres, config.StoreSQLite:
		dbCfg := database.DefaultConfig()
		dbCfg.DSN = cfg.DatabaseURL
		if cfg.StoreBackend == config.StoreSQLite {
			dbCfg = &database.Config{Driver: database.DriverSQLite, DSN: cfg.SQLitePath}
		}
		store, err := database.Open(ctx, dbCfg, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// newIdentityProvider builds the provider named by AUTH_MODE
func newIdentityProvider(cfg *config.Config, log *slog.Logger) (domain.IdentityProvider, error) {
	switch cfg.AuthMode {
	case config.AuthLocal:
		tokens, err := auth.NewTokenManager(cfg.JWTSecret, "sity")
		if err != nil {
			return nil, err
		}
		return auth.NewLocalProvider(tokens, cfg.TokenTTL, log), nil
	case config.AuthSupabase:
		provider, err := auth.NewSupabaseProvider(auth.SupabaseConfig{
			URL:            cfg.SupabaseURL,
			ServiceRoleKey: cfg.SupabaseServiceRoleKey,
			AnonKey:        cfg.SupabaseAnonKey,
			Timeout:        cfg.IdentityTimeout,
		}, log)
		if err != nil {
			return nil, err
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.AuthMode)
	}
}
