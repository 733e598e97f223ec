package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yourorg/sity/pkg/kv"
)

const (
	scanBatch         = 100
	maxUpdateAttempts = 64
)

// Store implements kv.Store on top of Redis. Values are plain strings; prefix
// scans use SCAN so they never block the server the way KEYS does.
type Store struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewStore parses url, connects and pings Redis
func NewStore(url string, logger *slog.Logger) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewStoreFromClient(rdb, logger), nil
}

// NewStoreFromClient wraps an existing client
func NewStoreFromClient(rdb *redis.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{rdb: rdb, logger: logger}
}

// Get retrieves a value
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return data, nil
}

// Set stores a value without expiry
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// GetByPrefix scans for matching keys and fetches them in MGET batches.
// Keys deleted between the scan and the fetch are skipped.
func (s *Store) GetByPrefix(ctx context.Context, prefix string) ([][]byte, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, escapePattern(prefix)+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s*: %w", prefix, err)
	}

	values := make([][]byte, 0, len(keys))
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		batch, err := s.rdb.MGet(ctx, keys[start:end]...).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s* values: %w", prefix, err)
		}
		for i, v := range batch {
			str, ok := v.(string)
			if !ok {
				s.logger.Debug("key vanished during scan", slog.String("key", keys[start+i]))
				continue
			}
			values = append(values, []byte(str))
		}
	}
	return values, nil
}

// Update runs fn inside WATCH/MULTI/EXEC and retries when another client
// touched the key first.
func (s *Store) Update(ctx context.Context, key string, fn kv.UpdateFunc) error {
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		exists := true
		if errors.Is(err, redis.Nil) {
			exists = false
			current = nil
		} else if err != nil {
			return fmt.Errorf("failed to read %s: %w", key, err)
		}

		next, err := fn(current, exists)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			s.logger.Debug("optimistic update lost race",
				slog.String("key", key),
				slog.Int("attempt", attempt),
			)
			continue
		}
		return err
	}
	return fmt.Errorf("failed to update %s: %w", key, kv.ErrConflict)
}

// Ping checks connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.rdb.Close()
}

func escapePattern(prefix string) string {
	var b strings.Builder
	for _, r := range prefix {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
