package kv

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetJSON reads key and decodes it into dst.
func GetJSON(ctx context.Context, s Store, key string, dst any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Set(ctx, key, data)
}

// ListJSON decodes every value whose key starts with prefix.
func ListJSON[T any](ctx context.Context, s Store, prefix string) ([]T, error) {
	values, err := s.GetByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(values))
	for _, data := range values {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode value under %s: %w", prefix, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// UpdateJSON runs an atomic read-modify-write on a JSON value. fn mutates v in
// place; v is the zero value when the key does not exist yet.
func UpdateJSON[T any](ctx context.Context, s Store, key string, fn func(v *T, exists bool) error) error {
	return s.Update(ctx, key, func(current []byte, exists bool) ([]byte, error) {
		var v T
		if exists {
			if err := json.Unmarshal(current, &v); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", key, err)
			}
		}
		if err := fn(&v, exists); err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", key, err)
		}
		return data, nil
	})
}
