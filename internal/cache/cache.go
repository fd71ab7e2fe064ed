// Package cache is the short-lived response cache that fronts read-heavy
// lookups. Entries are never authoritative: an expired entry is a miss.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

const DefaultTTL = 30 * time.Second

// Cache stores raw bytes under a key together with a namespace tag.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key, tag string, value []byte)
	// InvalidateMatching drops every entry whose key contains substr and
	// reports how many were removed.
	InvalidateMatching(ctx context.Context, substr string) int
	Clear(ctx context.Context)
}

func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool) {
	var out T
	data, ok := c.Get(ctx, key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, false
	}
	return out, true
}

func SetJSON(ctx context.Context, c Cache, key, tag string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.Set(ctx, key, tag, data)
	return nil
}
