package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "nibog:cache:"
	scanCount = 100
)

type redisEntry struct {
	Data     []byte    `json:"data"`
	StoredAt time.Time `json:"stored_at"`
	Tag      string    `json:"tag"`
}

// Redis shares the cache between service replicas. Redis failures degrade
// to misses; the backend stays the source of truth.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

func NewRedis(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl, logger: logger}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.WarnContext(ctx, "Cache read failed", "key", key, "error", err)
			cacheErrorCounter.Inc()
		}
		cacheMissCounter.Inc()
		return nil, false
	}

	var e redisEntry
	if err := json.Unmarshal(raw, &e); err != nil || time.Since(e.StoredAt) >= r.ttl {
		cacheMissCounter.Inc()
		return nil, false
	}
	cacheHitCounter.Inc()
	return e.Data, true
}

func (r *Redis) Set(ctx context.Context, key, tag string, value []byte) {
	raw, err := json.Marshal(redisEntry{Data: value, StoredAt: time.Now(), Tag: tag})
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, keyPrefix+key, raw, r.ttl).Err(); err != nil {
		r.logger.WarnContext(ctx, "Cache write failed", "key", key, "error", err)
		cacheErrorCounter.Inc()
	}
}

func (r *Redis) InvalidateMatching(ctx context.Context, substr string) int {
	removed := r.deleteMatching(ctx, keyPrefix+"*"+substr+"*")
	cacheInvalidatedCounter.Add(removed)
	return removed
}

func (r *Redis) Clear(ctx context.Context) {
	r.deleteMatching(ctx, keyPrefix+"*")
}

func (r *Redis) deleteMatching(ctx context.Context, pattern string) int {
	removed := 0
	iter := r.client.Scan(ctx, 0, pattern, scanCount).Iterator()
	for iter.Next(ctx) {
		n, err := r.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			r.logger.WarnContext(ctx, "Cache delete failed", "key", iter.Val(), "error", err)
			continue
		}
		removed += int(n)
	}
	if err := iter.Err(); err != nil {
		r.logger.WarnContext(ctx, "Cache scan failed", "pattern", pattern, "error", err)
		cacheErrorCounter.Inc()
	}
	return removed
}
