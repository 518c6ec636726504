package artifacts

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores artifacts as redis hashes with a TTL, one hash per
// storage key. Content and modification time live in hash fields so List
// can report metadata without a second round trip.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend creates a redis-backed artifact blob store
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Put(ctx context.Context, key, content string, ttl time.Duration) error {
	pipe := b.client.TxPipeline()
	pipe.HSet(ctx, key,
		"content", content,
		"size", len(content),
		"modified", time.Now().UTC().Format(time.RFC3339Nano),
	)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

func (b *RedisBackend) Get(ctx context.Context, key string) (string, time.Time, error) {
	fields, err := b.client.HGetAll(ctx, key).Result()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("redis get: %w", err)
	}
	if len(fields) == 0 {
		// HGetAll returns an empty map, not redis.Nil, for missing keys
		return "", time.Time{}, ErrNotFound
	}
	modified, _ := time.Parse(time.RFC3339Nano, fields["modified"])
	return fields["content"], modified, nil
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func (b *RedisBackend) Exists(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}
