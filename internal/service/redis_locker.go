package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLocker implements short-lived distributed locks with SET NX. The TTL
// bounds how long a crashed holder can block others.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, "1", ttl).Result()
}

func (l *RedisLocker) Release(ctx context.Context, key string) {
	l.client.Del(ctx, key)
}
