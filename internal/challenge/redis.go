package challenge

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps challenges in Redis with a server-side TTL, for
// deployments that run more than one gateway instance. Eviction is
// handled by Redis expiry; Get never observes a stale entry.
type RedisStore struct {
	cli *redis.Client
	ttl time.Duration
}

func NewRedisStore(cli *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{cli: cli, ttl: ttl}
}

func key(sessionID string) string { return "wagate:qr:" + sessionID }

func (s *RedisStore) Put(ctx context.Context, sessionID, payload string) error {
	return s.cli.Set(ctx, key(sessionID), payload, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (string, bool, error) {
	v, err := s.cli.Get(ctx, key(sessionID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) Remove(ctx context.Context, sessionID string) error {
	return s.cli.Del(ctx, key(sessionID)).Err()
}
