package api

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRevoker stores revoked session token ids in Redis so all instances
// reject a logged-out cookie before its expiry claim runs out.
type RedisRevoker struct {
	client *redis.Client
}

// NewRedisRevoker creates a revoker using the provided Redis client.
func NewRedisRevoker(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client}
}

func (r *RedisRevoker) key(tokenID string) string {
	return "revoked:" + tokenID
}

// Revoke records the token id for ttl, the token's remaining lifetime. The
// entry expires together with the token, so the set cannot grow unbounded.
func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(tokenID), 1, ttl).Err()
}

// IsRevoked reports whether the token id has been revoked.
func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
