package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the claim only if it still holds the caller's token,
// so a request that outlived its TTL cannot drop a newer claim.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RequestLock implements ports.RequestLock using Redis SET NX.
type RequestLock struct {
	client goredis.Cmdable
	prefix string
}

// NewRequestLock creates a Redis-backed in-flight request lock.
func NewRequestLock(client goredis.Cmdable) *RequestLock {
	return &RequestLock{
		client: client,
		prefix: "inflight:",
	}
}

// Claim atomically takes key for ttl under a fresh token. Returns false if
// someone holds it.
func (l *RequestLock) Claim(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	result, err := l.client.SetArgs(ctx, l.prefix+key, token, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis request lock claim: %w", err)
	}
	if result != "OK" {
		return "", false, nil
	}
	return token, true, nil
}

// Release drops the claim on key if it is still held under token.
func (l *RequestLock) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + key}, token).Err(); err != nil {
		return fmt.Errorf("redis request lock release: %w", err)
	}
	return nil
}
