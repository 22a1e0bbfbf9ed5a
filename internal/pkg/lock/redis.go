package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Only the holder's token may delete the key.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a Locker shared by every replica of the service.
// Keys expire after ttl so a crashed holder cannot block an account forever.
type RedisLock struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
	prefix string
}

// NewRedisLock creates a RedisLock with the given key expiry.
func NewRedisLock(client redis.UniversalClient, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLock{
		client: client,
		ttl:    ttl,
		retry:  50 * time.Millisecond,
		prefix: "smash:lock:",
	}
}

// WithLockContext executes fn while holding the Redis lock for key.
func (l *RedisLock) WithLockContext(ctx context.Context, key string, timeout time.Duration, fn func() error) error {
	token := uuid.NewString()
	k := l.prefix + key

	if err := l.acquire(ctx, k, token, timeout); err != nil {
		return err
	}
	defer l.release(k, token)

	return fn()
}

func (l *RedisLock) acquire(ctx context.Context, key, token string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		ok, err := l.client.SetNX(waitCtx, key, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		if ok {
			return nil
		}

		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return ErrLockTimeout
		case <-time.After(l.retry):
		}
	}
}

func (l *RedisLock) release(key, token string) {
	// The caller's context may already be done; release regardless.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to release redis lock")
	}
}
