package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PassLock provides mutual exclusion across horizontally scaled processor
// instances. The single-instance deployment does not need one; configure it
// (WithPassLock) as soon as more than one process runs the loop.
type PassLock interface {
	// TryAcquire attempts to take the lock without blocking. When acquired,
	// the returned release function must be called once the pass is done.
	TryAcquire(ctx context.Context, key string) (release func(), acquired bool, err error)
}

// releaseScript deletes the lease only if this instance still owns it, so a
// slow pass that outlived its TTL cannot release someone else's lease.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisPassLock is a lease-based PassLock on Redis. The lease expires on its
// own, so a crashed holder blocks other instances for at most the TTL.
type RedisPassLock struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
	owner  string
}

// NewRedisPassLock creates a pass lock with a per-instance owner token.
func NewRedisPassLock(client *redis.Client, logger *zap.Logger, ttl time.Duration) *RedisPassLock {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = defaultPassLockTTL
	}
	return &RedisPassLock{
		client: client,
		logger: logger,
		ttl:    ttl,
		owner:  uuid.NewString(),
	}
}

// TryAcquire implements PassLock with SET NX PX.
func (l *RedisPassLock) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	acquired, err := l.client.SetNX(ctx, key, l.owner, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lease %q: %w", key, err)
	}
	if !acquired {
		return nil, false, nil
	}

	release := func() {
		// Release with a fresh context: the pass context may already be
		// cancelled during shutdown, and an unreleased lease holds the lock
		// for the rest of its TTL.
		if err := releaseScript.Run(context.Background(), l.client, []string{key}, l.owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Warn("Failed to release pass lease", zap.String("lock", key), zap.Error(err))
		}
	}
	return release, true, nil
}
