package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker provides mutual exclusion for scheduled sweeps across service
// instances. Failing to acquire is not an error: it means another
// instance is handling this cycle. Backing-store failures also degrade
// to "not acquired" so a missed cycle never crashes the scheduler.
type Locker interface {
	// TryAcquire reports whether the caller now owns the named lock
	// until ttl elapses or Release is called.
	TryAcquire(ctx context.Context, taskName string, ttl time.Duration) bool
	// Release is idempotent and safe to call without ownership.
	Release(ctx context.Context, taskName string)
}

const lockKeyPrefix = "scheduler:lock:"

// releaseScript deletes the lock only when the caller still owns it,
// so a lock that expired and was re-acquired elsewhere is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a shared-store Locker for multi-instance deployments.
// The TTL bounds how long a crashed instance can hold a lock.
type RedisLocker struct {
	client *redis.Client
	owner  string
	logger *slog.Logger
}

// NewRedisLocker creates a RedisLocker with a unique owner token, so
// releases cannot clobber locks re-acquired by other instances.
func NewRedisLocker(client *redis.Client, logger *slog.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		owner:  uuid.New().String(),
		logger: logger,
	}
}

func (l *RedisLocker) TryAcquire(ctx context.Context, taskName string, ttl time.Duration) bool {
	ok, err := l.client.SetNX(ctx, lockKeyPrefix+taskName, l.owner, ttl).Result()
	if err != nil {
		l.logger.Warn("Lock acquisition failed, skipping this cycle",
			slog.String("task", taskName),
			slog.Any("error", err),
		)
		return false
	}
	return ok
}

func (l *RedisLocker) Release(ctx context.Context, taskName string) {
	if err := releaseScript.Run(ctx, l.client, []string{lockKeyPrefix + taskName}, l.owner).Err(); err != nil && err != redis.Nil {
		l.logger.Warn("Lock release failed, lock will expire by TTL",
			slog.String("task", taskName),
			slog.Any("error", err),
		)
	}
}

// NoopLocker always grants. For single-instance deployments and tests.
type NoopLocker struct{}

func (NoopLocker) TryAcquire(ctx context.Context, taskName string, ttl time.Duration) bool { return true }

func (NoopLocker) Release(ctx context.Context, taskName string) {}
