package service

import (
    "context"
    "log"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisLocker implements Locker with a SETNX-style lock per key.  Two
// concurrent refund requests against the same capture id are not mutually
// locked anywhere else in this layer, so this guard is what prevents the
// double-refund race on our side; the gateway's own refund semantics are
// the backstop.
type RedisLocker struct {
    rdb *redis.Client
}

// NewRedisLocker wraps a Redis client.  A nil client yields a locker that
// always acquires, degrading to the database state check alone.
func NewRedisLocker(rdb *redis.Client) *RedisLocker { return &RedisLocker{rdb: rdb} }

// Acquire takes the lock for key, bounded by ttl so a crashed holder cannot
// wedge the capture id forever.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
    if l.rdb == nil {
        return true, nil
    }
    ok, err := l.rdb.SetNX(ctx, "lock:"+key, 1, ttl).Result()
    if err != nil {
        // Redis being down must not block refunds entirely.
        log.Printf("refund-lock: acquire %s failed: %v", key, err)
        return true, err
    }
    return ok, nil
}

// Release drops the lock early so a failed gateway call can be retried
// without waiting out the TTL.
func (l *RedisLocker) Release(ctx context.Context, key string) {
    if l.rdb == nil {
        return
    }
    if err := l.rdb.Del(ctx, "lock:"+key).Err(); err != nil {
        log.Printf("refund-lock: release %s failed: %v", key, err)
    }
}
