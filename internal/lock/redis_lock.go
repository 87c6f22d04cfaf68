package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// retryInterval is how long an acquirer sleeps between SETNX attempts
// while its wait bound has not elapsed.
const retryInterval = 50 * time.Millisecond

// releaseScript deletes the lock key only when it still carries the
// caller's owner token, so a lease that expired and was re-acquired by
// another process is never released by the stale owner.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// RedisLock implements SeatLock on a shared Redis instance so multiple
// service nodes agree on seat ownership.  Each acquisition stores a
// random owner token under "lock:<key>" with the lease TTL.
type RedisLock struct {
	client *redis.Client
}

// NewRedisLock returns a RedisLock bound to the provided client.
func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{client: client}
}

// TryAcquire attempts SETNX until it succeeds or the wait bound
// elapses.  The bound is enforced with a deadline rather than a retry
// count so the caller's latency budget holds regardless of contention.
func (l *RedisLock) TryAcquire(ctx context.Context, key string, wait, ttl time.Duration) (*Lease, error) {
	lockKey := "lock:" + key
	owner := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.client.SetNX(ctx, lockKey, owner, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return &Lease{Key: lockKey, Owner: owner}, nil
		}
		if time.Now().Add(retryInterval).After(deadline) {
			return nil, ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

// Release frees the lock if the lease still owns it.  Releasing an
// expired or stolen lease returns ErrNotOwned.
func (l *RedisLock) Release(ctx context.Context, lease *Lease) error {
	n, err := releaseScript.Run(ctx, l.client, []string{lease.Key}, lease.Owner).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotOwned
	}
	return nil
}
