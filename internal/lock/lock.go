// Package lock provides per-key mutual exclusion with a bounded wait
// and lease-based recovery.  The seat service acquires a lock scoped to
// a single seat id before every status check-and-set, so unrelated
// seats never contend.  The lease TTL only bounds lock leakage after a
// crash mid-hold; well-behaved callers always release explicitly.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired is returned when the lock could not be acquired within
// the caller's wait bound.  Callers should fail fast and report
// contention rather than queue behind the holder.
var ErrNotAcquired = errors.New("lock not acquired within wait bound")

// ErrNotOwned is returned when releasing a lease that has expired or
// was taken over by another owner.
var ErrNotOwned = errors.New("lock not owned")

// Lease identifies one successful acquisition.  The owner token guards
// against releasing a lock that expired and was re-acquired by someone
// else.
type Lease struct {
	Key   string
	Owner string
}

// SeatLock is the mutual-exclusion capability the booking core depends
// on.  TryAcquire blocks for at most wait and either returns a lease
// valid for ttl or ErrNotAcquired.  Release frees the lock if the lease
// is still owned.
type SeatLock interface {
	TryAcquire(ctx context.Context, key string, wait, ttl time.Duration) (*Lease, error)
	Release(ctx context.Context, lease *Lease) error
}
