package lock

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
)

const shardCount = 32

type lockEntry struct {
	owner     string
	expiresAt time.Time
}

type lockShard struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

// LocalLock implements SeatLock with an in-process sharded mutex table.
// It honors the same contract as the Redis implementation — bounded
// wait, owner tokens, lease expiry — and suits single-node deployments
// and tests.  Keys are spread over a fixed set of shards so acquisitions
// for unrelated seats do not serialize on one mutex.
type LocalLock struct {
	shards [shardCount]*lockShard
}

// NewLocalLock returns an empty LocalLock.
func NewLocalLock() *LocalLock {
	l := &LocalLock{}
	for i := range l.shards {
		l.shards[i] = &lockShard{entries: make(map[string]*lockEntry)}
	}
	return l
}

func (l *LocalLock) shard(key string) *lockShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return l.shards[h.Sum32()%shardCount]
}

// TryAcquire polls the shard until the key is free (or its current
// lease has expired) or the wait bound elapses.
func (l *LocalLock) TryAcquire(ctx context.Context, key string, wait, ttl time.Duration) (*Lease, error) {
	owner := uuid.NewString()
	deadline := time.Now().Add(wait)
	s := l.shard(key)

	for {
		s.mu.Lock()
		e, held := s.entries[key]
		if !held || time.Now().After(e.expiresAt) {
			s.entries[key] = &lockEntry{owner: owner, expiresAt: time.Now().Add(ttl)}
			s.mu.Unlock()
			return &Lease{Key: key, Owner: owner}, nil
		}
		s.mu.Unlock()

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

// Release removes the entry when the lease still owns it.
func (l *LocalLock) Release(_ context.Context, lease *Lease) error {
	s := l.shard(lease.Key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, held := s.entries[lease.Key]
	if !held || e.owner != lease.Owner {
		return ErrNotOwned
	}
	delete(s.entries, lease.Key)
	return nil
}
