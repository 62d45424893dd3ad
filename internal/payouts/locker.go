package payouts

import (
	"context"
	"errors"
	"time"

	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/lock"
)

// Locker serializes work on a key across processes.
type Locker interface {
	// Acquire waits a little for the key; ErrLocked when it stays busy.
	Acquire(ctx context.Context, key string) (release func(), err error)
	// TryAcquire makes one attempt; ok is false when someone else holds the key.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

const (
	payeeLockTTL   = 30 * time.Second
	payeeLockRetry = 100 * time.Millisecond
	payeeLockTries = 20
)

type redisLocker struct {
	locker *lock.Locker
}

func NewRedisLocker(l *lock.Locker) Locker {
	return &redisLocker{locker: l}
}

func (r *redisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lk, err := r.locker.Lock(ctx, key, payeeLockTTL, payeeLockRetry, payeeLockTries)
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, xerrors.ErrLocked
	}
	if err != nil {
		return nil, err
	}
	return func() { lk.Unlock(context.Background()) }, nil
}

func (r *redisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	lk, err := r.locker.TryLock(ctx, key, ttl)
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return func() { lk.Unlock(context.Background()) }, true, nil
}
