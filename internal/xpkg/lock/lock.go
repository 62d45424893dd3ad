// Package lock implements a Redis mutex: SET NX PX with an owner token, released
// by a compare-and-delete script so a holder never frees someone else's lock.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotAcquired = errors.New("lock not acquired")

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const keyPrefix = "lock:"

type Locker struct {
	client *redis.Client
}

func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client}
}

type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// TryLock makes a single attempt.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &Lock{client: l.client, key: keyPrefix + key, token: token}, nil
}

// Lock retries every retryInterval until acquired, ctx is done, or maxRetries is reached.
func (l *Locker) Lock(ctx context.Context, key string, ttl, retryInterval time.Duration, maxRetries int) (*Lock, error) {
	for i := 0; ; i++ {
		lk, err := l.TryLock(ctx, key, ttl)
		if err == nil {
			return lk, nil
		}
		if !errors.Is(err, ErrNotAcquired) {
			return nil, err
		}
		if i+1 >= maxRetries {
			return nil, ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

func (lk *Lock) Unlock(ctx context.Context) error {
	return unlockScript.Run(ctx, lk.client, []string{lk.key}, lk.token).Err()
}
