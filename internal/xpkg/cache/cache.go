// Package cache is a small JSON read-through cache on Redis for public content.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"deliveryhub/internal/xpkg/logger"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "cache:"

// Catalog keys are filled by the order service and dropped by the admin service.
const (
	KeyRestaurants = "restaurants:active"
	PrefixMenu     = "menu:"
)

type Cache struct {
	client *redis.Client
	ttl    time.Duration
	mylog  logger.Logger
}

func New(client *redis.Client, ttl time.Duration, mylog logger.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, mylog: mylog.Action("cache")}
}

// Load returns the cached value for key, or calls fill and stores its result.
// Redis failures degrade to calling fill.
func Load[T any](ctx context.Context, c *Cache, key string, fill func(ctx context.Context) (T, error)) (T, error) {
	if c == nil || c.client == nil {
		return fill(ctx)
	}

	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err == nil {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.mylog.Warn("cache read failed", "key", key, "err", err.Error())
	}

	v, err := fill(ctx)
	if err != nil {
		return v, err
	}

	if b, err := json.Marshal(v); err == nil {
		if err := c.client.Set(ctx, keyPrefix+key, b, c.ttl).Err(); err != nil {
			c.mylog.Warn("cache write failed", "key", key, "err", err.Error())
		}
	}
	return v, nil
}

// Invalidate deletes every key starting with prefix.
func (c *Cache) Invalidate(ctx context.Context, prefix string) {
	if c == nil || c.client == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, keyPrefix+prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.mylog.Warn("cache scan failed", "prefix", prefix, "err", err.Error())
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.mylog.Warn("cache invalidate failed", "prefix", prefix, "err", err.Error())
	}
}

// NewRedisClient builds the shared client and pings it.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
