package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"deliveryhub/internal/xpkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_NilCacheCallsFill(t *testing.T) {
	calls := 0
	v, err := Load(context.Background(), nil, "faq", func(context.Context) ([]string, error) {
		calls++
		return []string{"a"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, v)
	assert.Equal(t, 1, calls)

	_, err = Load(context.Background(), nil, "faq", func(context.Context) ([]string, error) {
		return nil, errors.New("db down")
	})
	assert.Error(t, err)
}

func TestLoad_Redis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, addr, "", 0)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer client.Close()

	c := New(client, time.Minute, logger.Discard())
	c.Invalidate(ctx, "test:")

	calls := 0
	fill := func(context.Context) (map[string]int, error) {
		calls++
		return map[string]int{"banners": 2}, nil
	}

	for i := 0; i < 2; i++ {
		v, err := Load(ctx, c, "test:banners", fill)
		require.NoError(t, err)
		assert.Equal(t, 2, v["banners"])
	}
	assert.Equal(t, 1, calls)

	c.Invalidate(ctx, "test:")
	_, err = Load(ctx, c, "test:banners", fill)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
