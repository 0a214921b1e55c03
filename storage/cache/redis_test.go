package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
)

// TestRedisCache runs against the server at REDIS_ADDR, when set.
func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR is not set")
	}
	conf := core.NewTestConfig()
	conf.Redis.Addr = addr

	ctx := context.Background()
	c, err := NewRedisCache(ctx, conf)
	require.NoError(t, err)
	defer c.Close()

	prefix := "test:" + uuid.NewString() + ":"
	_, ok, err := c.Get(ctx, prefix+"missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, prefix+"page", []byte("page"), time.Minute))
	got, ok, err := c.Get(ctx, prefix+"page")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("page"), got)

	n, err := c.Incr(ctx, prefix+"gen")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = c.Incr(ctx, prefix+"gen")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
