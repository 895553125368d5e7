package server

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_Local(t *testing.T) {
	ctx := context.Background()

	f := NewFeatureFlags(false, nil)
	assert.True(t, f.PipelineAvailable(ctx))

	require.NoError(t, f.SetPipelineAvailable(ctx, false))
	assert.False(t, f.PipelineAvailable(ctx))

	require.NoError(t, f.SetPipelineAvailable(ctx, true))
	assert.True(t, f.PipelineAvailable(ctx))

	assert.False(t, NewFeatureFlags(true, nil).PipelineAvailable(ctx))
}

func TestFeatureFlags_RedisDownFallsBackToLocal(t *testing.T) {
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	f := NewFeatureFlags(true, rdb)
	assert.False(t, f.PipelineAvailable(ctx))

	// the write fails but the local value still changes
	assert.Error(t, f.SetPipelineAvailable(ctx, true))
	assert.True(t, f.PipelineAvailable(ctx))
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "http://not-redis")
	assert.Error(t, err)
}
