package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// PipelineFlagKey holds "1" while report generation is switched off.
const PipelineFlagKey = "report_pipeline:unavailable"

// FeatureFlags holds the report pipeline availability switch. The value lives in
// Redis when a client is configured so every instance sees the same switch;
// otherwise, or when Redis fails, the in-process value is used.
type FeatureFlags struct {
	rdb         *redis.Client
	unavailable atomic.Bool
}

// NewFeatureFlags creates the flags with the configured initial availability.
// rdb may be nil.
func NewFeatureFlags(unavailable bool, rdb *redis.Client) *FeatureFlags {
	f := &FeatureFlags{rdb: rdb}
	f.unavailable.Store(unavailable)
	return f
}

// NewRedisClient connects to redisURL and checks the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// PipelineAvailable reports whether new generations may start.
func (f *FeatureFlags) PipelineAvailable(ctx context.Context) bool {
	if f.rdb != nil {
		val, err := f.rdb.Get(ctx, PipelineFlagKey).Result()
		switch {
		case err == nil:
			return val != "1"
		case !errors.Is(err, redis.Nil):
			log.Printf("[flags] Redis read failed, using local value: %v", err)
		}
	}
	return !f.unavailable.Load()
}

// SetPipelineAvailable switches report generation on or off.
func (f *FeatureFlags) SetPipelineAvailable(ctx context.Context, available bool) error {
	f.unavailable.Store(!available)
	if f.rdb == nil {
		return nil
	}
	val := "0"
	if !available {
		val = "1"
	}
	if err := f.rdb.Set(ctx, PipelineFlagKey, val, 0).Err(); err != nil {
		return fmt.Errorf("failed to store pipeline flag: %w", err)
	}
	return nil
}
