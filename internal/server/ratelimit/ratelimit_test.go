package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucket_AllowAndStatus(t *testing.T) {
	b := newBucket(10, 1.0)
	now := time.Now()

	for i := 0; i < 10; i++ {
		assert.True(t, b.allow(now), "request %d", i+1)
	}
	assert.False(t, b.allow(now), "11th request should be denied")

	remaining, reset, next := b.status(now)
	assert.Zero(t, remaining)
	assert.True(t, reset.After(now))
	assert.InDelta(t, time.Second, next, float64(10*time.Millisecond))

	// one token back after a second
	later := now.Add(1100 * time.Millisecond)
	assert.True(t, b.allow(later))
	assert.False(t, b.allow(later))
}

func TestLimiter_Allow(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute})
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/progress/1/ast_personal", "GET")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 10, info.Limit)
		assert.Equal(t, 9-i, info.Remaining)
	}

	allowed, info := limiter.Allow("127.0.0.1", "/progress/1/ast_personal", "GET")
	assert.False(t, allowed)
	assert.Zero(t, info.Remaining)
	assert.Positive(t, info.RetryAfter)

	// other clients have their own buckets
	allowed, _ = limiter.Allow("127.0.0.2", "/progress/1/ast_personal", "GET")
	assert.True(t, allowed)
}

func TestLimiter_WhitelistBlacklistDisabled(t *testing.T) {
	limiter := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Whitelist:     map[string]bool{"10.0.0.1": true},
		Blacklist:     map[string]bool{"10.0.0.2": true},
	})
	defer limiter.Stop()

	for i := 0; i < 50; i++ {
		allowed, info := limiter.Allow("10.0.0.1", "/status/1", "GET")
		require.True(t, allowed)
		assert.Zero(t, info.Limit)
	}
	allowed, _ := limiter.Allow("10.0.0.2", "/status/1", "GET")
	assert.False(t, allowed)

	off := NewLimiter(&Config{Enabled: false})
	defer off.Stop()
	for i := 0; i < 50; i++ {
		allowed, _ := off.Allow("10.0.0.3", "/status/1", "GET")
		require.True(t, allowed)
	}
}

func TestLimiter_GenerateSharesPrefixBucket(t *testing.T) {
	limiter := NewLimiter(&Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		EndpointConfigs: ReportEndpoints(0),
	})
	defer limiter.Stop()

	for i := 0; i < 5; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/generate/1", "POST")
		require.True(t, allowed)
		assert.Equal(t, 20, info.Limit)
	}
	// burst exhausted even for a different user id on the same prefix
	allowed, _ := limiter.Allow("127.0.0.1", "/generate/2", "POST")
	assert.False(t, allowed)

	allowed, info := limiter.Allow("127.0.0.1", "/progress/1/ast_personal", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 1000, info.Limit)
}

func TestLimiter_HealthUnlimited(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Hour})
	defer limiter.Stop()
	for i := 0; i < 20; i++ {
		allowed, _ := limiter.Allow("127.0.0.1", "/health", "GET")
		require.True(t, allowed)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 100, DefaultWindow: time.Hour})
	defer limiter.Stop()

	var wg sync.WaitGroup
	var allowedCount atomic.Int32
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _ := limiter.Allow("127.0.0.1", "/status/1", "GET"); allowed {
				allowedCount.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(100), allowedCount.Load())
}

func TestLimiter_CleanupBuckets(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute})
	defer limiter.Stop()

	limiter.Allow("127.0.0.1", "/status/1", "GET")
	limiter.cleanupBuckets(time.Now().Add(-time.Hour))
	assert.Len(t, limiter.buckets, 1)

	limiter.cleanupBuckets(time.Now().Add(time.Second))
	assert.Empty(t, limiter.buckets)
	assert.Empty(t, limiter.lastAccess)
}

func TestNewLimiter_NilConfig(t *testing.T) {
	limiter := NewLimiter(nil)
	defer limiter.Stop()

	allowed, info := limiter.Allow("127.0.0.1", "/status/1", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 1000, info.Limit)
	limiter.Stop()
}

func TestMatchEndpoint(t *testing.T) {
	configs := []EndpointConfig{
		{Path: "/sections/", Method: "POST", Limit: 30},
		{Path: "/sections/special/", Method: "POST", Limit: 3},
		{Path: "/admin/report-pipeline", Method: "PUT", Limit: 5},
	}

	assert.Equal(t, 30, MatchEndpoint("/sections/1/ast_personal/2/regenerate", "POST", configs).Limit)
	assert.Equal(t, 3, MatchEndpoint("/sections/special/x", "POST", configs).Limit)
	assert.Equal(t, 5, MatchEndpoint("/admin/report-pipeline", "PUT", configs).Limit)
	assert.Nil(t, MatchEndpoint("/sections/1/ast_personal", "GET", configs))
	assert.Zero(t, MatchEndpoint("/health", "GET", configs).Limit)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_DEFAULT_LIMIT", "50")
	t.Setenv("RATE_LIMIT_WHITELIST", "10.0.0.1, 10.0.0.2")
	t.Setenv("RATE_LIMIT_GENERATE_PER_HOUR", "7")
	t.Setenv("RATE_LIMIT_DEFAULT_WINDOW", "soon")

	cfg := LoadConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 50, cfg.DefaultLimit)
	assert.Equal(t, time.Minute, cfg.DefaultWindow, "malformed values keep the default")
	assert.True(t, cfg.Whitelist["10.0.0.2"])
	assert.Equal(t, 7, MatchEndpoint("/generate/9", "POST", cfg.EndpointConfigs).Limit)

	t.Setenv("RATE_LIMIT_ENABLED", "false")
	assert.False(t, LoadConfig().Enabled)
}
