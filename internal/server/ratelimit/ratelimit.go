// Package ratelimit provides per-client, per-endpoint rate limiting on token buckets.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucket is the token bucket of one client on one endpoint.
type bucket struct {
	limiter  *rate.Limiter
	capacity int
}

func newBucket(capacity int, refillPerSecond float64) *bucket {
	return &bucket{
		limiter:  rate.NewLimiter(rate.Limit(refillPerSecond), capacity),
		capacity: capacity,
	}
}

// allow consumes a token if one is available.
func (b *bucket) allow(now time.Time) bool {
	return b.limiter.AllowN(now, 1)
}

// status returns the remaining tokens, when the bucket is full again and how long
// until the next token.
func (b *bucket) status(now time.Time) (remaining int, resetTime time.Time, nextToken time.Duration) {
	tokens := b.limiter.TokensAt(now)
	if tokens < 0 {
		tokens = 0
	}
	perSecond := float64(b.limiter.Limit())
	remaining = int(tokens)

	resetTime = now
	if missing := float64(b.capacity) - tokens; missing > 0 && perSecond > 0 {
		resetTime = now.Add(time.Duration(missing / perSecond * float64(time.Second)))
	}
	if tokens < 1 && perSecond > 0 {
		nextToken = time.Duration((1 - tokens) / perSecond * float64(time.Second))
	}
	return remaining, resetTime, nextToken
}

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// Limiter manages rate limiting for multiple clients.
type Limiter struct {
	config *Config

	mu         sync.Mutex
	buckets    map[string]*bucket
	lastAccess map[string]time.Time

	cleanupTicker *time.Ticker
	cleanupStop   chan struct{}
	stopOnce      sync.Once
}

// NewLimiter creates a new rate limiter with the given configuration.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = &Config{
			Enabled:         true,
			DefaultLimit:    1000,
			DefaultWindow:   time.Minute,
			CleanupInterval: 5 * time.Minute,
		}
	}

	l := &Limiter{
		config:     config,
		buckets:    make(map[string]*bucket),
		lastAccess: make(map[string]time.Time),
	}

	if config.Enabled && config.CleanupInterval > 0 {
		l.cleanupTicker = time.NewTicker(config.CleanupInterval)
		l.cleanupStop = make(chan struct{})
		go l.cleanup()
	}
	return l
}

// Allow checks if a request from the given client is allowed for the specified endpoint.
func (l *Limiter) Allow(clientID string, endpoint string, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return true, Info{Allowed: true}
	}
	if l.config.Blacklist[clientID] {
		return false, Info{Allowed: false}
	}

	ec := MatchEndpoint(endpoint, method, l.config.EndpointConfigs)
	if ec == nil {
		ec = &EndpointConfig{
			Path:   endpoint,
			Limit:  l.config.DefaultLimit,
			Window: l.config.DefaultWindow,
			Burst:  l.config.DefaultLimit,
		}
	}
	// unlimited endpoint (health check)
	if ec.Limit <= 0 {
		return true, Info{Allowed: true}
	}

	// matched prefixes share one bucket per client
	key := clientID + ":" + ec.Path + ":" + method
	now := time.Now()
	b := l.getBucket(key, ec, now)

	allowed := b.allow(now)
	remaining, resetTime, nextToken := b.status(now)

	info := Info{
		Allowed:   allowed,
		Limit:     ec.Limit,
		Remaining: remaining,
		ResetTime: resetTime,
	}
	if !allowed {
		info.RetryAfter = nextToken
	}
	return allowed, info
}

func (l *Limiter) getBucket(key string, ec *EndpointConfig, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastAccess[key] = now
	if b, ok := l.buckets[key]; ok {
		return b
	}

	capacity := ec.Burst
	if capacity <= 0 {
		capacity = ec.Limit
	}
	window := ec.Window
	if window <= 0 {
		window = time.Minute
	}
	b := newBucket(capacity, float64(ec.Limit)/window.Seconds())
	l.buckets[key] = b
	return b
}

func (l *Limiter) cleanup() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.cleanupBuckets(time.Now().Add(-1 * time.Hour))
		case <-l.cleanupStop:
			return
		}
	}
}

// cleanupBuckets removes buckets not used since cutoff.
func (l *Limiter) cleanupBuckets(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, last := range l.lastAccess {
		if last.Before(cutoff) {
			delete(l.buckets, key)
			delete(l.lastAccess, key)
		}
	}
}

// Stop stops the cleanup goroutine.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		if l.cleanupTicker != nil {
			l.cleanupTicker.Stop()
		}
		if l.cleanupStop != nil {
			close(l.cleanupStop)
		}
	})
}
