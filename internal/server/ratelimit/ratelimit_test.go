package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucket_Status(t *testing.T) {
	b := newBucket(10, 10*time.Second, 10) // 1 token per second
	now := time.Now()

	remaining, reset := b.status(now)
	assert.Equal(t, 10, remaining)
	assert.Equal(t, now, reset)

	for i := 0; i < 4; i++ {
		require.True(t, b.limiter.AllowN(now, 1))
	}
	remaining, reset = b.status(now)
	assert.Equal(t, 6, remaining)
	assert.InDelta(t, 4*time.Second, reset.Sub(now), float64(50*time.Millisecond))
}

func TestBucket_RetryAfter(t *testing.T) {
	b := newBucket(60, time.Minute, 1)
	now := time.Now()

	assert.Zero(t, b.retryAfter(now))
	require.True(t, b.limiter.AllowN(now, 1))
	assert.InDelta(t, time.Second, b.retryAfter(now), float64(50*time.Millisecond))

	// refilled after a second
	assert.True(t, b.limiter.AllowN(now.Add(time.Second), 1))
}

func TestLimiter_Allow(t *testing.T) {
	limiter := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  3,
		DefaultWindow: time.Minute,
	})
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/applications", "GET")
		assert.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 3, info.Limit)
		assert.Equal(t, 2-i, info.Remaining)
	}

	allowed, info := limiter.Allow("127.0.0.1", "/applications", "GET")
	assert.False(t, allowed)
	assert.Positive(t, info.RetryAfter)
	assert.True(t, info.ResetTime.After(time.Now()))

	// other clients have their own budget
	allowed, _ = limiter.Allow("10.0.0.2", "/applications", "GET")
	assert.True(t, allowed)
}

func TestLimiter_WhitelistAndBlacklist(t *testing.T) {
	limiter := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Whitelist:     map[string]bool{"10.0.0.1": true},
		Blacklist:     map[string]bool{"10.0.0.9": true},
	})
	defer limiter.Stop()

	for i := 0; i < 5; i++ {
		allowed, info := limiter.Allow("10.0.0.1", "/x", "GET")
		assert.True(t, allowed)
		assert.Zero(t, info.Limit)
	}

	allowed, _ := limiter.Allow("10.0.0.9", "/x", "GET")
	assert.False(t, allowed)
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := NewLimiter(NewConfig(0))
	defer limiter.Stop()

	for i := 0; i < 100; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/applications", "POST")
		require.True(t, allowed)
		assert.Zero(t, info.Limit)
	}
}

func TestLimiter_EndpointSpecific(t *testing.T) {
	limiter := NewLimiter(NewConfig(100))
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/applications", "POST")
		require.True(t, allowed, "burst request %d", i+1)
		assert.Equal(t, 20, info.Limit)
	}
	allowed, _ := limiter.Allow("127.0.0.1", "/applications", "POST")
	assert.False(t, allowed, "burst exhausted")

	// the stream endpoint has its own bucket
	allowed, _ = limiter.Allow("127.0.0.1", "/applications/stream", "POST")
	assert.True(t, allowed)

	// reads use the default budget
	allowed, info := limiter.Allow("127.0.0.1", "/applications", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 100, info.Limit)
}

func TestLimiter_UnlimitedEndpoints(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute})
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		allowed, _ := limiter.Allow("127.0.0.1", "/health", "GET")
		require.True(t, allowed)
		allowed, _ = limiter.Allow("127.0.0.1", "/metrics", "GET")
		require.True(t, allowed)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Hour,
	})
	defer limiter.Stop()

	var wg sync.WaitGroup
	var allowedCount atomic.Int64
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _ := limiter.Allow("127.0.0.1", "/test", "GET"); allowed {
				allowedCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 100, allowedCount.Load())
}

func TestLimiter_CleanupBuckets(t *testing.T) {
	limiter := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
		IdleTTL:       time.Minute,
	})
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		limiter.Allow(fmt.Sprintf("127.0.0.%d", i+1), "/test", "GET")
	}
	require.Equal(t, 10, limiter.size())

	limiter.cleanupBuckets(time.Now())
	assert.Equal(t, 10, limiter.size(), "recently used buckets survive")

	limiter.cleanupBuckets(time.Now().Add(2 * time.Minute))
	assert.Zero(t, limiter.size())
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Second, CleanupInterval: time.Millisecond})
	limiter.Stop()
	limiter.Stop()
}

func TestNewLimiter_NilConfig(t *testing.T) {
	limiter := NewLimiter(nil)
	defer limiter.Stop()

	allowed, info := limiter.Allow("127.0.0.1", "/test", "GET")
	assert.True(t, allowed)
	assert.Equal(t, DefaultPerMinute, info.Limit)
}

func TestRuleFor(t *testing.T) {
	cfg := NewConfig(5)
	cfg.Rules = []Rule{
		{Method: "POST", Path: "/applications", Limit: 1, Window: time.Minute},
		{Method: "GET", Path: "/applications/", Limit: 2, Window: time.Minute},
		{Method: "GET", Path: "/applications/archive/", Limit: 3, Window: time.Minute},
	}

	tests := []struct {
		method, path string
		wantLimit    int
		wantPath     string
		wantLimited  bool
	}{
		{"POST", "/applications", 1, "/applications", true},
		{"GET", "/applications/123", 2, "/applications/", true},
		{"GET", "/applications/archive/9", 3, "/applications/archive/", true},
		{"GET", "/applications", 5, "*", true},
		{"GET", "/health", 0, "", false},
		{"GET", "/metrics", 0, "", false},
		{"POST", "/health", 5, "*", true},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rule, limited := cfg.ruleFor(tt.method, tt.path)
			assert.Equal(t, tt.wantLimited, limited)
			assert.Equal(t, tt.wantLimit, rule.Limit)
			assert.Equal(t, tt.wantPath, rule.Path)
		})
	}
}
