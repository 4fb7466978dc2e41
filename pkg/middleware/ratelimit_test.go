package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/entitle/pkg/contextkeys"
)

func testConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerWindow: 10, WindowDuration: 10 * time.Second, BurstSize: 2}
}

func TestLocalLimiter_AllowAndRefill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := NewLocalLimiter(testConfig())
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	allowed := 0
	for i := 0; i < 20; i++ {
		d, err := limiter.Allow(ctx, "user:a")
		require.NoError(t, err)
		if d.Allowed {
			allowed++
		}
	}
	assert.Equal(t, 12, allowed, "rate plus burst")

	d, _ := limiter.Allow(ctx, "user:a")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 12*time.Second, d.Reset)

	// One token per second comes back.
	now = now.Add(time.Second)
	d, _ = limiter.Allow(ctx, "user:a")
	assert.True(t, d.Allowed)

	// Keys are independent.
	d, _ = limiter.Allow(ctx, "user:b")
	assert.True(t, d.Allowed)
	assert.Equal(t, 11, d.Remaining)
}

func TestLocalLimiter_Cleanup(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := NewLocalLimiter(testConfig())
	limiter.now = func() time.Time { return now }

	_, _ = limiter.Allow(context.Background(), "old")
	now = now.Add(15 * time.Second)
	_, _ = limiter.Allow(context.Background(), "fresh")
	now = now.Add(10 * time.Second)

	limiter.Cleanup()
	assert.NotContains(t, limiter.buckets, "old")
	assert.Contains(t, limiter.buckets, "fresh")
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := testConfig()
	cfg.RequestsPerWindow = 3
	limiter := NewRedisLimiter(client, cfg, "")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, "user:a")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}
	d, err := limiter.Allow(ctx, "user:a")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Greater(t, d.Reset, time.Duration(0))
	assert.LessOrEqual(t, d.Reset, cfg.WindowDuration)
	assert.True(t, mr.Exists("ratelimit:user:a"))

	mr.FastForward(cfg.WindowDuration + time.Second)
	d, err = limiter.Allow(ctx, "user:a")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	require.NoError(t, limiter.Reset(ctx, "user:a"))
	assert.False(t, mr.Exists("ratelimit:user:a"))
}

func TestRedisLimiter_ErrorFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	d, err := NewRedisLimiter(client, testConfig(), "rl").Allow(context.Background(), "user:a")
	assert.Error(t, err)
	assert.True(t, d.Allowed)
}

type stubLimiter struct {
	keys     []string
	decision Decision
	err      error
}

func (s *stubLimiter) Allow(_ context.Context, key string) (Decision, error) {
	s.keys = append(s.keys, key)
	return s.decision, s.err
}

func serve(limiter Limiter, r *http.Request) *httptest.ResponseRecorder {
	h := RateLimit(limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestRateLimit_Middleware(t *testing.T) {
	t.Run("allowed user", func(t *testing.T) {
		stub := &stubLimiter{decision: Decision{Allowed: true, Limit: 10, Remaining: 9}}
		req := httptest.NewRequest(http.MethodGet, "/orgs/o1/permissions", nil)
		req = req.WithContext(contextkeys.WithUserID(req.Context(), "alice"))

		rec := serve(stub, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, []string{"user:alice"}, stub.keys)
		assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("anonymous keyed by ip", func(t *testing.T) {
		stub := &stubLimiter{decision: Decision{Allowed: true}}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "198.51.100.4:5123"

		serve(stub, req)
		assert.Equal(t, []string{"ip:198.51.100.4"}, stub.keys)
	})

	t.Run("limited", func(t *testing.T) {
		stub := &stubLimiter{decision: Decision{Limit: 10, Reset: 1500 * time.Millisecond}}
		rec := serve(stub, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("Retry-After"))
		assert.Contains(t, rec.Body.String(), "rate limit exceeded")
	})

	t.Run("limiter error fails open", func(t *testing.T) {
		stub := &stubLimiter{err: errors.New("redis down")}
		rec := serve(stub, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
