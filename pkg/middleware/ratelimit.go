package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/platinummonkey/entitle/pkg/contextkeys"
	"github.com/platinummonkey/entitle/pkg/httputil"
	"github.com/platinummonkey/entitle/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate (token bucket only)
	BurstSize int
}

// PerUserRateLimitConfig returns per-user rate limit settings
func PerUserRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerWindow: 1200,
		WindowDuration:    time.Minute,
		BurstSize:         100,
	}
}

// Decision is the outcome of one Allow call
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Duration // until the window or bucket is full again
}

// Limiter decides whether key may make another request
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// LocalLimiter is an in-memory token bucket per key
type LocalLimiter struct {
	config RateLimitConfig
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
}

// NewLocalLimiter creates a token bucket limiter
func NewLocalLimiter(config RateLimitConfig) *LocalLimiter {
	return &LocalLimiter{
		config:  config,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (l *LocalLimiter) capacity() float64 {
	return float64(l.config.RequestsPerWindow + l.config.BurstSize)
}

func (l *LocalLimiter) ratePerSecond() float64 {
	return float64(l.config.RequestsPerWindow) / l.config.WindowDuration.Seconds()
}

// Allow implements Limiter
func (l *LocalLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity(), lastUpdate: now}
		l.buckets[key] = b
	}

	// Refill for elapsed time
	b.tokens = math.Min(l.capacity(), b.tokens+now.Sub(b.lastUpdate).Seconds()*l.ratePerSecond())
	b.lastUpdate = now

	d := Decision{Limit: l.config.RequestsPerWindow}
	if b.tokens >= 1 {
		b.tokens--
		d.Allowed = true
	}
	d.Remaining = int(b.tokens)
	d.Reset = time.Duration((l.capacity() - b.tokens) / l.ratePerSecond() * float64(time.Second))
	return d, nil
}

// Cleanup drops buckets idle for two windows; they would be full anyway
func (l *LocalLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, b := range l.buckets {
		if now.Sub(b.lastUpdate) > l.config.WindowDuration*2 {
			delete(l.buckets, key)
		}
	}
}

// StartCleanup runs Cleanup once per window until ctx is done
func (l *LocalLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(l.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RateLimit wraps a handler with limiter. It must run after authentication so
// the user ID is in the context.
func RateLimit(limiter Limiter, logger *observability.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + httputil.ClientIP(r)
			if userID := contextkeys.GetUserID(r.Context()); userID != "" {
				key = "user:" + userID
			}

			d, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.WithField("key", key).WithError(err).Warn("Rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				retryAfter := int(math.Ceil(d.Reset.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				httputil.WriteErrorMessage(w, http.StatusTooManyRequests,
					fmt.Sprintf("rate limit exceeded, retry after %ds", retryAfter))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
