// Package middleware holds HTTP middleware shared by the API server.
//
// RateLimit throttles authenticated callers by user ID and anonymous callers
// by client IP. Two limiters implement it:
//
//   - LocalLimiter: an in-process token bucket, for single instances
//   - RedisLimiter: a fixed window counter shared by every instance
//
// Limiter errors fail open: the request is served and the error logged.
//
//	limiter := middleware.NewRedisLimiter(client, middleware.PerUserRateLimitConfig(), "entitle:ratelimit")
//	router.Use(middleware.RateLimit(limiter, logger))
package middleware
