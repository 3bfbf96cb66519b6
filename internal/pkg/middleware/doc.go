// Package middleware provides HTTP middleware components for the rag-bench server.
//
// Available middleware:
//   - RateLimiter: Per-client rate limiting using token bucket algorithm
//   - APIKeyAuth: Shared-secret authentication via the X-API-Key header
//
// Usage:
//
//	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
//	handler = rl.Middleware(handler)
package middleware
