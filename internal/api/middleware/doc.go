// Package middleware holds the gin middleware in front of the control API.
//
// RequestID tags every request with a "req_" ULID (or keeps the caller's
// X-Request-ID) and Logger writes one zap entry per request, at warn for
// 5xx. CORS only allows the methods the API actually serves.
//
// RateLimit keeps one token bucket per client IP and evicts buckets idle
// longer than IdleTTL; GlobalRateLimit shares a single bucket. Both answer
// 429 with a Retry-After header.
//
//	router.Use(middleware.RequestID(), middleware.Logger(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
