// Package http provides HTTP server implementation and request handlers.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cripta/envelopesvc/internal/tenant"
)

// CustomLoggerMiddleware logs each request through slog instead of Gin's
// default writer, including the request id assigned by requestid.New.
func CustomLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote_addr", c.ClientIP()),
			slog.String("request_id", requestid.Get(c)),
		)
	}
}

// rateLimiterEntry holds a rate limiter and last access time for cleanup.
type rateLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
	mu         sync.Mutex
}

// rateLimiterStore holds per-tenant rate limiters with automatic cleanup.
type rateLimiterStore struct {
	limiters sync.Map // map[tenant.ID]*rateLimiterEntry
	rps      float64
	burst    int
}

// RateLimitMiddleware enforces per-tenant rate limiting, keyed by the
// x-tenant-id header rather than a bearer token: the envelope control
// surface has no authenticated client identity, only an optional custodian
// credential pair that is meaningful only for Entity identifiers.
func RateLimitMiddleware(rps float64, burst int, logger *slog.Logger) gin.HandlerFunc {
	store := &rateLimiterStore{rps: rps, burst: burst}
	go store.cleanupStale(5 * time.Minute)

	return func(c *gin.Context) {
		tenantID := tenant.ID(c.GetHeader("x-tenant-id"))
		limiter := store.getLimiter(tenantID)

		if !limiter.Allow() {
			reservation := limiter.Reserve()
			retryAfter := int(reservation.Delay().Seconds())
			reservation.Cancel()

			logger.Debug("rate limit exceeded",
				slog.String("tenant_id", string(tenantID)),
				slog.Int("retry_after", retryAfter))

			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "too many requests, retry after the specified delay",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (s *rateLimiterStore) getLimiter(id tenant.ID) *rate.Limiter {
	if val, ok := s.limiters.Load(id); ok {
		entry := val.(*rateLimiterEntry)
		entry.mu.Lock()
		entry.lastAccess = time.Now()
		entry.mu.Unlock()
		return entry.limiter
	}

	limiter := rate.NewLimiter(rate.Limit(s.rps), s.burst)
	entry := &rateLimiterEntry{limiter: limiter, lastAccess: time.Now()}
	s.limiters.Store(id, entry)
	return limiter
}

// cleanupStale removes rate limiters not accessed in the last hour. Runs
// until the process exits; store is intended to live for the server's
// lifetime.
func (s *rateLimiterStore) cleanupStale(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		threshold := time.Now().Add(-1 * time.Hour)
		s.limiters.Range(func(key, value interface{}) bool {
			entry := value.(*rateLimiterEntry)
			entry.mu.Lock()
			shouldDelete := entry.lastAccess.Before(threshold)
			entry.mu.Unlock()
			if shouldDelete {
				s.limiters.Delete(key)
			}
			return true
		})
	}
}
