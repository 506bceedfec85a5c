package middleware

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	cmap "github.com/orcaman/concurrent-map"
	"github.com/welldanyogia/webrana-mailfunnel/internal/logger"
	"golang.org/x/time/rate"
)

// Rate limiter defaults
const (
	DefaultRequestsPerSecond = 10.0
	DefaultBurst             = 20

	// limiters idle for longer than this are dropped by the sweeper
	limiterIdleTTL = 10 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// IPRateLimiter manages rate limiters per IP address
type IPRateLimiter struct {
	visitors cmap.ConcurrentMap
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

// NewIPRateLimiter creates a new IP-based rate limiter
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: cmap.New(),
		rate:     r,
		burst:    b,
		now:      time.Now,
	}
}

// GetLimiter returns the rate limiter for the given IP
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	v := i.visitors.Upsert(ip, nil, func(exists bool, current, _ interface{}) interface{} {
		if exists {
			return current
		}
		return &visitor{limiter: rate.NewLimiter(i.rate, i.burst)}
	}).(*visitor)

	v.lastSeen.Store(i.now().UnixNano())
	return v.limiter
}

// Len returns the number of tracked IPs
func (i *IPRateLimiter) Len() int {
	return i.visitors.Count()
}

// CleanupOldEntries removes limiters not used within maxIdle
func (i *IPRateLimiter) CleanupOldEntries(maxIdle time.Duration) {
	cutoff := i.now().Add(-maxIdle).UnixNano()

	var stale []string
	i.visitors.IterCb(func(ip string, v interface{}) {
		if v.(*visitor).lastSeen.Load() < cutoff {
			stale = append(stale, ip)
		}
	})
	for _, ip := range stale {
		i.visitors.Remove(ip)
	}
}

// StartSweeper drops idle limiters periodically until ctx is done
func (i *IPRateLimiter) StartSweeper(ctx context.Context, every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				i.CleanupOldEntries(limiterIdleTTL)
			}
		}
	}()
}

// RateLimiter returns per-IP rate limiting middleware backed by limiter
func RateLimiter(limiter *IPRateLimiter, security *logger.SecurityLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			if !limiter.GetLimiter(ip).Allow() {
				if security != nil {
					security.RateLimitExceeded(ip, c.Path())
				}

				c.Response().Header().Set("Retry-After", "60")
				return echo.NewHTTPError(429, map[string]string{
					"error":       "rate limit exceeded",
					"code":        "RATE_LIMITED",
					"retry_after": "60",
				})
			}

			return next(c)
		}
	}
}

// RateLimiterWithConfig builds a limiter for the given rate and burst
func RateLimiterWithConfig(requestsPerSecond float64, burst int, security *logger.SecurityLogger) echo.MiddlewareFunc {
	if requestsPerSecond <= 0 {
		requestsPerSecond = DefaultRequestsPerSecond
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return RateLimiter(NewIPRateLimiter(rate.Limit(requestsPerSecond), burst), security)
}
