package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/findfirst/internal/observability"
)

// sweepInterval is how often expired entries are dropped from a limiter.
const sweepInterval = time.Minute

// RateLimitConfig configures RateLimitWithConfig.
type RateLimitConfig struct {
	// Max is the number of requests allowed per client IP within Window.
	Max    int
	Window time.Duration

	// Skipper selects requests that bypass the limiter entirely and are not
	// counted. Nil counts every request.
	Skipper func(c echo.Context) bool
}

// rateLimitEntry tracks request counts for a single IP within a time window.
type rateLimitEntry struct {
	count       int
	windowStart time.Time
}

// rateLimiter is a fixed-window counter keyed by client IP. Expired entries
// are swept while handling requests, so a limiter owns no goroutine and is
// garbage collected with the route that holds it.
type rateLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	entries   map[string]*rateLimitEntry
	lastSweep time.Time
}

func newRateLimiter(maxRequests int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		max:     maxRequests,
		window:  window,
		now:     time.Now,
		entries: make(map[string]*rateLimitEntry),
	}
}

// allow counts one request for ip. When the limit is exceeded it returns
// false and the time until the window resets.
func (l *rateLimiter) allow(ip string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	entry, exists := l.entries[ip]
	if !exists || now.Sub(entry.windowStart) > l.window {
		l.entries[ip] = &rateLimitEntry{count: 1, windowStart: now}
		return true, 0
	}

	entry.count++
	if entry.count > l.max {
		return false, l.window - now.Sub(entry.windowStart)
	}
	return true, 0
}

// sweep drops entries whose window ended long ago. Caller holds mu.
func (l *rateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < sweepInterval {
		return
	}
	l.lastSweep = now
	for ip, entry := range l.entries {
		if now.Sub(entry.windowStart) > l.window*2 {
			delete(l.entries, ip)
		}
	}
}

// RateLimit returns middleware that limits requests per IP to maxRequests
// within a fixed window. Returns 429 when exceeded. Used on the signin and
// signup endpoints against credential stuffing.
func RateLimit(maxRequests int, window time.Duration) echo.MiddlewareFunc {
	return RateLimitWithConfig(RateLimitConfig{Max: maxRequests, Window: window})
}

// RateLimitWithConfig is RateLimit with a skipper, for limiting only some
// requests on a route group.
func RateLimitWithConfig(cfg RateLimitConfig) echo.MiddlewareFunc {
	limiter := newRateLimiter(cfg.Max, cfg.Window)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			ok, retryAfter := limiter.allow(c.RealIP())
			if ok {
				return next(c)
			}

			observability.RateLimitRejectedTotal.WithLabelValues(c.Path()).Inc()
			c.Response().Header().Set("Retry-After",
				strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"error":   http.StatusText(http.StatusTooManyRequests),
				"message": "Rate limit exceeded. Please try again later.",
			})
		}
	}
}
