package middleware

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/auth"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const msgRateLimitExceeded = "rate limit exceeded"

// RateLimiter implements token bucket rate limiting per identity
type RateLimiter struct {
	limiters sync.Map // key -> *rate.Limiter
	rate     rate.Limit
	burst    int
	keyFunc  func(c echo.Context) string
}

// NewRateLimiter creates a rate limiter keyed by operator, falling back to
// the client IP before authentication has run.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		rate:    rate.Limit(requestsPerSecond),
		burst:   burst,
		keyFunc: operatorOrIP,
	}
}

// getLimiter gets or creates a rate limiter for the given key
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	limiter, _ := rl.limiters.LoadOrStore(key, rate.NewLimiter(rl.rate, rl.burst))
	return limiter.(*rate.Limiter)
}

// Allow checks if a request should be allowed for the given key
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// Middleware returns an Echo middleware function for rate limiting
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			limiter := rl.getLimiter(rl.keyFunc(c))

			if !limiter.Allow() {
				c.Response().Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.burst))
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				c.Response().Header().Set("Retry-After", "1")

				return c.JSON(http.StatusTooManyRequests, map[string]any{
					"success": false,
					"message": msgRateLimitExceeded,
					"error":   http.StatusText(http.StatusTooManyRequests),
				})
			}

			tokens := int(limiter.Tokens())
			c.Response().Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.burst))
			c.Response().Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", tokens))

			return next(c)
		}
	}
}

func operatorOrIP(c echo.Context) string {
	if op, err := auth.GetOperator(c); err == nil {
		return "operator:" + op.UserID
	}
	return "ip:" + c.RealIP()
}

// GlobalRateLimiter is a lenient rate limiter for general API usage
type GlobalRateLimiter struct {
	*RateLimiter
}

// NewGlobalRateLimiter creates a global rate limiter
func NewGlobalRateLimiter(requestsPerSecond float64, burst int) *GlobalRateLimiter {
	return &GlobalRateLimiter{
		RateLimiter: NewRateLimiter(requestsPerSecond, burst),
	}
}

// SyncRateLimiter throttles sync starts per operator. A sync issues many API
// calls, so one start every few seconds is plenty.
type SyncRateLimiter struct {
	*RateLimiter
}

func NewSyncRateLimiter() *SyncRateLimiter {
	return &SyncRateLimiter{
		RateLimiter: NewRateLimiter(0.2, 3), // one every 5s, burst of 3
	}
}
