package middleware

import (
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/saas-onboarding/backend/pkg/response"
)

const limiterCleanupInterval = 5 * time.Minute

// RateLimitConfig allows Requests per Window per client IP.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type ipLimiter struct {
	limiters    sync.Map // map[string]*rate.Limiter
	rate        rate.Limit
	burst       int
	mu          sync.Mutex
	lastCleanup time.Time
}

func (l *ipLimiter) get(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}
	v, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.rate, l.burst))
	l.maybeCleanup()
	return v.(*rate.Limiter)
}

// maybeCleanup drops limiters whose bucket is full again, i.e. idle clients.
func (l *ipLimiter) maybeCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.lastCleanup) < limiterCleanupInterval {
		return
	}
	l.lastCleanup = time.Now()
	l.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(l.burst) {
			l.limiters.Delete(key)
		}
		return true
	})
}

// RateLimit throttles requests per client IP. A zero config disables it.
func RateLimit(cfg RateLimitConfig, logger *zap.Logger) gin.HandlerFunc {
	if cfg.Requests <= 0 || cfg.Window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &ipLimiter{
		rate:        rate.Limit(float64(cfg.Requests) / cfg.Window.Seconds()),
		burst:       cfg.Requests,
		lastCleanup: time.Now(),
	}
	return func(c *gin.Context) {
		limiter := l.get(c.ClientIP())
		if limiter.Allow() {
			c.Next()
			return
		}
		reservation := limiter.Reserve()
		delay := reservation.Delay()
		reservation.Cancel()
		retryAfter := max(int(delay.Seconds()), 1)

		c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
		logger.Warn("rate limit exceeded",
			zap.String("client_ip", c.ClientIP()),
			zap.String("path", c.Request.URL.Path),
			zap.Int("retry_after", retryAfter),
		)
		response.TooManyRequests(c, "Too many requests")
		c.Abort()
	}
}
