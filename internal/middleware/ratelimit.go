package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"vidtube/internal/pkg/response"
)

const limiterIdleSweep = 5 * time.Minute

// RateLimitConfig allows PerMinute requests per client with Burst headroom.
type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

type ipLimiter struct {
	limiters  sync.Map // client ip -> *rate.Limiter
	limit     rate.Limit
	burst     int
	mu        sync.Mutex
	lastSweep time.Time
}

func (l *ipLimiter) get(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}
	v, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.limit, l.burst))
	l.maybeSweep()
	return v.(*rate.Limiter)
}

// maybeSweep drops limiters whose bucket has refilled, i.e. idle clients.
func (l *ipLimiter) maybeSweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.lastSweep) < limiterIdleSweep {
		return
	}
	l.lastSweep = time.Now()
	l.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(l.burst) {
			l.limiters.Delete(key)
		}
		return true
	})
}

// RateLimitByIP throttles per client IP, answering 429 with Retry-After.
func RateLimitByIP(cfg RateLimitConfig, log zerolog.Logger) gin.HandlerFunc {
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.PerMinute
	}
	l := &ipLimiter{
		limit:     rate.Limit(float64(cfg.PerMinute) / time.Minute.Seconds()),
		burst:     cfg.Burst,
		lastSweep: time.Now(),
	}

	return func(c *gin.Context) {
		key := c.ClientIP()
		limiter := l.get(key)
		if limiter.Allow() {
			c.Next()
			return
		}

		r := limiter.Reserve()
		delay := r.Delay()
		r.Cancel()
		retryAfter := max(int(delay.Seconds()), 1)

		c.Header("Retry-After", strconv.Itoa(retryAfter))
		log.Warn().
			Str("client_ip", key).
			Str("path", c.Request.URL.Path).
			Int("retry_after", retryAfter).
			Msg("rate limit exceeded")
		response.Abort(c, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, try again later")
	}
}
