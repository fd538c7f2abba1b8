package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// limiterIdle is how long a client's limiter is kept after its last request.
const limiterIdle = 10 * time.Minute

// ClientLimiter hands out one token bucket per client IP. Buckets of idle
// clients expire.
type ClientLimiter struct {
	limiters *cache.Cache
	r        rate.Limit
	b        int
}

// NewClientLimiter creates a limiter allowing r requests per second with burst b.
func NewClientLimiter(r rate.Limit, b int) *ClientLimiter {
	return &ClientLimiter{
		limiters: cache.New(limiterIdle, limiterIdle),
		r:        r,
		b:        b,
	}
}

// Get returns the limiter for ip, creating it on first use.
func (l *ClientLimiter) Get(ip string) *rate.Limiter {
	if v, ok := l.limiters.Get(ip); ok {
		l.limiters.SetDefault(ip, v)
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(l.r, l.b)
	if err := l.limiters.Add(ip, lim, cache.DefaultExpiration); err != nil {
		// Lost a race with another request from the same client.
		if v, ok := l.limiters.Get(ip); ok {
			return v.(*rate.Limiter)
		}
	}
	return lim
}

// RateLimit rejects requests over the per-client rate with 429.
func RateLimit(l *ClientLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limited"})
			return
		}
		c.Next()
	}
}
