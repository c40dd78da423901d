package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/steadyfetch/steadyfetch/config"
	"github.com/steadyfetch/steadyfetch/models"
)

// identityLimiters hands out one token bucket per caller identity and evicts
// buckets idle for an hour so the map cannot grow without bound.
type identityLimiters struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	buckets map[string]*identityBucket
}

type identityBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIdentityLimiters(cfg config.RateLimitConfig) *identityLimiters {
	l := &identityLimiters{
		rps:     rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.Burst,
		buckets: make(map[string]*identityBucket),
	}
	go l.evictLoop()
	return l
}

func (l *identityLimiters) allow(identity string) bool {
	l.mu.Lock()
	b, ok := l.buckets[identity]
	if !ok {
		b = &identityBucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[identity] = b
	}
	b.lastSeen = time.Now()
	l.mu.Unlock()
	return b.limiter.Allow()
}

func (l *identityLimiters) evictLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-time.Hour)
		l.mu.Lock()
		for id, b := range l.buckets {
			if b.lastSeen.Before(cutoff) {
				delete(l.buckets, id)
			}
		}
		l.mu.Unlock()
	}
}

// RateLimit returns per-identity token-bucket rate limiting middleware. The
// identity is the authenticated API key when present, the client IP
// otherwise.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	limiters := newIdentityLimiters(cfg)

	return func(c *gin.Context) {
		identity := c.ClientIP()
		if key, ok := c.Get("api_key"); ok {
			identity = key.(string)
		}

		if !limiters.allow(identity) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ScrapeResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeRateLimited,
					Message: "rate limit exceeded, please slow down",
				},
			})
			return
		}
		c.Next()
	}
}
