package devserver

import (
	"net/http"
	"sync"
	"time"

	ttlworker "github.com/FloatTech/ttl"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter throttles each client IP with its own token bucket.
//
// Idle buckets expire from limiters. A limit <= 0 disables throttling.
func RateLimiter(limiters *ttlworker.Cache[string, *rate.Limiter], limit float64, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}

		key := c.ClientIP()
		mu.Lock()
		limiter := limiters.Get(key)
		if limiter == nil {
			limiter = rate.NewLimiter(rate.Limit(limit), burst)
		}
		limiters.Set(key, limiter)
		mu.Unlock()

		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": "too many requests"})
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"client", c.ClientIP(),
			"duration", time.Since(start),
		)
	}
}
