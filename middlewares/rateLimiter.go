package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/leads_backend/config"
	"github.com/sirupsen/logrus"
)

type RateLimiter struct {
	limit  int64
	window time.Duration
}

func NewRateLimiter(limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{limit: limit, window: window}
}

// Middleware counts requests per client IP in a fixed redis window. Without redis
// every request passes.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("RateLimit:%s", c.ClientIP())
		count, err := config.IncrRedisCounter(c.Request.Context(), key, rl.window)
		if err != nil {
			config.GetLogger().WithFields(logrus.Fields{
				"field": "RateLimiter",
				"key":   key,
			}).Warn("rate limit counter unavailable: " + err.Error())
			c.Next()
			return
		}
		if count > rl.limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
			})
			return
		}
		c.Next()
	}
}
