// internal/middleware/rate_limit_middleware.go
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"healthkit-link/internal/config"
	"healthkit-link/internal/utils"
)

const clientIdleTTL = 3 * time.Minute

type rateClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware applies a token bucket per client IP. A zero
// RequestsPerMin disables limiting.
func RateLimitMiddleware(cfg config.RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerMin <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	var (
		mutex     sync.Mutex
		clients   = make(map[string]*rateClient)
		lastSweep = time.Now()
	)

	return func(c *gin.Context) {
		now := time.Now()
		ip := c.ClientIP()

		mutex.Lock()
		if now.Sub(lastSweep) > time.Minute {
			for key, client := range clients {
				if now.Sub(client.lastSeen) > clientIdleTTL {
					delete(clients, key)
				}
			}
			lastSweep = now
		}

		client, exists := clients[ip]
		if !exists {
			client = &rateClient{
				limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerMin)/60.0, cfg.Burst),
			}
			clients[ip] = client
		}
		client.lastSeen = now
		allowed := client.limiter.Allow()
		mutex.Unlock()

		if !allowed {
			utils.ErrorResponse(c, http.StatusTooManyRequests, "Rate limit exceeded", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
