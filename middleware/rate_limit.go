package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/tiltlabs/tilt-backend/utils"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var (
	clients   = map[string]*clientLimiter{}
	clientsMu sync.Mutex
)

func init() {
	go func() {
		for {
			time.Sleep(time.Minute)
			clientsMu.Lock()
			for ip, c := range clients {
				if time.Since(c.lastSeen) > 3*time.Minute {
					delete(clients, ip)
				}
			}
			clientsMu.Unlock()
		}
	}()
}

func getLimiter(ip string, perMinute int) *rate.Limiter {
	clientsMu.Lock()
	defer clientsMu.Unlock()

	c, ok := clients[ip]
	if !ok {
		c = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
		}
		clients[ip] = c
	}
	c.lastSeen = time.Now()
	return c.limiter
}

// RateLimit applies a per-IP token bucket allowing perMinute requests,
// with a burst of the same size.
func RateLimit(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		perMinute = 120
	}
	return func(ctx *gin.Context) {
		if !getLimiter(ctx.ClientIP(), perMinute).Allow() {
			utils.Error(ctx, http.StatusTooManyRequests, 42901, "too many requests")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
