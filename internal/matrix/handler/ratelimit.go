package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiterPool keeps one token bucket per client IP and expires entries idle
// for more than 10 minutes.
type ipLimiterPool struct {
	mu    sync.Mutex
	limit rate.Limit
	burst int
	perIP map[string]*ipLimiter
}

func newIPLimiterPool(limit rate.Limit, burst int) *ipLimiterPool {
	p := &ipLimiterPool{
		limit: limit,
		burst: burst,
		perIP: make(map[string]*ipLimiter),
	}
	go p.cleanup()
	return p
}

func (p *ipLimiterPool) cleanup() {
	for {
		time.Sleep(5 * time.Minute)
		p.mu.Lock()
		for ip, l := range p.perIP {
			if time.Since(l.lastSeen) > 10*time.Minute {
				delete(p.perIP, ip)
			}
		}
		p.mu.Unlock()
	}
}

func (p *ipLimiterPool) allow(ip string) bool {
	p.mu.Lock()
	l, ok := p.perIP[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(p.limit, p.burst)}
		p.perIP[ip] = l
	}
	l.lastSeen = time.Now()
	p.mu.Unlock()

	return l.limiter.Allow()
}

func (p *ipLimiterPool) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !p.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// RateLimiter returns a Gin middleware that enforces per-IP token-bucket
// rate limiting across the whole API. rps is the steady-state requests per
// second; burst is the maximum burst size.
func RateLimiter(rps, burst int) gin.HandlerFunc {
	return newIPLimiterPool(rate.Limit(rps), burst).middleware()
}

// UploadRateLimiter returns a much stricter per-IP limiter for configuration
// uploads, expressed in requests per minute. A workbook upload replaces the
// process-wide model, so it gets a far smaller bucket than the read
// endpoints.
func UploadRateLimiter(perMinute, burst int) gin.HandlerFunc {
	return newIPLimiterPool(rate.Every(time.Minute/time.Duration(perMinute)), burst).middleware()
}
