package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Limiter applies per-client token buckets with separate budgets for
// reads and writes. Ledger writes rewrite whole aggregates under
// last-write-wins, so they get a quarter of the read budget.
type Limiter struct {
	mu     sync.Mutex
	reads  budget
	writes budget
	state  map[string]*bucket
}

type budget struct {
	capacity  int
	perMinute int
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewLimiter creates a limiter allowing perMinute reads per client and
// a proportionally smaller number of writes, at least one.
func NewLimiter(perMinute int) *Limiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	writesPerMinute := perMinute / 4
	if writesPerMinute < 1 {
		writesPerMinute = 1
	}
	return &Limiter{
		reads:  budget{capacity: perMinute, perMinute: perMinute},
		writes: budget{capacity: writesPerMinute, perMinute: writesPerMinute},
		state:  make(map[string]*bucket),
	}
}

// GinMiddleware returns a gin handler enforcing the per-IP budgets.
func (l *Limiter) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		limit := l.reads
		key := "r:" + ip
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			limit = l.writes
			key = "w:" + ip
		}
		if !l.allow(key, limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

func (l *Limiter) allow(key string, limit budget) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.state[key]
	now := time.Now()
	if !ok {
		b = &bucket{tokens: limit.capacity - 1, last: now}
		l.state[key] = b
		return true
	}
	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(limit.perMinute))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > limit.capacity {
			b.tokens = limit.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}
