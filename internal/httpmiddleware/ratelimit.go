package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Limiter is an in-memory per-client token bucket. Each client may burst up
// to capacity requests and regains perMinute tokens per minute.
type Limiter struct {
	capacity  float64
	perSecond float64
	now       func() time.Time
	onReject  func()

	mu    sync.Mutex
	state map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

type LimiterOption func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) { l.now = now }
}

// OnReject registers a hook called for every rejected request.
func OnReject(fn func()) LimiterOption {
	return func(l *Limiter) { l.onReject = fn }
}

// NewLimiter creates a limiter with capacity tokens refilled at perMinute.
// A non-positive capacity defaults to perMinute.
func NewLimiter(capacity, perMinute int, opts ...LimiterOption) *Limiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if capacity <= 0 {
		capacity = perMinute
	}
	l := &Limiter{
		capacity:  float64(capacity),
		perSecond: float64(perMinute) / 60,
		now:       time.Now,
		onReject:  func() {},
		state:     make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Middleware enforces the limit per client IP.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.Allow(ip) {
			l.onReject()
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"kind":  "rate_limited",
				"error": "too many requests, slow down",
			})
			return
		}
		c.Next()
	}
}

// Allow takes one token from key's bucket if available.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.state[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.state[key] = b
	}

	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * l.perSecond
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
