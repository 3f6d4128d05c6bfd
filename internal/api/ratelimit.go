package api

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RateLimitConfig holds rate limiter configuration.
type RateLimitConfig struct {
	RPS   int // sustained requests per second per client
	Burst int // short-term allowance above the sustained rate
}

// Stale buckets are dropped so the per-IP map cannot grow without
// bound under churny client populations.
const (
	bucketSweepInterval = 5 * time.Minute
	bucketIdleExpiry    = 10 * time.Minute
)

// isProbePath reports whether a path belongs to the operational
// surface that must stay reachable regardless of auth or load.
func isProbePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

// bucket is a token bucket refilled continuously at rate tokens/sec.
type bucket struct {
	tokens   float64
	lastSeen time.Time
}

type limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   float64
}

func newLimiter(cfg RateLimitConfig) *limiter {
	return &limiter{
		buckets: make(map[string]*bucket),
		rate:    float64(cfg.RPS),
		burst:   float64(cfg.Burst),
	}
}

// take refills the client's bucket for the elapsed time and spends one
// token if available.
func (l *limiter) take(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[client]
	if !ok {
		b = &bucket{tokens: l.burst, lastSeen: now}
		l.buckets[client] = b
	}

	b.tokens += now.Sub(b.lastSeen).Seconds() * l.rate
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops buckets idle past the expiry.
func (l *limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-bucketIdleExpiry)
	for client, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, client)
		}
	}
}

// NewRateLimitMiddleware returns a per-client-IP token-bucket rate
// limiter. Probe endpoints are never limited.
func NewRateLimitMiddleware(cfg RateLimitConfig) fiber.Handler {
	l := newLimiter(cfg)

	go func() {
		ticker := time.NewTicker(bucketSweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			l.sweep()
		}
	}()

	return func(c *fiber.Ctx) error {
		if isProbePath(c.Path()) {
			return c.Next()
		}

		if !l.take(c.IP()) {
			c.Set("Retry-After", "1")
			return problemResponse(c, fiber.StatusTooManyRequests,
				"rate_limit_exceeded", "Too Many Requests",
				"Rate limit exceeded. Please try again later.")
		}

		return c.Next()
	}
}
