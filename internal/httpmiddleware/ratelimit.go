package httpmiddleware

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces a per-IP requests-per-minute cap. With a Redis
// client it uses a shared fixed-window counter so the limit holds across
// replicas; without one it falls back to an in-process token bucket.
type RateLimiter struct {
	perMinute int
	rdb       *redis.Client

	mu    sync.Mutex
	state map[string]*bucket
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewRateLimiter creates a limiter allowing perMinute requests per client.
// rdb may be nil.
func NewRateLimiter(perMinute int, rdb *redis.Client) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &RateLimiter{
		perMinute: perMinute,
		rdb:       rdb,
		state:     make(map[string]*bucket),
	}
}

// GinMiddleware returns a gin handler enforcing the limit.
func (l *RateLimiter) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(c.Request.Context(), ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

func (l *RateLimiter) allow(ctx context.Context, key string) bool {
	if l.rdb != nil {
		allowed, err := l.allowRedis(ctx, key)
		if err == nil {
			return allowed
		}
		log.Printf("rate limiter: redis unavailable, using local bucket: %v", err)
	}
	return l.allowLocal(key)
}

// allowRedis counts requests in a per-minute window keyed by client IP.
func (l *RateLimiter) allowRedis(ctx context.Context, key string) (bool, error) {
	window := time.Now().Unix() / 60
	redisKey := "ratelimit:" + key + ":" + time.Unix(window*60, 0).UTC().Format("1504")

	count, err := l.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		l.rdb.Expire(ctx, redisKey, 2*time.Minute)
	}
	return count <= int64(l.perMinute), nil
}

func (l *RateLimiter) allowLocal(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.state[key]
	now := time.Now()
	if !ok {
		b = &bucket{tokens: l.perMinute - 1, last: now}
		l.state[key] = b
		return true
	}
	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(l.perMinute))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.perMinute {
			b.tokens = l.perMinute
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}
