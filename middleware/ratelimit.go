// middleware/ratelimit.go
package middleware

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	RateLimitWindow = 60 * time.Second
	maxEntries      = 10000
)

// Per-route request ceilings per client IP per window. Routes not listed here
// are not limited; routing itself is the allow-list.
var routeLimits = map[string]int{
	"/":                5,
	"/submit":          5,
	"/submit-game":     3,
	"/approve":         30,
	"/approve-profile": 30,
	"/approve-game":    30,
	"/notify":          10,
}

// LimiterStore counts requests per key within the current window.
type LimiterStore interface {
	Incr(key string, window time.Duration) (int, error)
}

type memoryEntry struct {
	count       int
	windowStart time.Time
}

// MemoryStore is the in-process fixed-window counter. Its ceiling is
// per-instance: with N instances the effective global limit is N times the
// configured one.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) Incr(key string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	e, ok := s.entries[key]
	if !ok || now.Sub(e.windowStart) > window {
		s.entries[key] = &memoryEntry{count: 1, windowStart: now}
		if len(s.entries) > maxEntries {
			s.sweepLocked(now, window)
		}
		return 1, nil
	}
	e.count++
	return e.count, nil
}

// Sweep drops expired windows and returns how many entries were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(time.Now(), RateLimitWindow)
}

func (s *MemoryStore) sweepLocked(now time.Time, window time.Duration) int {
	removed := 0
	for k, e := range s.entries {
		if now.Sub(e.windowStart) > window {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// RedisStore counts windows in Redis so the ceiling holds across instances.
type RedisStore struct {
	RDB *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{RDB: rdb}
}

func (s *RedisStore) Incr(key string, window time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	count, err := s.RDB.Incr(ctx, "ratelimit:"+key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := s.RDB.Expire(ctx, "ratelimit:"+key, window).Err(); err != nil {
			return int(count), err
		}
	}
	return int(count), nil
}

// ClientIP resolves the caller's address, preferring the edge-provided header.
func ClientIP(c *fiber.Ctx) string {
	if ip := c.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	return c.IP()
}

// NormalizePath strips trailing slashes so "/submit/" limits like "/submit".
func NormalizePath(path string) string {
	if trimmed := strings.TrimRight(path, "/"); trimmed != "" {
		return trimmed
	}
	return "/"
}

// RateLimit gates listed routes per (client IP, route). Clients with no
// resolvable address bypass the limiter; a store error also lets the request
// through rather than turning a limiter outage into an outage of the service.
func RateLimit(store LimiterStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := NormalizePath(c.Path())
		limit, limited := routeLimits[path]
		if !limited {
			return c.Next()
		}
		ip := ClientIP(c)
		if ip == "" {
			return c.Next()
		}

		count, err := store.Incr(ip+":"+path, RateLimitWindow)
		if err != nil {
			log.Printf("⚠️ [RATELIMIT] store error for %s: %v", path, err)
			return c.Next()
		}
		if count > limit {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		}
		return c.Next()
	}
}
