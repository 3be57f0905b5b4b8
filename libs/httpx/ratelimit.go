package httpx

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// CounterStore counts hits per key inside a fixed window. The middleware
// owns key construction; implementations must be safe for concurrent use.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type RateLimitConfig struct {
	Limit  int
	Window time.Duration
	Prefix string
	// FailOpen lets traffic through when the store errors instead of
	// answering 503.
	FailOpen bool
}

// RateLimit rejects a client with 429 once it exceeds Limit requests in
// the current window. Clients are keyed by X-Forwarded-For when present,
// remote address otherwise.
func RateLimit(store CounterStore, cfg RateLimitConfig, logger *slog.Logger) Middleware {
	if cfg.Limit <= 0 {
		cfg.Limit = 60
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = "rl"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := prefix + ":" + clientKey(r)
			count, err := store.Incr(r.Context(), key, cfg.Window)
			if err != nil {
				if logger != nil {
					logger.Warn("rate limit store error", "err", err)
				}
				if cfg.FailOpen {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "rate limiter unavailable", http.StatusServiceUnavailable)
				return
			}
			if count > int64(cfg.Limit) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MemoryCounter is a process-local CounterStore for single-instance
// deployments and tests. Replicated gateways want the Redis counter so
// every instance sees the same window.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
}

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{windows: map[string]*memoryWindow{}}
}

const memoryCounterMaxKeys = 16384

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	w := c.windows[key]
	if w == nil || now.After(w.resetAt) {
		if len(c.windows) >= memoryCounterMaxKeys {
			c.dropExpired(now)
		}
		w = &memoryWindow{resetAt: now.Add(window)}
		c.windows[key] = w
	}
	w.count++
	return w.count, nil
}

// dropExpired must run under mu.
func (c *MemoryCounter) dropExpired(now time.Time) {
	for k, w := range c.windows {
		if now.After(w.resetAt) {
			delete(c.windows, k)
		}
	}
}

func clientKey(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		parts := strings.Split(ip, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
