package httpmiddleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts requests per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// KeyFunc picks the rate limit bucket of a request.
type KeyFunc func(r *http.Request) string

// RateLimit rejects requests over the limiter's budget with 429. Limiter
// failures are logged and the request is let through.
func RateLimit(l Limiter, key KeyFunc) Middleware {
	if key == nil {
		key = CallerKey
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := l.Allow(r.Context(), key(r))
			if err != nil {
				zctx.From(r.Context()).Warn("Rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
			if !d.Allowed {
				wait := max(time.Until(d.ResetAt), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CallerKey buckets requests by API key when one is sent and by client IP
// otherwise. Keys are hashed so they never reach the limiter's storage.
func CallerKey(r *http.Request) string {
	key := r.Header.Get("X-API-Key")
	if key == "" {
		key = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if key != "" {
		sum := sha256.Sum256([]byte(key))
		return "key:" + hex.EncodeToString(sum[:8])
	}
	return "ip:" + ClientIP(r)
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the peer
// address, in that order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type slidingWindow struct {
	prev, curr float64
	currStart  time.Time
}

// MemoryLimiter is a per-process sliding window limiter: the previous
// window's count is weighted by how much of it still overlaps the sliding
// window.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*slidingWindow
}

// NewMemoryLimiter allows limit requests per window and key.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string]*slidingWindow),
	}
}

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		w = &slidingWindow{currStart: now.Truncate(l.window)}
		l.windows[key] = w
	}
	if elapsed := now.Sub(w.currStart); elapsed >= l.window {
		w.prev = w.curr
		if elapsed >= 2*l.window {
			w.prev = 0
		}
		w.curr = 0
		w.currStart = now.Truncate(l.window)
	}

	overlap := max(1-now.Sub(w.currStart).Seconds()/l.window.Seconds(), 0)
	count := w.prev*overlap + w.curr
	d := Decision{Limit: l.limit, ResetAt: w.currStart.Add(l.window)}
	if count >= float64(l.limit) {
		return d, nil
	}
	w.curr++
	d.Allowed = true
	d.Remaining = max(int(float64(l.limit)-count-1), 0)
	return d, nil
}

// Sweep forgets keys idle for two windows.
func (l *MemoryLimiter) Sweep() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if now.Sub(w.currStart) >= 2*l.window {
			delete(l.windows, key)
		}
	}
}

// StartSweeper runs Sweep every two windows until ctx is done.
func (l *MemoryLimiter) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(2 * l.window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()
}

// RedisLimiter is a fixed window limiter shared by every replica through
// Redis. Each window is one counter key that expires on its own.
type RedisLimiter struct {
	rdb    redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedisLimiter allows limit requests per window and key.
func NewRedisLimiter(rdb redis.UniversalClient, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		limit:  limit,
		window: window,
		prefix: "ratelimit:",
		now:    time.Now,
	}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	start := l.now().Truncate(l.window)
	k := l.prefix + key + ":" + strconv.FormatInt(start.Unix(), 10)

	var incr *redis.IntCmd
	if _, err := l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, l.window)
		return nil
	}); err != nil {
		return Decision{}, errors.Wrap(err, "count request")
	}

	n := int(incr.Val())
	return Decision{
		Allowed:   n <= l.limit,
		Limit:     l.limit,
		Remaining: max(l.limit-n, 0),
		ResetAt:   start.Add(l.window),
	}, nil
}
