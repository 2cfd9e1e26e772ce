package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/DukeRupert/labsnap/internal/auth"
	"github.com/DukeRupert/labsnap/internal/domain"
	"github.com/DukeRupert/labsnap/internal/handler"
	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// =============================================================================
// Rate Limiter
// =============================================================================

// RateLimiter throttles requests per caller. It protects the analysis
// endpoints from request floods; daily quotas are enforced separately by the
// entitlement check.
//
// With a Redis client the limit is shared across processes. When Redis is
// absent or failing, an in-process token bucket takes over.
type RateLimiter struct {
	limiter  *redis_rate.Limiter
	fallback *localLimiter
	limit    redis_rate.Limit
	logger   *slog.Logger
}

// NewRateLimiter creates a rate limiter. rdb may be nil.
func NewRateLimiter(rdb *redis.Client, limit redis_rate.Limit, logger *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		fallback: newLocalLimiter(),
		limit:    limit,
		logger:   logger,
	}
	if rdb != nil {
		rl.limiter = redis_rate.NewLimiter(rdb)
	}
	return rl
}

// PerMinute builds a limit of n requests per minute with a burst of n.
func PerMinute(n int) redis_rate.Limit {
	return redis_rate.PerMinute(n)
}

// Allow reports whether a request for key may proceed.
func (rl *RateLimiter) Allow(ctx context.Context, key string) *redis_rate.Result {
	if rl.limiter != nil {
		res, err := rl.limiter.Allow(ctx, key, rl.limit)
		if err == nil {
			return res
		}
		rl.logger.Warn("rate limiter store unavailable, using local limiter", "error", err)
	}
	return rl.fallback.allow(key, rl.limit)
}

// Handler returns middleware that rejects throttled requests with 429. It
// must run inside the identity middleware to key by account.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	const op = "middleware.ratelimit"

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := KeyByIdentity(r)
		res := rl.Allow(r.Context(), key)

		setRateLimitHeaders(w, res, rl.limit)

		if res.Allowed == 0 {
			rl.logger.Warn("rate limit exceeded",
				"key", key,
				"path", r.URL.Path,
				"method", r.Method,
			)
			w.Header().Set("Retry-After", strconv.Itoa(domain.RetrySeconds(res.RetryAfter)))
			handler.ErrorResponse(w, r, rl.logger, domain.RateLimit(op, res.RetryAfter))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// KeyByIdentity keys signed-in callers by account and the demo account by IP,
// since every anonymous client shares the demo id.
func KeyByIdentity(r *http.Request) string {
	id := auth.GetIdentity(r.Context())
	if !id.IsDemo() {
		return "labsnap:ratelimit:user:" + id.UserID
	}
	return "labsnap:ratelimit:ip:" + getClientIP(r)
}

func setRateLimitHeaders(w http.ResponseWriter, res *redis_rate.Result, limit redis_rate.Limit) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.ResetAfter).Unix(), 10))
}

// =============================================================================
// Local fallback
// =============================================================================

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

type localLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	lastPrune time.Time
}

const entryTTL = 10 * time.Minute

func newLocalLimiter() *localLimiter {
	return &localLimiter{limiters: make(map[string]*limiterEntry)}
}

func (l *localLimiter) allow(key string, limit redis_rate.Limit) *redis_rate.Result {
	perSec := float64(limit.Rate) / limit.Period.Seconds()
	now := time.Now()

	l.mu.Lock()
	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(perSec), limit.Burst)}
		l.limiters[key] = entry
	}
	entry.lastAccess = now
	l.prune(now)
	l.mu.Unlock()

	res := &redis_rate.Result{
		Limit:      limit,
		ResetAfter: time.Duration(float64(time.Second) / perSec),
		RetryAfter: -1,
	}
	if entry.limiter.AllowN(now, 1) {
		res.Allowed = 1
	} else {
		res.RetryAfter = time.Duration(float64(time.Second) / perSec)
	}
	if remaining := int(entry.limiter.TokensAt(now)); remaining > 0 {
		res.Remaining = remaining
	}
	return res
}

// prune drops idle entries at most once per TTL. Callers hold l.mu.
func (l *localLimiter) prune(now time.Time) {
	if now.Sub(l.lastPrune) < entryTTL {
		return
	}
	l.lastPrune = now
	for key, entry := range l.limiters {
		if now.Sub(entry.lastAccess) > entryTTL {
			delete(l.limiters, key)
		}
	}
}

// =============================================================================
// Helpers
// =============================================================================

// getClientIP extracts the client IP from the request, considering proxy headers.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs: client, proxy1, proxy2
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if clientIP := strings.TrimSpace(strings.Split(xff, ",")[0]); clientIP != "" {
			return clientIP
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return ip
}
