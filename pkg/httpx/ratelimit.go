package httpx

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aussiebroadwan/yieldbook/pkg/slogx"
)

// RateLimitConfig is a token bucket refilled at Requests per Window.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Burst    int
}

func (c RateLimitConfig) limit() rate.Limit {
	if c.Requests <= 0 || c.Window <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(c.Requests) / c.Window.Seconds())
}

// RateLimits groups the profiles applied to the different route classes.
type RateLimits struct {
	// Strict guards credential checks (login). Unlimited unless configured,
	// failed logins never lock an account out on their own.
	Strict RateLimitConfig
	// Moderate guards account creation and token refresh.
	Moderate RateLimitConfig
	// Lenient guards authenticated reads.
	Lenient RateLimitConfig
	// Public guards unauthenticated informational endpoints.
	Public RateLimitConfig
}

// DefaultRateLimits returns the production profiles. Strict is left open;
// operators opt in with the RATELIMIT_STRICT_* variables.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Strict:   RateLimitConfig{Window: time.Minute},
		Moderate: RateLimitConfig{Requests: 20, Window: time.Minute, Burst: 20},
		Lenient:  RateLimitConfig{Requests: 100, Window: time.Minute, Burst: 100},
		Public:   RateLimitConfig{Requests: 1000, Window: time.Minute, Burst: 1000},
	}
}

// WithEnv overrides profiles from RATELIMIT_{STRICT,MODERATE,LENIENT,PUBLIC}_
// {REQUESTS,WINDOW_SEC,BURST}. Unset, malformed or non-positive values are
// ignored.
func (l RateLimits) WithEnv(getenv func(string) string) RateLimits {
	l.Strict = l.Strict.withEnv(getenv, "STRICT")
	l.Moderate = l.Moderate.withEnv(getenv, "MODERATE")
	l.Lenient = l.Lenient.withEnv(getenv, "LENIENT")
	l.Public = l.Public.withEnv(getenv, "PUBLIC")
	return l
}

func (c RateLimitConfig) withEnv(getenv func(string) string, profile string) RateLimitConfig {
	positive := func(field string) (int, bool) {
		n, err := strconv.Atoi(getenv("RATELIMIT_" + profile + "_" + field))
		return n, err == nil && n > 0
	}

	if n, ok := positive("REQUESTS"); ok {
		c.Requests = n
	}
	if n, ok := positive("WINDOW_SEC"); ok {
		c.Window = time.Duration(n) * time.Second
	}
	if n, ok := positive("BURST"); ok {
		c.Burst = n
	}
	return c
}

// KeyFunc groups requests into rate limit buckets. An empty key bypasses
// the limiter.
type KeyFunc func(*http.Request) string

// ClientIP keys by the peer address. When trustProxy is set the first
// X-Forwarded-For entry, then X-Real-IP, take precedence.
func ClientIP(trustProxy bool) KeyFunc {
	return func(r *http.Request) string {
		if trustProxy {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
			if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
				return xri
			}
		}

		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr
		}
		return host
	}
}

// FormValueKey keys by a form field, case-folded so "Alice" and "alice"
// share a bucket.
func FormValueKey(field string) KeyFunc {
	return func(r *http.Request) string {
		if err := r.ParseForm(); err != nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(r.FormValue(field)))
	}
}

// JoinKeys concatenates the non-empty keys of fns with sep.
func JoinKeys(sep string, fns ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(fns))
		for _, fn := range fns {
			if k := fn(r); k != "" {
				parts = append(parts, k)
			}
		}
		return strings.Join(parts, sep)
	}
}

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter holds one token bucket per key. Buckets idle for longer than
// limiterIdleTTL are swept lazily.
type Limiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu        sync.Mutex
	entries   map[string]*limiterEntry
	lastSweep time.Time
}

func NewLimiter(cfg RateLimitConfig) *Limiter {
	if cfg.Burst <= 0 {
		cfg.Burst = max(cfg.Requests, 1)
	}
	return &Limiter{
		cfg:       cfg,
		now:       time.Now,
		entries:   make(map[string]*limiterEntry),
		lastSweep: time.Now(),
	}
}

// Allow consumes a token for key. When the bucket is empty it reports how
// long until the next token.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(l.cfg.limit(), l.cfg.Burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	l.sweepLocked(now)
	l.mu.Unlock()

	if e.lim.AllowN(now, 1) {
		return true, 0
	}

	res := e.lim.ReserveN(now, 1)
	delay := res.DelayFrom(now)
	res.CancelAt(now)
	return false, delay
}

func (l *Limiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < limiterIdleTTL {
		return
	}
	l.lastSweep = now
	for k, e := range l.entries {
		if now.Sub(e.lastSeen) > limiterIdleTTL {
			delete(l.entries, k)
		}
	}
}

// Len reports the number of tracked buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// RateLimit rejects requests over cfg with a Retry-After header and lets
// reject write the 429 response. A nil reject writes a bare status text.
func RateLimit(cfg RateLimitConfig, key KeyFunc, reject func(http.ResponseWriter)) Middleware {
	if reject == nil {
		reject = func(w http.ResponseWriter) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}
	}
	l := NewLimiter(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				slogx.FromContext(r.Context()).Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			ok, delay := l.Allow(k)
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := max(int((delay+time.Second-1)/time.Second), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))
			w.Header().Set("X-RateLimit-Window", cfg.Window.String())

			slogx.FromContext(r.Context()).Warn("rate limit exceeded",
				"endpoint", r.URL.Path,
				"retry_after", retryAfter,
			)

			reject(w)
		})
	}
}
