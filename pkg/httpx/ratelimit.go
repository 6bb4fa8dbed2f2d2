package httpx

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/tokenrefresh/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines a token bucket: RequestsPerWindow refills over
// Window, with up to Burst requests allowed at once.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

// Profiles for the service endpoints. Each can be overridden from the
// environment, e.g. RATELIMIT_REFRESH_REQUESTS, RATELIMIT_REFRESH_WINDOW_SEC
// and RATELIMIT_REFRESH_BURST.
var (
	// RevokeLimit guards token revocation.
	RevokeLimit = RateLimitConfig{RequestsPerWindow: 10, Window: time.Minute, Burst: 10}

	// RefreshLimit guards the refresh grant. Consumers refresh once per
	// access-token lifetime, so this is generous per IP.
	RefreshLimit = RateLimitConfig{RequestsPerWindow: 60, Window: time.Minute, Burst: 20}

	// IntrospectLimit guards introspection, which proxies call on every
	// data request.
	IntrospectLimit = RateLimitConfig{RequestsPerWindow: 600, Window: time.Minute, Burst: 100}

	// ProbeLimit guards the health probes.
	ProbeLimit = RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}
)

func init() {
	RevokeLimit = ParseRateLimitFromEnv("REVOKE", RevokeLimit)
	RefreshLimit = ParseRateLimitFromEnv("REFRESH", RefreshLimit)
	IntrospectLimit = ParseRateLimitFromEnv("INTROSPECT", IntrospectLimit)
	ProbeLimit = ParseRateLimitFromEnv("PROBE", ProbeLimit)
}

// ParseRateLimitFromEnv overlays RATELIMIT_{prefix}_{REQUESTS,WINDOW_SEC,BURST}
// on def. Missing or non-positive values keep the default.
func ParseRateLimitFromEnv(prefix string, def RateLimitConfig) RateLimitConfig {
	cfg := def

	if n, ok := positiveEnv("RATELIMIT_" + prefix + "_REQUESTS"); ok {
		cfg.RequestsPerWindow = n
	}
	if n, ok := positiveEnv("RATELIMIT_" + prefix + "_WINDOW_SEC"); ok {
		cfg.Window = time.Duration(n) * time.Second
	}
	if n, ok := positiveEnv("RATELIMIT_" + prefix + "_BURST"); ok {
		cfg.Burst = n
	}

	return cfg
}

func positiveEnv(key string) (int, bool) {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// KeyExtractor groups requests into rate limit buckets.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor returns the client IP, honouring X-Forwarded-For and
// X-Real-IP when the service sits behind a proxy.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

const limiterSweepInterval = 5 * time.Minute

// limiterSet holds one token bucket per key.
type limiterSet struct {
	limiters sync.Map // map[string]*rate.Limiter
	limit    rate.Limit
	burst    int

	mu        sync.Mutex
	lastSweep time.Time
}

func (ls *limiterSet) get(key string) *rate.Limiter {
	if l, ok := ls.limiters.Load(key); ok {
		return l.(*rate.Limiter)
	}

	l, _ := ls.limiters.LoadOrStore(key, rate.NewLimiter(ls.limit, ls.burst))
	ls.sweep()
	return l.(*rate.Limiter)
}

// sweep drops idle buckets. A bucket that has refilled completely has not
// been used for a while, so forgetting it changes nothing for the caller.
func (ls *limiterSet) sweep() {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if time.Since(ls.lastSweep) < limiterSweepInterval {
		return
	}
	ls.lastSweep = time.Now()

	ls.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(ls.burst) {
			ls.limiters.Delete(key)
		}
		return true
	})
}

// RateLimitMiddleware rejects requests with 429 once their bucket is empty.
func RateLimitMiddleware(cfg RateLimitConfig, keyFn KeyExtractor) Middleware {
	ls := &limiterSet{
		limit:     rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		burst:     cfg.Burst,
		lastSweep: time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			key := keyFn(r)
			if key == "" {
				log.Warn("rate limit: no key for request, allowing")
				next.ServeHTTP(w, r)
				return
			}

			limiter := ls.get(key)
			if limiter.Allow() {
				next.ServeHTTP(w, r)
				return
			}

			res := limiter.Reserve()
			retryAfter := max(int(res.Delay().Seconds()), 1)
			res.Cancel()

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Window", cfg.Window.String())

			log.Warn("rate limit exceeded",
				"key", key,
				"endpoint", r.URL.Path,
				"retry_after", retryAfter,
			)

			WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":             "rate_limit_exceeded",
				"error_description": "Too many requests. Please try again later.",
			})
		})
	}
}

// RateLimitByIP limits by client IP.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, IPKeyExtractor)
}
