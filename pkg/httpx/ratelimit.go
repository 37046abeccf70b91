package httpx

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig describes a token-bucket profile for a route class.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration
}

// Route classes, ordered from most to least restrictive. Credential
// and code-entry endpoints get Strict; authenticated mutation gets
// Moderate; reads get Lenient; health probes get Public.
var (
	StrictLimit = RateLimitConfig{
		RequestsPerSecond: 0.5,
		Burst:             3,
		CleanupInterval:   10 * time.Minute,
	}

	ModerateLimit = RateLimitConfig{
		RequestsPerSecond: 2,
		Burst:             10,
		CleanupInterval:   10 * time.Minute,
	}

	LenientLimit = RateLimitConfig{
		RequestsPerSecond: 10,
		Burst:             30,
		CleanupInterval:   10 * time.Minute,
	}

	PublicLimit = RateLimitConfig{
		RequestsPerSecond: 50,
		Burst:             100,
		CleanupInterval:   10 * time.Minute,
	}
)

// KeyExtractor derives the bucket key for a request.
type KeyExtractor func(r *http.Request) string

// IPKeyExtractor keys buckets by client IP, trusting proxy headers
// when present.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return "ip:" + strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return "ip:" + strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

// UserIDKeyExtractor keys buckets by the authenticated user, falling
// back to IP for anonymous requests.
func UserIDKeyExtractor(r *http.Request) string {
	if id := UserIDFromCtx(r.Context()); id != 0 {
		return "user:" + strconv.FormatInt(id, 10)
	}
	return IPKeyExtractor(r)
}

// CompositeKeyExtractor joins several extractors into one key.
func CompositeKeyExtractor(extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(extractors))
		for _, e := range extractors {
			parts = append(parts, e(r))
		}
		return strings.Join(parts, "|")
	}
}

type rateLimiter struct {
	limiters sync.Map // key -> *rate.Limiter
	config   RateLimitConfig

	lastCleanup time.Time
	cleanupMu   sync.Mutex
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		config:      cfg,
		lastCleanup: time.Now(),
	}
}

func (rl *rateLimiter) limiter(key string) *rate.Limiter {
	if v, ok := rl.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst)
	actual, _ := rl.limiters.LoadOrStore(key, l)
	return actual.(*rate.Limiter)
}

// maybeCleanup drops buckets that have refilled completely. A full
// bucket means the key has been idle long enough to forget.
func (rl *rateLimiter) maybeCleanup() {
	rl.cleanupMu.Lock()
	defer rl.cleanupMu.Unlock()

	if time.Since(rl.lastCleanup) < rl.config.CleanupInterval {
		return
	}
	rl.lastCleanup = time.Now()

	rl.limiters.Range(func(key, value any) bool {
		l := value.(*rate.Limiter)
		if l.Tokens() >= float64(rl.config.Burst) {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// RateLimitMiddleware enforces a token-bucket limit per extracted key
// and advertises the limit via X-RateLimit headers.
func RateLimitMiddleware(cfg RateLimitConfig, extract KeyExtractor) Middleware {
	rl := newRateLimiter(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rl.maybeCleanup()

			key := extract(r)
			limiter := rl.limiter(key)

			reservation := limiter.Reserve()
			if !reservation.OK() {
				WriteRetryAfter(w, http.StatusTooManyRequests,
					"rate_limited", "Rate limit exceeded", time.Minute)
				return
			}

			delay := reservation.Delay()
			if delay > 0 {
				reservation.Cancel()
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Burst))
				w.Header().Set("X-RateLimit-Remaining", "0")
				WriteRetryAfter(w, http.StatusTooManyRequests,
					"rate_limited", "Rate limit exceeded", delay)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP limits by client IP.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, IPKeyExtractor)
}

// RateLimitByUser limits by authenticated user, IP for anonymous.
func RateLimitByUser(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, UserIDKeyExtractor)
}
