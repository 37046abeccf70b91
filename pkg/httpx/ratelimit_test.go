package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPKeyExtractor(t *testing.T) {
	t.Run("RemoteAddr", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.7:51234"
		assert.Equal(t, "ip:10.0.0.7", IPKeyExtractor(r))
	})

	t.Run("XForwardedFor", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		assert.Equal(t, "ip:203.0.113.9", IPKeyExtractor(r))
	})

	t.Run("XRealIP", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Real-IP", "198.51.100.4")
		assert.Equal(t, "ip:198.51.100.4", IPKeyExtractor(r))
	})
}

func TestUserIDKeyExtractor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.7:51234"
	assert.Equal(t, "ip:10.0.0.7", UserIDKeyExtractor(r), "anonymous falls back to IP")

	ctx := context.WithValue(r.Context(), CtxKeyUserID, int64(42))
	r = r.WithContext(ctx)
	assert.Equal(t, "user:42", UserIDKeyExtractor(r))
}

func TestCompositeKeyExtractor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.7:51234"
	ctx := context.WithValue(r.Context(), CtxKeyUserID, int64(7))
	r = r.WithContext(ctx)

	extract := CompositeKeyExtractor(IPKeyExtractor, UserIDKeyExtractor)
	assert.Equal(t, "ip:10.0.0.7|user:7", extract(r))
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 1, Burst: 2, CleanupInterval: time.Minute}

	handler := RateLimitMiddleware(cfg, IPKeyExtractor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.7:51234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	// Burst of 2 passes, third is throttled.
	require.Equal(t, http.StatusOK, send().Code)
	require.Equal(t, http.StatusOK, send().Code)

	third := send()
	require.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.NotEmpty(t, third.Header().Get("Retry-After"))

	var body ErrorBody
	require.NoError(t, json.NewDecoder(third.Body).Decode(&body))
	assert.Equal(t, "rate_limited", body.Error)
	assert.Positive(t, body.RetryAfter)
}

func TestRateLimitMiddlewareSeparateKeys(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 1, Burst: 1, CleanupInterval: time.Minute}

	handler := RateLimitMiddleware(cfg, IPKeyExtractor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) int {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w.Code
	}

	require.Equal(t, http.StatusOK, send("10.0.0.1:1000"))
	require.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1000"))
	require.Equal(t, http.StatusOK, send("10.0.0.2:1000"), "distinct IPs get distinct buckets")
}
