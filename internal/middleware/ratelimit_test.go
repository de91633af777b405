// AngelaMos | 2026
// ratelimit_test.go

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rateLimitedServer(
	t *testing.T,
	cfg RateLimitConfig,
) (*httptest.Server, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRateLimiter(client, cfg)
	handler := limiter.Handler(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, mr
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	srv, _ := rateLimitedServer(t, RateLimitConfig{
		Limit: PerMinute(5, 5),
	})

	for i := 0; i < 5; i++ {
		resp := get(t, srv.URL)
		assert.Equal(t, http.StatusOK, resp.StatusCode, "request %d", i+1)
	}
}

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	srv, _ := rateLimitedServer(t, RateLimitConfig{
		Limit: PerMinute(2, 2),
	})

	get(t, srv.URL)
	get(t, srv.URL)

	resp := get(t, srv.URL)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestRateLimiterSetsHeaders(t *testing.T) {
	srv, _ := rateLimitedServer(t, RateLimitConfig{
		Limit: PerMinute(10, 10),
	})

	resp := get(t, srv.URL)
	assert.Equal(t, "10", resp.Header.Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, resp.Header.Get("RateLimit-Policy"))
}

func TestRateLimiterFallsBackWhenRedisDown(t *testing.T) {
	srv, mr := rateLimitedServer(t, RateLimitConfig{
		Limit: PerSecond(1, 1),
	})
	mr.Close()

	// The local fallback keeps limiting without redis.
	resp := get(t, srv.URL)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, srv.URL)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRateLimiterBypass(t *testing.T) {
	srv, _ := rateLimitedServer(t, RateLimitConfig{
		Limit: PerMinute(1, 1),
		BypassFunc: func(r *http.Request) bool {
			return r.Header.Get("X-Internal") == "1"
		},
	})

	client := srv.Client()
	for i := 0; i < 3; i++ {
		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		req.Header.Set("X-Internal", "1")

		resp, err := client.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func TestKeyByIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.2")

	assert.Equal(t, "ratelimit:ip:10.0.0.2", KeyByIP(req))
}

func TestNormalizeEndpointCollapsesIDs(t *testing.T) {
	assert.Equal(t,
		"/v1/projects/{id}/files",
		normalizeEndpoint(
			"/v1/projects/9b2e8c1a-2f6d-4f3a-9c7e-1a2b3c4d5e6f/files"))
	assert.Equal(t, "/v1/users/{id}", normalizeEndpoint("/v1/users/42"))
}

func TestLocalLimiterRefillsOverTime(t *testing.T) {
	l := newLocalLimiter()
	limit := PerSecond(5, 1)

	res, err := l.allow("k", limit)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Allowed)

	res, err = l.allow("k", limit)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Allowed)

	time.Sleep(250 * time.Millisecond)

	res, err = l.allow("k", limit)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Allowed)
}
