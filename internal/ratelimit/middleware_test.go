package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gastro-rechner/internal/common"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestHandlerMiddlewareEnforcesLimit(t *testing.T) {
	_, client := newRedis(t)

	handler := Handler{
		Limiter: SlidingWindow{Client: client, Prefix: "ratelimit:"},
		Config: Config{
			Key:    func(*http.Request) string { return "static" },
			Window: time.Second,
			Max:    1,
		},
	}
	counted := handler.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", nil)
	rr1 := httptest.NewRecorder()
	counted.ServeHTTP(rr1, req.Clone(req.Context()))
	require.Equal(t, http.StatusOK, rr1.Code)

	rr2 := httptest.NewRecorder()
	counted.ServeHTTP(rr2, req.Clone(req.Context()))
	require.Equal(t, http.StatusTooManyRequests, rr2.Code)
	require.Equal(t, "1", rr2.Header().Get("X-RateLimit-Limit"))
	require.Contains(t, rr2.Body.String(), `"RATE_LIMITED"`)
	require.NotEmpty(t, rr2.Header().Get("Retry-After"))
}

func TestHandlerMiddlewareOnError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer func() { _ = client.Close() }()

	called := false
	handler := Handler{
		Limiter: SlidingWindow{Client: client, Prefix: "ratelimit:"},
		Config: Config{
			Key:    func(*http.Request) string { return "err" },
			Window: time.Second,
			Max:    1,
		},
		OnError: func(error) { called = true },
	}

	rr := httptest.NewRecorder()
	handler.Middleware(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, called)
}

func TestSlidingWindow(t *testing.T) {
	mr, client := newRedis(t)
	limiter := SlidingWindow{Client: client, Prefix: "test:"}
	ctx := context.Background()
	window := 2 * time.Second

	for i := 0; i < 2; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "key", window, 2)
		require.NoError(t, err)
		require.True(t, allowed)
		require.Equal(t, 2-(i+1), remaining)
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "key", window, 2)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)

	mr.FastForward(window)

	allowed, _, _, err = limiter.Allow(ctx, "key", window, 2)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestSlidingWindowIgnoresRejectedCalls(t *testing.T) {
	_, client := newRedis(t)
	base := time.Unix(1_700_000_000, 0)
	clock := base
	limiter := SlidingWindow{Client: client, Prefix: "test:", Now: func() time.Time { return clock }}
	ctx := context.Background()
	window := 2 * time.Second

	for _, at := range []time.Duration{0, time.Second} {
		clock = base.Add(at)
		allowed, _, _, err := limiter.Allow(ctx, "key", window, 2)
		require.NoError(t, err)
		require.True(t, allowed)
	}

	clock = base.Add(1500 * time.Millisecond)
	allowed, remaining, reset, err := limiter.Allow(ctx, "key", window, 2)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)
	require.WithinDuration(t, base.Add(window), reset, time.Millisecond)

	n, err := client.ZCard(ctx, "test:key").Result()
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	// The first request has aged out; the rejected one never counted.
	clock = base.Add(2100 * time.Millisecond)
	allowed, remaining, reset, err = limiter.Allow(ctx, "key", window, 2)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Zero(t, remaining)
	require.WithinDuration(t, base.Add(time.Second+window), reset, time.Millisecond)
}

func TestFixedWindow(t *testing.T) {
	_, client := newRedis(t)
	limiter, err := New(StrategyFixed, client, "fixed")
	require.NoError(t, err)
	require.IsType(t, FixedWindow{}, limiter)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		allowed, _, _, err := limiter.Allow(ctx, "caller", time.Minute, 3)
		require.NoError(t, err)
		require.True(t, allowed)
	}
	allowed, remaining, reset, err := limiter.Allow(ctx, "caller", time.Minute, 3)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)
	require.True(t, reset.After(time.Now()))

	allowed, _, _, err = limiter.Allow(ctx, "someone-else", time.Minute, 3)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestNewDefaultsToSliding(t *testing.T) {
	_, client := newRedis(t)
	limiter, err := New("", client, "p:")
	require.NoError(t, err)
	require.IsType(t, SlidingWindow{}, limiter)

	_, err = NewFixedWindow(nil, "p")
	require.Error(t, err)
}

func TestByCaller(t *testing.T) {
	key := ByCaller("write")

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "203.0.113.9:4711"
	require.Equal(t, "write:ip:"+common.ClientIP(req), key(req))

	req = req.WithContext(common.WithUserID(req.Context(), "42"))
	require.Equal(t, "write:user:42", key(req))
}
