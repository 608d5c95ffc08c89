package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	mu     sync.Mutex
	routes []string
}

func (r *countingRecorder) RateLimited(_ context.Context, route string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
}

func buildRouterForTest(t *testing.T, cfg *Config, client redis.UniversalClient) (*gin.Engine, *countingRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	m, err := NewManager(cfg, client)
	require.NoError(t, err)
	rec := &countingRecorder{}
	r.Use(m.WithRecorder(rec).Middleware())
	r.GET("/t", func(c *gin.Context) { c.String(200, "ok") })
	r.GET("/health", func(c *gin.Context) { c.String(200, "ok") })
	return r, rec
}

func doReq(r *gin.Engine, path, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	if ip != "" {
		req.Header.Set("X-Real-IP", ip)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestInMemoryRateLimit_BlocksAfterLimit(t *testing.T) {
	cfg := &Config{Limit: 3, Period: time.Minute, Prefix: "test"}
	r, rec := buildRouterForTest(t, cfg, nil)

	for i := range 3 {
		res := doReq(r, "/t", "1.2.3.4")
		require.Equal(t, http.StatusOK, res.Code, "request %d", i+1)
	}
	res := doReq(r, "/t", "1.2.3.4")
	require.Equal(t, http.StatusTooManyRequests, res.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, "Too many requests", body["detail"])
	assert.NotEmpty(t, res.Header().Get("Retry-After"))
	assert.Equal(t, []string{"/t"}, rec.routes)

	// other clients keep their own budget
	require.Equal(t, http.StatusOK, doReq(r, "/t", "5.6.7.8").Code)
}

func TestInMemoryRateLimit_RefillAfterPeriod(t *testing.T) {
	cfg := &Config{Limit: 1, Period: 100 * time.Millisecond, Prefix: "test"}
	r, _ := buildRouterForTest(t, cfg, nil)

	require.Equal(t, http.StatusOK, doReq(r, "/t", "5.6.7.8").Code)
	require.Equal(t, http.StatusTooManyRequests, doReq(r, "/t", "5.6.7.8").Code)
	time.Sleep(150 * time.Millisecond)
	require.Equal(t, http.StatusOK, doReq(r, "/t", "5.6.7.8").Code)
}

func TestInMemoryRateLimit_SetsHeaders(t *testing.T) {
	cfg := &Config{Limit: 2, Period: time.Minute, Prefix: "test"}
	r, _ := buildRouterForTest(t, cfg, nil)
	res := doReq(r, "/t", "9.9.9.9")
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "2", res.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "1", res.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, res.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimit_SkipsExcludedPaths(t *testing.T) {
	cfg := &Config{Limit: 1, Period: time.Minute, Prefix: "test", ExcludedPaths: []string{"/health"}}
	r, _ := buildRouterForTest(t, cfg, nil)
	for range 3 {
		res := doReq(r, "/health", "7.7.7.7")
		require.Equal(t, http.StatusOK, res.Code)
		require.Empty(t, res.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRedisRateLimit_UsesClientKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cfg := &Config{Limit: 2, Period: time.Minute, Prefix: "ratelimit", MaxRetry: 1}
	r, _ := buildRouterForTest(t, cfg, client)

	require.Equal(t, http.StatusOK, doReq(r, "/t", "10.0.0.1").Code)
	require.Equal(t, http.StatusOK, doReq(r, "/t", "10.0.0.1").Code)
	require.Equal(t, http.StatusTooManyRequests, doReq(r, "/t", "10.0.0.1").Code)
	assert.True(t, mr.Exists("ratelimit:10.0.0.1"))
}

func TestConfig_Validate(t *testing.T) {
	t.Run("Should reject a non-positive limit", func(t *testing.T) {
		_, err := NewManager(&Config{Limit: 0, Period: time.Minute}, nil)
		require.Error(t, err)
	})
	t.Run("Should reject a non-positive window", func(t *testing.T) {
		_, err := NewManager(&Config{Limit: 1}, nil)
		require.Error(t, err)
	})
}
