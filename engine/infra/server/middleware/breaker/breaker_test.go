package breaker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Druk83/TrainingGround/pkg/logger"
)

type rejections struct{ n atomic.Int64 }

func (r *rejections) BreakerRejected(context.Context, string) { r.n.Add(1) }

func setup(t *testing.T, cfg Config) (*gin.Engine, *Set, *atomic.Int32, *rejections) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	status := &atomic.Int32{}
	status.Store(http.StatusOK)
	rec := &rejections{}
	set := New(cfg, rec, logger.NewForTests())
	r := gin.New()
	r.Use(gin.Recovery(), set.Middleware())
	r.GET("/work", func(c *gin.Context) { c.Status(int(status.Load())) })
	r.GET("/other", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/panic", func(*gin.Context) { panic("boom") })
	return r, set, status, rec
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	return w
}

func TestBreaker(t *testing.T) {
	t.Run("Should open after consecutive failures and reject", func(t *testing.T) {
		r, set, status, rec := setup(t, Config{FailureThreshold: 2, RecoveryTime: time.Minute})
		status.Store(http.StatusInternalServerError)
		assert.Equal(t, http.StatusInternalServerError, get(r, "/work").Code)
		assert.Equal(t, gobreaker.StateClosed, set.State("/work"))
		assert.Equal(t, http.StatusInternalServerError, get(r, "/work").Code)
		assert.Equal(t, gobreaker.StateOpen, set.State("/work"))

		status.Store(http.StatusOK)
		res := get(r, "/work")
		require.Equal(t, http.StatusServiceUnavailable, res.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
		assert.Equal(t, "Circuit breaker is open, please retry later.", body["detail"])
		retryAt, ok := body["retry_at"].(float64)
		require.True(t, ok)
		assert.Greater(t, retryAt, float64(time.Now().Unix()))
		assert.NotEmpty(t, res.Header().Get("Retry-After"))
		assert.EqualValues(t, 1, rec.n.Load())
	})

	t.Run("Should keep routes independent", func(t *testing.T) {
		r, _, status, _ := setup(t, Config{FailureThreshold: 1, RecoveryTime: time.Minute})
		status.Store(http.StatusInternalServerError)
		get(r, "/work")
		assert.Equal(t, http.StatusServiceUnavailable, get(r, "/work").Code)
		assert.Equal(t, http.StatusOK, get(r, "/other").Code)
	})

	t.Run("Should reset the failure count on success", func(t *testing.T) {
		r, set, status, _ := setup(t, Config{FailureThreshold: 2, RecoveryTime: time.Minute})
		status.Store(http.StatusInternalServerError)
		get(r, "/work")
		status.Store(http.StatusOK)
		get(r, "/work")
		status.Store(http.StatusInternalServerError)
		get(r, "/work")
		assert.Equal(t, gobreaker.StateClosed, set.State("/work"))
	})

	t.Run("Should close after the recovery time", func(t *testing.T) {
		r, set, status, _ := setup(t, Config{FailureThreshold: 1, RecoveryTime: 50 * time.Millisecond})
		status.Store(http.StatusInternalServerError)
		get(r, "/work")
		require.Equal(t, gobreaker.StateOpen, set.State("/work"))
		time.Sleep(80 * time.Millisecond)
		assert.Equal(t, gobreaker.StateClosed, set.State("/work"))
		status.Store(http.StatusOK)
		assert.Equal(t, http.StatusOK, get(r, "/work").Code)
	})

	t.Run("Should restart the failure count after recovery", func(t *testing.T) {
		r, set, status, _ := setup(t, Config{FailureThreshold: 3, RecoveryTime: 50 * time.Millisecond})
		status.Store(http.StatusInternalServerError)
		for range 3 {
			assert.Equal(t, http.StatusInternalServerError, get(r, "/work").Code)
		}
		require.Equal(t, http.StatusServiceUnavailable, get(r, "/work").Code)
		time.Sleep(80 * time.Millisecond)

		assert.Equal(t, http.StatusInternalServerError, get(r, "/work").Code)
		assert.Equal(t, gobreaker.StateClosed, set.State("/work"))
		status.Store(http.StatusOK)
		assert.Equal(t, http.StatusOK, get(r, "/work").Code)

		status.Store(http.StatusInternalServerError)
		for range 2 {
			get(r, "/work")
		}
		assert.Equal(t, gobreaker.StateClosed, set.State("/work"))
		get(r, "/work")
		assert.Equal(t, gobreaker.StateOpen, set.State("/work"))
	})

	t.Run("Should pass concurrent requests after recovery", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		set := New(Config{FailureThreshold: 1, RecoveryTime: 50 * time.Millisecond}, nil, logger.NewForTests())
		var calls atomic.Int32
		started := make(chan struct{})
		release := make(chan struct{})
		r := gin.New()
		r.Use(set.Middleware())
		r.GET("/slow", func(c *gin.Context) {
			switch calls.Add(1) {
			case 1:
				c.Status(http.StatusInternalServerError)
			case 2:
				close(started)
				<-release
				c.Status(http.StatusOK)
			default:
				c.Status(http.StatusOK)
			}
		})
		require.Equal(t, http.StatusInternalServerError, get(r, "/slow").Code)
		require.Equal(t, http.StatusServiceUnavailable, get(r, "/slow").Code)
		time.Sleep(80 * time.Millisecond)

		slow := make(chan int, 1)
		go func() { slow <- get(r, "/slow").Code }()
		<-started
		assert.Equal(t, http.StatusOK, get(r, "/slow").Code)
		close(release)
		assert.Equal(t, http.StatusOK, <-slow)
	})

	t.Run("Should count panics as failures", func(t *testing.T) {
		r, set, _, _ := setup(t, Config{FailureThreshold: 1, RecoveryTime: time.Minute})
		assert.Equal(t, http.StatusInternalServerError, get(r, "/panic").Code)
		assert.Equal(t, gobreaker.StateOpen, set.State("/panic"))
	})
}
