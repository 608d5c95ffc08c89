// Package breaker isolates failing routes: after a run of consecutive server errors
// a route is rejected with 503 until the recovery time elapses. Once it does, the
// route is closed again with a zeroed failure count.
package breaker

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"

	"github.com/Druk83/TrainingGround/pkg/config"
	"github.com/Druk83/TrainingGround/pkg/logger"
)

const openDetail = "Circuit breaker is open, please retry later."

type Config struct {
	FailureThreshold uint32
	RecoveryTime     time.Duration
}

func FromAppConfig(cfg *config.Config) Config {
	return Config{FailureThreshold: cfg.Circuit.FailureThreshold, RecoveryTime: cfg.Circuit.RecoveryTime}
}

// Recorder counts rejected requests.
type Recorder interface {
	BreakerRejected(ctx context.Context, route string)
}

type route struct {
	mu sync.Mutex
	cb *gobreaker.TwoStepCircuitBreaker
	// openUntil is unix nanoseconds; zero while closed.
	openUntil atomic.Int64
}

func (r *route) retryAt(now time.Time) time.Time {
	if until := r.openUntil.Load(); until > now.UnixNano() {
		return time.Unix(0, until)
	}
	return now
}

// Set keeps one breaker per request path.
type Set struct {
	cfg      Config
	routes   sync.Map
	recorder Recorder
	log      logger.Logger
	now      func() time.Time
}

func New(cfg Config, recorder Recorder, log logger.Logger) *Set {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 4
	}
	if cfg.RecoveryTime <= 0 {
		cfg.RecoveryTime = 20 * time.Second
	}
	if log == nil {
		log = logger.FromContext(context.Background())
	}
	return &Set{cfg: cfg, recorder: recorder, log: log.With("component", "circuit_breaker"), now: time.Now}
}

func (s *Set) route(key string) *route {
	if v, ok := s.routes.Load(key); ok {
		return v.(*route)
	}
	r := &route{}
	r.cb = s.newBreaker(key, r)
	actual, _ := s.routes.LoadOrStore(key, r)
	return actual.(*route)
}

func (s *Set) newBreaker(key string, r *route) *gobreaker.TwoStepCircuitBreaker {
	return gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:    key,
		Timeout: s.cfg.RecoveryTime,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to != gobreaker.StateOpen {
				return
			}
			r.openUntil.Store(s.now().Add(s.cfg.RecoveryTime).UnixNano())
			s.log.Warn("Circuit breaker opened", "route", name, "recovery", s.cfg.RecoveryTime)
		},
	})
}

// breaker returns the live breaker of the route. A breaker whose open window has
// elapsed is replaced by a fresh closed one instead of going half-open, so all
// traffic passes and failures count toward the threshold from zero.
func (s *Set) breaker(key string) (*route, *gobreaker.TwoStepCircuitBreaker) {
	r := s.route(key)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cb.State() == gobreaker.StateHalfOpen {
		r.cb = s.newBreaker(key, r)
		r.openUntil.Store(0)
		s.log.Info("Circuit breaker closed", "route", key)
	}
	return r, r.cb
}

// State reports the breaker state of a path, for diagnostics and tests.
func (s *Set) State(path string) gobreaker.State {
	_, cb := s.breaker(path)
	return cb.State()
}

// Middleware wraps each request. Responses with status >= 500 and panics count
// as failures; panics are re-raised for the recovery middleware.
func (s *Set) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Request.URL.Path
		r, cb := s.breaker(key)
		done, err := cb.Allow()
		if errors.Is(err, gobreaker.ErrTooManyRequests) {
			// the open window ended between lookup and Allow
			r, cb = s.breaker(key)
			done, err = cb.Allow()
		}
		if err != nil {
			if !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
				c.Next()
				return
			}
			s.reject(c, r, key)
			return
		}
		success := false
		defer func() {
			if rec := recover(); rec != nil {
				done(false)
				panic(rec)
			}
			done(success)
		}()
		c.Next()
		success = c.Writer.Status() < http.StatusInternalServerError
	}
}

func (s *Set) reject(c *gin.Context, r *route, key string) {
	now := s.now()
	retryAt := r.retryAt(now)
	wait := max(int64(retryAt.Sub(now).Seconds()+0.999), 1)
	if s.recorder != nil {
		s.recorder.BreakerRejected(c.Request.Context(), key)
	}
	c.Header("Retry-After", strconv.FormatInt(wait, 10))
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
		"detail":   openDetail,
		"retry_at": float64(retryAt.UnixMilli()) / 1000,
	})
}
