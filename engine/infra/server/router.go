package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"

	exprouter "github.com/Druk83/TrainingGround/engine/explanation/router"
	"github.com/Druk83/TrainingGround/engine/infra/monitoring"
	monmiddleware "github.com/Druk83/TrainingGround/engine/infra/monitoring/middleware"
	"github.com/Druk83/TrainingGround/engine/infra/server/appstate"
	"github.com/Druk83/TrainingGround/engine/infra/server/middleware/breaker"
	"github.com/Druk83/TrainingGround/engine/infra/server/middleware/ratelimit"
	"github.com/Druk83/TrainingGround/engine/infra/server/routes"
	tplrouter "github.com/Druk83/TrainingGround/engine/template/router"
	"github.com/Druk83/TrainingGround/pkg/logger"
)

// RouterDeps are the collaborators of the HTTP router. Optional fields may be nil.
type RouterDeps struct {
	State  *appstate.State
	Logger logger.Logger
	// Redis backs the rate limiter; nil selects the in-process store.
	Redis          redis.UniversalClient
	Meter          metric.Meter
	Metrics        *monitoring.ExplanationMetrics
	MetricsHandler http.Handler
}

// NewRouter assembles the gin engine. Operational endpoints bypass the rate
// limiter and circuit breaker; API routes run through both.
func NewRouter(deps RouterDeps) (*gin.Engine, error) {
	if deps.State == nil {
		return nil, fmt.Errorf("app state is required")
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewForTests()
	}
	cfg := deps.State.Config
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(log))
	if deps.Meter != nil {
		latency, err := monmiddleware.HTTPMetrics(deps.Meter)
		if err != nil {
			return nil, err
		}
		r.Use(latency)
	}
	r.GET(routes.Health(), healthHandler)
	if deps.MetricsHandler != nil {
		r.GET(routes.Metrics(), gin.WrapH(deps.MetricsHandler))
	}

	limiter, err := ratelimit.NewManager(ratelimit.FromAppConfig(cfg), deps.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rate limiting: %w", err)
	}
	var breakerRecorder breaker.Recorder
	if deps.Metrics != nil {
		limiter.WithRecorder(deps.Metrics)
		breakerRecorder = deps.Metrics
	}
	breakers := breaker.New(breaker.FromAppConfig(cfg), breakerRecorder, log)

	api := r.Group("", limiter.Middleware(), breakers.Middleware(), appstate.StateMiddleware(deps.State))
	exprouter.Register(api.Group(routes.Explanations()))
	tplrouter.Register(api.Group(routes.Internal()))

	driver := "memory"
	if deps.Redis != nil {
		driver = "redis"
	}
	log.Info("Router initialized",
		"rate_limit_driver", driver,
		"rate_limit", cfg.RateLimit.Limit,
		"rate_window", cfg.RateLimit.Window,
		"breaker_threshold", cfg.Circuit.FailureThreshold,
	)
	return r, nil
}
