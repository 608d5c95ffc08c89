package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/Druk83/TrainingGround/pkg/config"
	"github.com/Druk83/TrainingGround/pkg/logger"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	dependencyCloseTimeout = 5 * time.Second
	httpReadTimeout        = 15 * time.Second
	httpWriteTimeout       = 15 * time.Second
	httpIdleTimeout        = 60 * time.Second
)

type Server struct {
	cfg    *config.Config
	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer(ctx context.Context) (*Server, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return nil, fmt.Errorf("configuration missing from context; attach it with config.ContextWithConfig")
	}
	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{cfg: cfg, ctx: serverCtx, cancel: cancel}, nil
}

// Run serves HTTP and runs the embedding worker and maintenance scheduler until
// SIGINT/SIGTERM or a fatal error. Shutdown drains HTTP first, then stops the
// background tasks, then closes the store clients.
func (s *Server) Run() error {
	defer s.cancel()
	log := logger.FromContext(s.ctx).With("component", "server")
	deps, err := s.setupDependencies()
	if err != nil {
		return err
	}
	defer s.closeDependencies(deps)

	gin.SetMode(gin.ReleaseMode)
	router, err := NewRouter(RouterDeps{
		State:          deps.state,
		Logger:         logger.FromContext(s.ctx),
		Redis:          deps.stores.Redis.Client(),
		Meter:          deps.monitoring.Meter(),
		Metrics:        deps.metrics,
		MetricsHandler: deps.monitoring.ExporterHandler(),
	})
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}
	srv := s.createHTTPServer(router)

	sigCtx, stop := signal.NotifyContext(s.ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	bgCtx, cancelBackground := context.WithCancel(s.ctx)
	defer cancelBackground()

	background, bgCtx := errgroup.WithContext(bgCtx)
	background.Go(func() error { return deps.worker.Run(bgCtx) })
	background.Go(func() error { return deps.scheduler.Run(bgCtx) })

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", "http://"+srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-sigCtx.Done():
		log.Debug("Received shutdown signal, initiating graceful shutdown")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server failed: %w", err)
	case <-bgCtx.Done():
		log.Error("Background task stopped unexpectedly")
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("server shutdown failed: %w", err))
	}
	cancelBackground()
	if err := background.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		runErr = errors.Join(runErr, fmt.Errorf("background task failed: %w", err))
	}
	if runErr == nil {
		log.Info("Server shutdown completed successfully")
	}
	return runErr
}

func (s *Server) createHTTPServer(handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port)),
		Handler:      handler,
		ReadTimeout:  httpReadTimeout,
		WriteTimeout: httpWriteTimeout,
		IdleTimeout:  httpIdleTimeout,
	}
}
