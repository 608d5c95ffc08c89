package monitoring

import (
	"context"
	"fmt"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Druk83/TrainingGround/pkg/logger"
)

const meterName = "explanation_service"

// Service owns the OpenTelemetry meter provider and its Prometheus exporter.
type Service struct {
	meter    metric.Meter
	provider *sdkmetric.MeterProvider
	registry *prom.Registry
}

// NewService creates a meter provider exporting into a dedicated Prometheus registry.
func NewService(ctx context.Context) (*Service, error) {
	registry := prom.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry), prometheus.WithoutScopeInfo())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	logger.FromContext(ctx).Debug("Monitoring service initialized")
	return &Service{
		meter:    provider.Meter(meterName),
		provider: provider,
		registry: registry,
	}, nil
}

func (s *Service) Meter() metric.Meter {
	return s.meter
}

// ExporterHandler serves the Prometheus text exposition.
func (s *Service) ExporterHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

func (s *Service) Shutdown(ctx context.Context) error {
	return s.provider.Shutdown(ctx)
}
