package monitoring

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ExplanationMetrics holds the service level instruments.
type ExplanationMetrics struct {
	cacheHits        metric.Int64Counter
	cacheMisses      metric.Int64Counter
	generationErrors metric.Int64Counter
	rateLimited      metric.Int64Counter
	breakerRejected  metric.Int64Counter
	backlog          atomic.Int64
}

func NewExplanationMetrics(meter metric.Meter) (*ExplanationMetrics, error) {
	m := &ExplanationMetrics{}
	var err error
	if m.cacheHits, err = meter.Int64Counter(
		"explanation_cache_hits",
		metric.WithDescription("Explanation responses served from cache"),
	); err != nil {
		return nil, fmt.Errorf("create cache hits counter: %w", err)
	}
	if m.cacheMisses, err = meter.Int64Counter(
		"explanation_cache_misses",
		metric.WithDescription("Explanation cache lookups without a usable entry"),
	); err != nil {
		return nil, fmt.Errorf("create cache misses counter: %w", err)
	}
	if m.generationErrors, err = meter.Int64Counter(
		"explanation_yandexgpt_errors",
		metric.WithDescription("Failed generation attempts by reason"),
	); err != nil {
		return nil, fmt.Errorf("create generation errors counter: %w", err)
	}
	if m.rateLimited, err = meter.Int64Counter(
		"rate_limit_blocks",
		metric.WithDescription("Requests rejected by the rate limiter"),
	); err != nil {
		return nil, fmt.Errorf("create rate limit counter: %w", err)
	}
	if m.breakerRejected, err = meter.Int64Counter(
		"circuit_breaker_rejections",
		metric.WithDescription("Requests short-circuited by an open breaker"),
	); err != nil {
		return nil, fmt.Errorf("create breaker counter: %w", err)
	}
	if _, err = meter.Int64ObservableGauge(
		"explanation_content_changes_lag",
		metric.WithDescription("Entries in the content change stream"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.backlog.Load())
			return nil
		}),
	); err != nil {
		return nil, fmt.Errorf("create backlog gauge: %w", err)
	}
	return m, nil
}

func (m *ExplanationMetrics) CacheHit(ctx context.Context) {
	m.cacheHits.Add(ctx, 1)
}

func (m *ExplanationMetrics) CacheMiss(ctx context.Context) {
	m.cacheMisses.Add(ctx, 1)
}

func (m *ExplanationMetrics) GenerationError(ctx context.Context, reason string) {
	m.generationErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *ExplanationMetrics) RateLimited(ctx context.Context, route string) {
	m.rateLimited.Add(ctx, 1, metric.WithAttributes(attribute.String("route", route)))
}

func (m *ExplanationMetrics) BreakerRejected(ctx context.Context, route string) {
	m.breakerRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("route", route)))
}

// RecordBacklog stores the latest stream length for the next scrape.
func (m *ExplanationMetrics) RecordBacklog(n int64) {
	m.backlog.Store(n)
}

func (m *ExplanationMetrics) Backlog() int64 {
	return m.backlog.Load()
}
