package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/Druk83/TrainingGround/engine/explanation"
	"github.com/Druk83/TrainingGround/engine/fallback"
	"github.com/Druk83/TrainingGround/engine/featureflag"
	"github.com/Druk83/TrainingGround/engine/infra/cache"
	"github.com/Druk83/TrainingGround/engine/infra/monitoring"
	"github.com/Druk83/TrainingGround/engine/infra/postgres"
	"github.com/Druk83/TrainingGround/engine/infra/server/appstate"
	"github.com/Druk83/TrainingGround/engine/infra/stream"
	"github.com/Druk83/TrainingGround/engine/knowledge/embedder"
	"github.com/Druk83/TrainingGround/engine/knowledge/vectordb"
	"github.com/Druk83/TrainingGround/engine/llm"
	"github.com/Druk83/TrainingGround/engine/retrieval"
	"github.com/Druk83/TrainingGround/engine/template"
	"github.com/Druk83/TrainingGround/engine/worker/embedding"
	"github.com/Druk83/TrainingGround/engine/worker/maintenance"
	"github.com/Druk83/TrainingGround/pkg/config"
	"github.com/Druk83/TrainingGround/pkg/logger"
)

// Stores holds the connections every entry point needs.
type Stores struct {
	Redis    *cache.Redis
	Postgres *postgres.Store
	Content  *postgres.ContentRepo
}

// OpenStores connects to Redis and Postgres and applies migrations when enabled.
// Connection failures are fatal.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	log := logger.FromContext(ctx)
	rds, err := cache.NewRedis(ctx, cache.FromAppConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	if cfg.Postgres.AutoMigrate {
		if err := postgres.ApplyMigrationsWithLock(ctx, cfg.Postgres.DSN); err != nil {
			_ = rds.Close()
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		log.Debug("Database migrations applied")
	}
	pg, err := postgres.NewStore(ctx, &cfg.Postgres)
	if err != nil {
		_ = rds.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &Stores{Redis: rds, Postgres: pg, Content: postgres.NewContentRepo(pg.Pool())}, nil
}

func (s *Stores) Close(ctx context.Context) error {
	var errs []error
	if s.Postgres != nil {
		errs = append(errs, s.Postgres.Close(ctx))
	}
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	return errors.Join(errs...)
}

// Indexing bundles the vector index, the embedder and the rule indexer.
type Indexing struct {
	Store    vectordb.Store
	Embedder *embedder.Adapter
	Indexer  *embedding.Indexer
}

// OpenIndexing prepares the rule vector index. A collection that cannot be
// ensured is logged; searches then fail and retrieval falls back to local context.
func OpenIndexing(ctx context.Context, cfg *config.Config, repo *postgres.ContentRepo) (*Indexing, error) {
	log := logger.FromContext(ctx)
	emb, err := embedder.New(embedder.FromAppConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to build embedder: %w", err)
	}
	store, err := vectordb.New(&cfg.Vector)
	if err != nil {
		return nil, fmt.Errorf("failed to build vector store: %w", err)
	}
	if err := store.EnsureCollection(ctx); err != nil {
		log.Warn("Vector collection unavailable, retrieval will use local context",
			"provider", cfg.Vector.Provider, "collection", cfg.Vector.Collection, "error", err)
	}
	return &Indexing{
		Store:    store,
		Embedder: emb,
		Indexer:  embedding.NewIndexer(repo, emb, store, cfg.Vector.BatchSize),
	}, nil
}

type dependencies struct {
	stores     *Stores
	indexing   *Indexing
	monitoring *monitoring.Service
	metrics    *monitoring.ExplanationMetrics
	state      *appstate.State
	worker     *embedding.Worker
	scheduler  *maintenance.Scheduler
}

func (s *Server) setupDependencies() (*dependencies, error) {
	ctx := s.ctx
	cfg := s.cfg
	mon, err := monitoring.NewService(ctx)
	if err != nil {
		return nil, err
	}
	metrics, err := monitoring.NewExplanationMetrics(mon.Meter())
	if err != nil {
		return nil, err
	}
	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	deps := &dependencies{stores: stores, monitoring: mon, metrics: metrics}
	indexing, err := OpenIndexing(ctx, cfg, stores.Content)
	if err != nil {
		s.closeDependencies(deps)
		return nil, err
	}
	deps.indexing = indexing
	client := stores.Redis.Client()

	explanations := buildExplanationService(ctx, cfg, stores, indexing, metrics)
	templates := template.NewService(stores.Content, client, nil, template.Config{
		InstanceTTL: cfg.Templates.InstanceTTL,
		SeenTTL:     cfg.Templates.SeenTTL,
		Limit:       cfg.Templates.GenerationLimit,
	})
	state, err := appstate.NewState(cfg, explanations, templates)
	if err != nil {
		s.closeDependencies(deps)
		return nil, fmt.Errorf("failed to create app state: %w", err)
	}
	deps.state = state

	changes, err := stream.NewRedisStream(client, stream.OptionsFromConfig(&cfg.Stream))
	if err != nil {
		s.closeDependencies(deps)
		return nil, fmt.Errorf("failed to open change stream: %w", err)
	}
	deps.worker = embedding.NewWorker(changes, indexing.Indexer, metrics, cfg.Stream.IdleSleep)
	deps.scheduler = maintenance.NewScheduler(maintenance.Config{
		SnapshotCron:      cfg.Maintenance.SnapshotCron,
		SnapshotRetention: cfg.Maintenance.SnapshotRetention,
		BacklogInterval:   cfg.Maintenance.BacklogInterval,
	}, indexing.Store, changes, metrics)
	return deps, nil
}

func buildExplanationService(
	ctx context.Context,
	cfg *config.Config,
	stores *Stores,
	indexing *Indexing,
	metrics *monitoring.ExplanationMetrics,
) *explanation.Service {
	client := stores.Redis.Client()
	deps := explanation.Deps{
		Cache:     explanation.NewCache(client, cfg.Cache.ExplanationTTL),
		Flags:     featureflag.NewReader(client, postgres.NewFlagRepo(stores.Postgres.Pool()), cfg.Cache.FlagTTL),
		Retriever: retrieval.NewRetriever(stores.Content, indexing.Embedder, indexing.Store, nil, cfg.Vector.SearchLimit),
		Fallback:  fallback.NewResolver(stores.Content),
		Content:   stores.Content,
		Metrics:   metrics,
	}
	generator := llm.NewClient(llm.FromAppConfig(&cfg.LLM))
	if generator.Configured() {
		deps.Generator = generator
	} else {
		logger.FromContext(ctx).Warn("YandexGPT credentials missing, explanations will use static fallbacks")
	}
	return explanation.NewService(deps, explanation.Options{
		CacheEnabled:      cfg.Cache.Enabled,
		LLMEnabledDefault: cfg.LLM.EnabledDefault,
		DefaultLanguage:   cfg.Runtime.LanguageDefault,
	})
}

// closeDependencies releases clients after the HTTP server and background tasks stopped.
func (s *Server) closeDependencies(deps *dependencies) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), dependencyCloseTimeout)
	defer cancel()
	log := logger.FromContext(ctx)
	if deps.indexing != nil {
		if err := deps.indexing.Store.Close(ctx); err != nil {
			log.Warn("Failed to close vector store", "error", err)
		}
	}
	if deps.stores != nil {
		if err := deps.stores.Close(ctx); err != nil {
			log.Warn("Failed to close stores", "error", err)
		}
	}
	if deps.monitoring != nil {
		if err := deps.monitoring.Shutdown(ctx); err != nil {
			log.Warn("Failed to shut down monitoring", "error", err)
		}
	}
}
