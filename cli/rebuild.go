package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Druk83/TrainingGround/engine/core"
	"github.com/Druk83/TrainingGround/engine/infra/server"
	"github.com/Druk83/TrainingGround/engine/infra/stream"
	"github.com/Druk83/TrainingGround/engine/worker/embedding"
	"github.com/Druk83/TrainingGround/pkg/config"
	"github.com/Druk83/TrainingGround/pkg/logger"
)

func RebuildEmbeddingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild-embeddings",
		Short: "Re-embed every rule into the vector index",
		Long: "Re-embed every rule into the vector index. With --async, publish an updated " +
			"change event per rule and let the running sync worker do the indexing.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			async, err := cmd.Flags().GetBool("async")
			if err != nil {
				return fmt.Errorf("failed to get async flag: %w", err)
			}
			return runRebuild(cmd.Context(), async)
		},
	}
	cmd.Flags().Bool("async", false, "Enqueue change events instead of indexing in-process")
	return cmd
}

func runRebuild(ctx context.Context, async bool) error {
	cfg := config.FromContext(ctx)
	log := logger.FromContext(ctx).With("component", "rebuild_embeddings")
	stores, err := server.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Failed to close stores", "error", err)
		}
	}()
	if async {
		changes, err := stream.NewRedisStream(stores.Redis.Client(), stream.OptionsFromConfig(&cfg.Stream))
		if err != nil {
			return err
		}
		version := "rebuild-" + core.NewRequestID()
		n, err := embedding.EnqueueRebuild(ctx, stores.Content, changes, cfg.Vector.BatchSize, version)
		if err != nil {
			return fmt.Errorf("enqueued %d rules before failing: %w", n, err)
		}
		log.Info("Rebuild enqueued", "rules", n, "stream", changes.Name(), "version", version)
		return nil
	}
	indexing, err := server.OpenIndexing(ctx, cfg, stores.Content)
	if err != nil {
		return err
	}
	defer func() {
		if err := indexing.Store.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Failed to close vector store", "error", err)
		}
	}()
	n, err := indexing.Indexer.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("indexed %d rules before failing: %w", n, err)
	}
	log.Info("Rebuild completed", "rules", n, "collection", cfg.Vector.Collection)
	return nil
}
