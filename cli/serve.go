package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Druk83/TrainingGround/engine/infra/server"
	"github.com/Druk83/TrainingGround/pkg/config"
	"github.com/Druk83/TrainingGround/pkg/logger"
)

func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Run the HTTP API with the embedding sync worker and maintenance jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)
			logger.FromContext(ctx).Info("Starting explanation service",
				"env", cfg.Runtime.Env,
				"host", cfg.Server.Host,
				"port", cfg.Server.Port,
				"redis_mode", cfg.Redis.Mode,
				"vector_provider", cfg.Vector.Provider,
				"embedding_provider", cfg.Embedding.Provider,
			)
			srv, err := server.NewServer(ctx)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}
			return srv.Run()
		},
	}
}
