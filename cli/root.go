package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Druk83/TrainingGround/pkg/config"
	"github.com/Druk83/TrainingGround/pkg/logger"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "trainingground",
		Short:         "Explanation service for the TrainingGround exercise platform",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return SetupGlobalConfig(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.String("log-level", "", "Log level (debug, info, warn, error); defaults to LOG_LEVEL")
	flags.Bool("log-json", false, "Emit logs as JSON")
	flags.Bool("log-source", false, "Include source locations in logs")
	flags.String("env-file", ".env", "Path to a .env file loaded before the environment")

	root.AddCommand(
		ServeCmd(),
		RebuildEmbeddingsCmd(),
	)
	return root
}

// SetupGlobalConfig loads configuration, installs the logger and attaches both
// to the command context.
func SetupGlobalConfig(cmd *cobra.Command) error {
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return fmt.Errorf("failed to get env-file flag: %w", err)
	}
	cfg, err := config.Load(config.LoadOptions{EnvFile: envFile})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	level, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return err
	}
	if level == "" {
		level = cfg.Runtime.LogLevel
	} else {
		cfg.Runtime.LogLevel = level
	}
	log := logger.SetupLogger(level, logJSON, logSource)
	ctx := logger.ContextWithLogger(cmd.Context(), log)
	ctx = config.ContextWithConfig(ctx, cfg)
	cmd.SetContext(ctx)
	return nil
}
