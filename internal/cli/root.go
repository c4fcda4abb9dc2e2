package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"jcert-quiz-service/internal/config"
	"jcert-quiz-service/internal/logging"
)

var (
	port       string
	configPath string
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:           "quiz-service",
		Short:         "Timed quiz taking, scoring and result review",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&port, "port", "", "port to listen on (overrides server.port and PORT)")
	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	cmd.AddCommand(NewStartCmd(&configPath, &port))
	cmd.AddCommand(NewMigrateCmd(&configPath))
	cmd.AddCommand(NewSeedCmd(&configPath))
	cmd.AddCommand(NewTokenCmd(&configPath))
	return cmd
}

// loadRuntime reads config and builds the root logger every command shares.
func loadRuntime(path string) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	return cfg, logging.New(cfg.Log.Level, cfg.Log.Format), nil
}
