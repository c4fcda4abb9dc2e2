package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"jcert-quiz-service/internal/app"
	"jcert-quiz-service/internal/infra/postgres"
	"jcert-quiz-service/internal/seed"
)

// NewSeedCmd loads a YAML fixture into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load courses, quizzes and questions from a YAML fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "fixture path (defaults to seed.path, then the built-in sample)")
	return cmd
}

func runSeed(ctx context.Context, configPath, file string) error {
	cfg, log, err := loadRuntime(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured; the in-memory store is seeded on start")
	}
	if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
		return err
	}
	if file == "" {
		file = cfg.Seed.Path
	}

	fixture, err := seed.Load(file)
	if err != nil {
		return err
	}

	db := openBun(cfg.Postgres.URL)
	defer db.Close()

	// definition caches expire on their own TTL; nothing to invalidate for new quizzes
	catalog := app.NewCatalogService(postgres.NewQuestionBank(db), nil, log)
	return seed.Apply(ctx, catalog, fixture, log)
}
