package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"jcert-quiz-service/internal/app"
	"jcert-quiz-service/internal/config"
	"jcert-quiz-service/internal/infra/memory"
	"jcert-quiz-service/internal/infra/postgres"
	rediscache "jcert-quiz-service/internal/infra/redis"
	"jcert-quiz-service/internal/seed"
	transport "jcert-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// quizCache is the learner-view cache; admin edits invalidate it.
type quizCache interface {
	app.QuizRepository
	app.CacheInvalidator
}

type stores struct {
	keys    app.AnswerKeyStore
	bank    app.QuestionBank
	results app.ResultRepository
	catalog *memory.Catalog // set only for the in-memory backend
	closers []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, log, err := loadRuntime(configPath)
	if err != nil {
		return err
	}

	auth, err := transport.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AdminRole)
	if err != nil {
		return fmt.Errorf("%w (set auth.jwt_secret or JWT_SECRET)", err)
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	backend, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backend.close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var (
		cache quizCache
		feed  app.ResultFeed
	)
	if redisClient != nil {
		cache = rediscache.NewQuizRepository(redisClient, backend.keys, config.TTLDuration(cfg.Redis.TTL, quizTTL), log)
		feed = rediscache.NewFeed(redisClient, cfg.Redis.Channel, log)
	} else {
		cache = memory.NewQuizRepository(backend.keys, quizTTL)
		feed = memory.NewFeed()
	}

	quizService := app.NewQuizService(cache, backend.keys, backend.results,
		app.WithFeed(feed),
		app.WithPassPolicy(app.PassPolicy{Fixed: cfg.Scoring.FixedPassThreshold}),
		app.WithTimeClamp(cfg.ClampTimeTaken()),
		app.WithLogger(log),
	)
	catalogService := app.NewCatalogService(backend.bank, cache, log)

	if backend.catalog != nil {
		fixture, err := seed.Load(cfg.Seed.Path)
		if err != nil {
			return err
		}
		if err := seed.Apply(ctx, catalogService, fixture, log); err != nil {
			return err
		}
	}

	router := transport.NewRouter(transport.RouterConfig{AllowedOrigins: cfg.CORS.Origins}, quizService, catalogService, auth, log)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openStores picks Postgres when a URL is configured and the in-memory catalog otherwise.
func openStores(ctx context.Context, cfg config.Config, log zerolog.Logger) (*stores, error) {
	if cfg.Postgres.URL == "" {
		log.Warn().Msg("postgres not configured, using in-memory store")
		catalog := memory.NewCatalog()
		results := memory.NewResultStore(catalog)
		catalog.OnQuizDeleted(results.PurgeQuiz)
		return &stores{keys: catalog, bank: catalog, results: results, catalog: catalog}, nil
	}

	if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
		return nil, err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, err
	}
	db := openBun(cfg.Postgres.URL)

	return &stores{
		keys:    postgres.NewQuizLoader(pool),
		bank:    postgres.NewQuestionBank(db),
		results: postgres.NewResultStore(pool),
		closers: []func(){pool.Close, func() { db.Close() }},
	}, nil
}
