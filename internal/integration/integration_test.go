package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"jcert-quiz-service/internal/app"
	"jcert-quiz-service/internal/domain"
	"jcert-quiz-service/internal/infra/postgres"
	pgmigrations "jcert-quiz-service/internal/infra/postgres/migrations"
	infraredis "jcert-quiz-service/internal/infra/redis"
	"jcert-quiz-service/internal/seed"
)

func TestSubmitAndReviewEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := migrateDB(t, ctx, pgURL)
	defer db.Close()

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	log := zerolog.Nop()
	loader := postgres.NewQuizLoader(pool)
	cache := infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute, log)
	catalog := app.NewCatalogService(postgres.NewQuestionBank(db), cache, log)
	service := app.NewQuizService(cache, loader, postgres.NewResultStore(pool),
		app.WithFeed(infraredis.NewFeed(redisClient, "", log)),
		app.WithLogger(log),
	)

	fixture, err := seed.Load("")
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	if err := seed.Apply(ctx, catalog, fixture, log); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// first course on a fresh database
	quizzes, err := catalog.ListCourseQuizzes(ctx, 1)
	if err != nil {
		t.Fatalf("list quizzes: %v", err)
	}
	if len(quizzes) != 2 {
		t.Fatalf("expected 2 quizzes, got %+v", quizzes)
	}
	hiragana, particles := quizzes[0], quizzes[1]
	if hiragana.TotalQuestions != 3 || particles.TotalQuestions != 2 {
		t.Fatalf("question counts not maintained: %+v", quizzes)
	}

	view, err := service.LoadQuizForTaking(ctx, hiragana.ID)
	if err != nil {
		t.Fatalf("load quiz: %v", err)
	}
	if len(view.Questions) != 3 || view.PassScore != 60 {
		t.Fatalf("unexpected view: %+v", view)
	}

	events, cancel, err := service.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	questions, err := catalog.ListQuestions(ctx, hiragana.ID)
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	result, err := service.Submit(ctx, domain.Submission{
		QuizID: hiragana.ID,
		UserID: 7,
		Answers: map[int64]string{
			questions[0].ID: "a",
			questions[1].ID: "ki",
			questions[2].ID: "D",
		},
		TimeTaken: 42,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.CorrectAnswers != 2 || !result.Passed || result.TimeTaken != 42 {
		t.Fatalf("unexpected result: %+v", result)
	}

	select {
	case ev := <-events:
		if ev.ResultID != result.ID || ev.UserID != 7 {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no result event received")
	}

	history, err := service.ListResults(ctx, 7)
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if len(history) != 1 || history[0].QuizTitle != "Hiragana basics" || history[0].CourseLevel != "N5" {
		t.Fatalf("unexpected history: %+v", history)
	}

	detail, err := service.GetResultDetail(ctx, result.ID, 7)
	if err != nil {
		t.Fatalf("result detail: %v", err)
	}
	if len(detail.Answers) != 3 {
		t.Fatalf("expected 3 review items, got %+v", detail.Answers)
	}
	if got := detail.Answers[1]; got.UserAnswer != "B" || got.UserAnswerText != "ki" || !got.IsCorrect {
		t.Fatalf("answer text should normalize to its letter: %+v", got)
	}
	if got := detail.Answers[2]; got.IsCorrect || got.CorrectAnswerText != "su" {
		t.Fatalf("unexpected third review item: %+v", got)
	}

	if _, err := service.GetResultDetail(ctx, result.ID, 8); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("another user's result should read as missing, got %v", err)
	}

	if err := catalog.DeleteQuiz(ctx, hiragana.ID); err != nil {
		t.Fatalf("delete quiz: %v", err)
	}
	if _, err := service.GetResultDetail(ctx, result.ID, 7); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("results should cascade with the quiz, got %v", err)
	}
	if _, err := service.LoadQuizForTaking(ctx, hiragana.ID); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("deleted quiz should not be served from cache, got %v", err)
	}
}

func TestQuestionEditsRecountAndInvalidate(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	db := migrateDB(t, ctx, pgURL)
	defer db.Close()

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	bank := postgres.NewQuestionBank(db)
	catalog := app.NewCatalogService(bank, nil, zerolog.Nop())
	loader := postgres.NewQuizLoader(pool)

	course, err := catalog.CreateCourse(ctx, domain.Course{Title: "JLPT N3 Grammar", Level: "N3"})
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	quiz, err := catalog.CreateQuiz(ctx, domain.QuizInput{CourseID: course.ID, Title: "Conditionals"})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	if quiz.TimeLimit != app.DefaultTimeLimit || quiz.PassScore != app.DefaultPassScore {
		t.Fatalf("defaults not applied: %+v", quiz)
	}

	q, err := catalog.AddQuestion(ctx, quiz.ID, domain.QuestionInput{
		Text:          "雨が降ったら、___。",
		Options:       []string{"行きません", "行きました", "行った"},
		CorrectAnswer: "行きません",
	})
	if err != nil {
		t.Fatalf("add question: %v", err)
	}
	if q.CorrectAnswer != "A" || q.Points != 1 || len(q.Options) != 4 {
		t.Fatalf("question not normalized: %+v", q)
	}

	loaded, err := loader.LoadQuiz(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("load quiz: %v", err)
	}
	if len(loaded.Questions) != 1 || loaded.Questions[0].Options[3] != "" {
		t.Fatalf("unexpected stored quiz: %+v", loaded)
	}

	if _, err := catalog.UpdateQuestion(ctx, q.ID, domain.QuestionInput{
		Text:          "雨が降ったら、___。",
		Options:       []string{"行きません", "行きました"},
		CorrectAnswer: "B",
		Points:        3,
	}); err != nil {
		t.Fatalf("update question: %v", err)
	}
	loaded, err = loader.LoadQuiz(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("reload quiz: %v", err)
	}
	if got := loaded.Questions[0]; got.CorrectAnswer != "B" || got.Points != 3 {
		t.Fatalf("update not persisted: %+v", got)
	}

	summaries, err := catalog.ListCourseQuizzes(ctx, course.ID)
	if err != nil {
		t.Fatalf("list quizzes: %v", err)
	}
	if summaries[0].TotalQuestions != 1 {
		t.Fatalf("expected count 1, got %+v", summaries[0])
	}

	if err := catalog.DeleteQuestion(ctx, q.ID); err != nil {
		t.Fatalf("delete question: %v", err)
	}
	summaries, err = catalog.ListCourseQuizzes(ctx, course.ID)
	if err != nil {
		t.Fatalf("list quizzes: %v", err)
	}
	if summaries[0].TotalQuestions != 0 {
		t.Fatalf("expected count 0 after delete, got %+v", summaries[0])
	}
	if err := catalog.DeleteQuestion(ctx, q.ID); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
	if _, err := catalog.CreateQuiz(ctx, domain.QuizInput{CourseID: course.ID + 100, Title: "Orphan"}); !errors.Is(err, domain.ErrCourseNotFound) {
		t.Fatalf("expected course not found, got %v", err)
	}
}

func TestResultWriteIsAtomic(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	db := migrateDB(t, ctx, pgURL)
	defer db.Close()

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	catalog := app.NewCatalogService(postgres.NewQuestionBank(db), nil, zerolog.Nop())
	quizID, questions := createTwoQuestionQuiz(t, ctx, catalog)
	store := postgres.NewResultStore(pool)

	// the repeated question id violates the user_answers primary key after the result row is inserted
	broken := domain.ScoreResult{
		QuizID:         quizID,
		TotalQuestions: 2,
		CorrectCount:   1,
		Details: []domain.AnswerDetail{
			{QuestionID: questions[0].ID, UserAnswer: "A", IsCorrect: true},
			{QuestionID: questions[0].ID, UserAnswer: "B", IsCorrect: false},
		},
	}
	if _, err := store.SaveResult(ctx, 9, broken, time.Now().UTC()); !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}

	history, err := store.ListResults(ctx, 9)
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("failed write left a result behind: %+v", history)
	}
	var orphans int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM quiz_results`).Scan(&orphans); err != nil {
		t.Fatalf("count results: %v", err)
	}
	if orphans != 0 {
		t.Fatalf("expected no result rows, got %d", orphans)
	}
}

func TestDeletedQuestionKeepsRecordedAnswers(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	db := migrateDB(t, ctx, pgURL)
	defer db.Close()

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	catalog := app.NewCatalogService(postgres.NewQuestionBank(db), nil, zerolog.Nop())
	quizID, questions := createTwoQuestionQuiz(t, ctx, catalog)
	store := postgres.NewResultStore(pool)

	score := domain.ScoreResult{
		QuizID:          quizID,
		TotalQuestions:  2,
		CorrectCount:    2,
		ScorePercentage: 100,
		Passed:          true,
		Details: []domain.AnswerDetail{
			{QuestionID: questions[0].ID, UserAnswer: "A", IsCorrect: true},
			{QuestionID: questions[1].ID, UserAnswer: "B", IsCorrect: true},
		},
	}
	id, err := store.SaveResult(ctx, 9, score, time.Now().UTC())
	if err != nil {
		t.Fatalf("save result: %v", err)
	}

	if err := catalog.DeleteQuestion(ctx, questions[0].ID); err != nil {
		t.Fatalf("delete question: %v", err)
	}

	detail, err := store.GetResultDetail(ctx, id, 9)
	if err != nil {
		t.Fatalf("result detail: %v", err)
	}
	if len(detail.Answers) != 1 || detail.Answers[0].QuestionID != questions[1].ID {
		t.Fatalf("expected only the surviving question in review, got %+v", detail.Answers)
	}
	if detail.CorrectAnswers != 2 || detail.TotalQuestions != 2 {
		t.Fatalf("result snapshot changed: %+v", detail.Result)
	}
	var kept int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM user_answers WHERE result_id = $1`, id).Scan(&kept); err != nil {
		t.Fatalf("count answers: %v", err)
	}
	if kept != 2 {
		t.Fatalf("expected recorded answers to be kept, got %d", kept)
	}
}

func createTwoQuestionQuiz(t *testing.T, ctx context.Context, catalog *app.CatalogService) (int64, []domain.Question) {
	t.Helper()
	course, err := catalog.CreateCourse(ctx, domain.Course{Title: "JLPT N5 Foundations", Level: "N5"})
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	quiz, err := catalog.CreateQuiz(ctx, domain.QuizInput{CourseID: course.ID, Title: "Katakana"})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	var questions []domain.Question
	for _, in := range []domain.QuestionInput{
		{Text: "ア", Options: []string{"a", "i"}, CorrectAnswer: "A"},
		{Text: "イ", Options: []string{"a", "i"}, CorrectAnswer: "B"},
	} {
		q, err := catalog.AddQuestion(ctx, quiz.ID, in)
		if err != nil {
			t.Fatalf("add question: %v", err)
		}
		questions = append(questions, q)
	}
	return quiz.ID, questions
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
