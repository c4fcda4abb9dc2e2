package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"jcert-quiz-service/internal/app"
	"jcert-quiz-service/internal/domain"
	"jcert-quiz-service/internal/infra/memory"
)

type testEnv struct {
	server      *httptest.Server
	auth        *Authenticator
	catalog     *memory.Catalog
	courseID    int64
	quizID      int64
	emptyQuizID int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	catalog := memory.NewCatalog()
	results := memory.NewResultStore(catalog)
	catalog.OnQuizDeleted(results.PurgeQuiz)
	cache := memory.NewQuizRepository(catalog, time.Minute)

	quizzes := app.NewQuizService(cache, catalog, results, app.WithFeed(memory.NewFeed()))
	catalogService := app.NewCatalogService(catalog, cache, zerolog.Nop())

	auth, err := NewAuthenticator("test-secret", "jcert-test", "admin")
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}

	course, err := catalogService.CreateCourse(ctx, domain.Course{Title: "JLPT N5", Level: "N5"})
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	quiz, err := catalogService.CreateQuiz(ctx, domain.QuizInput{CourseID: course.ID, Title: "Particles", TimeLimit: 5, PassScore: 50})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	for _, in := range []domain.QuestionInput{
		{Text: "私___学生です", Options: []string{"は", "を", "に", "で"}, CorrectAnswer: "A", Explanation: "topic marker"},
		{Text: "水___飲みます", Options: []string{"は", "を", "", ""}, CorrectAnswer: "を"},
	} {
		if _, err := catalogService.AddQuestion(ctx, quiz.ID, in); err != nil {
			t.Fatalf("add question: %v", err)
		}
	}
	empty, err := catalogService.CreateQuiz(ctx, domain.QuizInput{CourseID: course.ID, Title: "Empty"})
	if err != nil {
		t.Fatalf("create empty quiz: %v", err)
	}

	router := NewRouter(RouterConfig{}, quizzes, catalogService, auth, zerolog.Nop())
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{
		server:      server,
		auth:        auth,
		catalog:     catalog,
		courseID:    course.ID,
		quizID:      quiz.ID,
		emptyQuizID: empty.ID,
	}
}

func (e *testEnv) token(t *testing.T, userID int64, role string) string {
	t.Helper()
	token, err := e.auth.Issue(userID, role, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

func expectMessage(t *testing.T, data []byte) string {
	t.Helper()
	body := decode[map[string]interface{}](t, data)
	msg, ok := body["message"].(string)
	if !ok || len(body) != 1 {
		t.Fatalf("expected {\"message\"} error body, got %s", data)
	}
	return msg
}
