package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"jcert-quiz-service/internal/app"
)

// RouterConfig carries the transport-level settings.
type RouterConfig struct {
	AllowedOrigins []string
}

// NewRouter wires every HTTP and websocket route.
func NewRouter(cfg RouterConfig, quizzes *app.QuizService, catalog *app.CatalogService, auth *Authenticator, log zerolog.Logger) http.Handler {
	validate := NewValidator()
	quizHandler := NewQuizHandler(quizzes, validate)
	catalogHandler := NewCatalogHandler(catalog, validate)
	feedHandler := NewFeedHandler(quizzes, auth, cfg.AllowedOrigins)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(requestLogger(log.With().Str("component", "http").Logger()))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ws/results", feedHandler.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/quizzes/{id}", quizHandler.GetQuiz)
		r.Get("/courses/{id}/quizzes", catalogHandler.ListCourseQuizzes)

		r.Group(func(r chi.Router) {
			r.Use(auth.Require)
			r.Post("/quizzes/{id}/submit", quizHandler.Submit)
			r.Get("/user/results", quizHandler.ListResults)
			r.Get("/results/{id}", quizHandler.GetResult)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.Require, auth.RequireAdmin)
			r.Post("/quizzes", catalogHandler.CreateQuiz)
			r.Put("/quizzes/{id}", catalogHandler.UpdateQuiz)
			r.Delete("/quizzes/{id}", catalogHandler.DeleteQuiz)
			r.Get("/quizzes/{id}/questions", catalogHandler.ListQuestions)
			r.Post("/quizzes/{id}/questions", catalogHandler.CreateQuestion)
			r.Put("/questions/{id}", catalogHandler.UpdateQuestion)
			r.Delete("/questions/{id}", catalogHandler.DeleteQuestion)
		})
	})
	return r
}
