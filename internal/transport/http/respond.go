package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"jcert-quiz-service/internal/domain"
)

type errorBody struct {
	Message string `json:"message"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes. Not-found messages are
// generic so a foreign result cannot be told apart from a missing one.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, errorBody{Message: message})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound):
		return http.StatusNotFound, "Quiz not found"
	case errors.Is(err, domain.ErrResultNotFound):
		return http.StatusNotFound, "Result not found"
	case errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusNotFound, "Question not found"
	case errors.Is(err, domain.ErrCourseNotFound):
		return http.StatusNotFound, "Course not found"
	case errors.Is(err, domain.ErrInvalidSubmission),
		errors.Is(err, domain.ErrEmptyQuiz),
		errors.Is(err, domain.ErrInvalidQuestion),
		errors.Is(err, domain.ErrInvalidQuiz):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "Authentication required"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Admin access required"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// pathID parses a numeric route parameter; anything else reads as notFound.
func pathID(r *http.Request, name string, notFound error) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, notFound
	}
	return id, nil
}
