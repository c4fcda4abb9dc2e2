package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/copier"

	"jcert-quiz-service/internal/app"
	"jcert-quiz-service/internal/domain"
)

const maxBodyBytes = 1 << 20

// QuizHandler serves quiz taking and result review.
type QuizHandler struct {
	service  *app.QuizService
	validate *validator.Validate
}

func NewQuizHandler(service *app.QuizService, validate *validator.Validate) *QuizHandler {
	return &QuizHandler{service: service, validate: validate}
}

// time_taken is capped at one day of seconds so it always fits the result column.
type submitRequest struct {
	Answers   json.RawMessage `json:"answers" validate:"required"`
	TimeTaken *float64        `json:"time_taken" validate:"required,gte=0,lte=86400"`
}

type submitResponse struct {
	Message        string  `json:"message"`
	ResultID       int64   `json:"result_id"`
	Score          float64 `json:"score"`
	CorrectAnswers int     `json:"correct_answers"`
	TotalQuestions int     `json:"total_questions"`
	TimeTaken      int     `json:"time_taken"`
	Passed         bool    `json:"passed"`
}

func (h *QuizHandler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	quizID, err := pathID(r, "id", domain.ErrQuizNotFound)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.service.LoadQuizForTaking(r.Context(), quizID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *QuizHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}
	quizID, err := pathID(r, "id", domain.ErrQuizNotFound)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req submitRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidSubmission, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %s", domain.ErrInvalidSubmission, describeValidation(err)))
		return
	}
	answers, err := decodeAnswers(req.Answers)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.Submit(r.Context(), domain.Submission{
		QuizID:    quizID,
		UserID:    id.UserID,
		Answers:   answers,
		TimeTaken: int(math.Round(*req.TimeTaken)),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := submitResponse{Message: "Quiz submitted successfully"}
	if err := copier.Copy(&resp, &result); err != nil {
		writeError(w, r, fmt.Errorf("build submit response: %w", err))
		return
	}
	resp.ResultID = result.ID
	writeJSON(w, http.StatusOK, resp)
}

func (h *QuizHandler) ListResults(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}
	results, err := h.service.ListResults(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *QuizHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}
	resultID, err := pathID(r, "id", domain.ErrResultNotFound)
	if err != nil {
		writeError(w, r, err)
		return
	}
	detail, err := h.service.GetResultDetail(r.Context(), resultID, id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// decodeAnswers accepts an object of question id to string (or null) values.
func decodeAnswers(raw json.RawMessage) (map[int64]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: answers must be an object", domain.ErrInvalidSubmission)
	}
	var values map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &values); err != nil {
		return nil, fmt.Errorf("%w: answers must be an object", domain.ErrInvalidSubmission)
	}

	answers := make(map[int64]string, len(values))
	for key, value := range values {
		questionID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: question id %q is not numeric", domain.ErrInvalidSubmission, key)
		}
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			answers[questionID] = ""
			continue
		}
		var answer string
		if err := json.Unmarshal(value, &answer); err != nil {
			return nil, fmt.Errorf("%w: answer for question %s must be a string", domain.ErrInvalidSubmission, key)
		}
		answers[questionID] = answer
	}
	return answers, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("malformed json body: %v", err)
	}
	return nil
}
