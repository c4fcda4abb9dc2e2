package http

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/copier"

	"jcert-quiz-service/internal/app"
	"jcert-quiz-service/internal/domain"
)

// CatalogHandler serves course listings and the admin question bank.
type CatalogHandler struct {
	service  *app.CatalogService
	validate *validator.Validate
}

func NewCatalogHandler(service *app.CatalogService, validate *validator.Validate) *CatalogHandler {
	return &CatalogHandler{service: service, validate: validate}
}

type quizRequest struct {
	CourseID    int64   `json:"course_id" validate:"required,gt=0"`
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=2000"`
	TimeLimit   int     `json:"time_limit" validate:"gte=0,lte=600"`
	PassScore   float64 `json:"pass_score" validate:"gte=0,lte=100"`
	// older admin clients send passing_score
	PassingScore *float64 `json:"passing_score,omitempty" copier:"-" validate:"omitempty,gte=0,lte=100"`
}

type questionRequest struct {
	Text          string `json:"question_text" validate:"required"`
	OptionA       string `json:"option_a" validate:"required"`
	OptionB       string `json:"option_b" validate:"required"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	CorrectAnswer string `json:"correct_answer" validate:"required"`
	Points        int    `json:"points" validate:"gte=0"`
	Explanation   string `json:"explanation"`
}

func (h *CatalogHandler) ListCourseQuizzes(w http.ResponseWriter, r *http.Request) {
	courseID, err := pathID(r, "id", domain.ErrCourseNotFound)
	if err != nil {
		writeError(w, r, err)
		return
	}
	quizzes, err := h.service.ListCourseQuizzes(r.Context(), courseID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *CatalogHandler) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	in, err := h.quizInput(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	quiz, err := h.service.CreateQuiz(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz.Summary())
}

func (h *CatalogHandler) UpdateQuiz(w http.ResponseWriter, r *http.Request) {
	quizID, err := pathID(r, "id", domain.ErrQuizNotFound)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := h.quizInput(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	quiz, err := h.service.UpdateQuiz(r.Context(), quizID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz.Summary())
}

func (h *CatalogHandler) DeleteQuiz(w http.ResponseWriter, r *http.Request) {
	quizID, err := pathID(r, "id", domain.ErrQuizNotFound)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.service.DeleteQuiz(r.Context(), quizID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Quiz deleted"})
}

func (h *CatalogHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	quizID, err := pathID(r, "id", domain.ErrQuizNotFound)
	if err != nil {
		writeError(w, r, err)
		return
	}
	questions, err := h.service.ListQuestions(r.Context(), quizID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *CatalogHandler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	quizID, err := pathID(r, "id", domain.ErrQuizNotFound)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := h.questionInput(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	question, err := h.service.AddQuestion(r.Context(), quizID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, question)
}

func (h *CatalogHandler) UpdateQuestion(w http.ResponseWriter, r *http.Request) {
	questionID, err := pathID(r, "id", domain.ErrQuestionNotFound)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := h.questionInput(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	question, err := h.service.UpdateQuestion(r.Context(), questionID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, question)
}

func (h *CatalogHandler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	questionID, err := pathID(r, "id", domain.ErrQuestionNotFound)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.service.DeleteQuestion(r.Context(), questionID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Question deleted"})
}

func (h *CatalogHandler) quizInput(w http.ResponseWriter, r *http.Request) (domain.QuizInput, error) {
	var req quizRequest
	if err := decodeBody(w, r, &req); err != nil {
		return domain.QuizInput{}, fmt.Errorf("%w: %v", domain.ErrInvalidQuiz, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return domain.QuizInput{}, fmt.Errorf("%w: %s", domain.ErrInvalidQuiz, describeValidation(err))
	}
	var in domain.QuizInput
	if err := copier.Copy(&in, &req); err != nil {
		return domain.QuizInput{}, fmt.Errorf("%w: %v", domain.ErrInvalidQuiz, err)
	}
	if in.PassScore == 0 && req.PassingScore != nil {
		in.PassScore = *req.PassingScore
	}
	return in, nil
}

func (h *CatalogHandler) questionInput(w http.ResponseWriter, r *http.Request) (domain.QuestionInput, error) {
	var req questionRequest
	if err := decodeBody(w, r, &req); err != nil {
		return domain.QuestionInput{}, fmt.Errorf("%w: %v", domain.ErrInvalidQuestion, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return domain.QuestionInput{}, fmt.Errorf("%w: %s", domain.ErrInvalidQuestion, describeValidation(err))
	}
	var in domain.QuestionInput
	if err := copier.Copy(&in, &req); err != nil {
		return domain.QuestionInput{}, fmt.Errorf("%w: %v", domain.ErrInvalidQuestion, err)
	}
	in.Options = []string{req.OptionA, req.OptionB, req.OptionC, req.OptionD}
	return in, nil
}
