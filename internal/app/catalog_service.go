package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"jcert-quiz-service/internal/domain"
)

// Defaults applied to quizzes created without explicit limits.
const (
	DefaultTimeLimit = 10
	DefaultPassScore = 60.0
)

// QuestionBank is the editable store behind the answer key.
// Implementations recompute a quiz's question count in the same
// transaction as every question insert or delete.
type QuestionBank interface {
	CreateCourse(ctx context.Context, course domain.Course) (domain.Course, error)
	ListCourseQuizzes(ctx context.Context, courseID int64) ([]domain.QuizSummary, error)
	CreateQuiz(ctx context.Context, in domain.QuizInput) (domain.Quiz, error)
	UpdateQuiz(ctx context.Context, quizID int64, in domain.QuizInput) (domain.Quiz, error)
	DeleteQuiz(ctx context.Context, quizID int64) error
	ListQuestions(ctx context.Context, quizID int64) ([]domain.Question, error)
	AddQuestion(ctx context.Context, quizID int64, q domain.Question) (domain.Question, error)
	UpdateQuestion(ctx context.Context, questionID int64, q domain.Question) (domain.Question, error)
	DeleteQuestion(ctx context.Context, questionID int64) (quizID int64, err error)
}

// CacheInvalidator drops cached quiz definitions after edits.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, quizID int64) error
}

// CatalogService manages courses, quizzes and questions.
type CatalogService struct {
	bank  QuestionBank
	cache CacheInvalidator
	log   zerolog.Logger
}

func NewCatalogService(bank QuestionBank, cache CacheInvalidator, log zerolog.Logger) *CatalogService {
	return &CatalogService{
		bank:  bank,
		cache: cache,
		log:   log.With().Str("component", "catalog_service").Logger(),
	}
}

func (s *CatalogService) CreateCourse(ctx context.Context, course domain.Course) (domain.Course, error) {
	course.Title = strings.TrimSpace(course.Title)
	if course.Title == "" {
		return domain.Course{}, fmt.Errorf("%w: course title is required", domain.ErrInvalidQuiz)
	}
	return s.bank.CreateCourse(ctx, course)
}

func (s *CatalogService) ListCourseQuizzes(ctx context.Context, courseID int64) ([]domain.QuizSummary, error) {
	if courseID <= 0 {
		return nil, domain.ErrCourseNotFound
	}
	return s.bank.ListCourseQuizzes(ctx, courseID)
}

func (s *CatalogService) CreateQuiz(ctx context.Context, in domain.QuizInput) (domain.Quiz, error) {
	in, err := normalizeQuiz(in)
	if err != nil {
		return domain.Quiz{}, err
	}
	if in.PassScore == 0 {
		in.PassScore = DefaultPassScore
	}
	return s.bank.CreateQuiz(ctx, in)
}

func (s *CatalogService) UpdateQuiz(ctx context.Context, quizID int64, in domain.QuizInput) (domain.Quiz, error) {
	if quizID <= 0 {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	in, err := normalizeQuiz(in)
	if err != nil {
		return domain.Quiz{}, err
	}
	quiz, err := s.bank.UpdateQuiz(ctx, quizID, in)
	if err != nil {
		return domain.Quiz{}, err
	}
	s.invalidate(ctx, quizID)
	return quiz, nil
}

func (s *CatalogService) DeleteQuiz(ctx context.Context, quizID int64) error {
	if quizID <= 0 {
		return domain.ErrQuizNotFound
	}
	if err := s.bank.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	s.invalidate(ctx, quizID)
	return nil
}

// ListQuestions returns the full answer key; admin use only.
func (s *CatalogService) ListQuestions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	if quizID <= 0 {
		return nil, domain.ErrQuizNotFound
	}
	return s.bank.ListQuestions(ctx, quizID)
}

func (s *CatalogService) AddQuestion(ctx context.Context, quizID int64, in domain.QuestionInput) (domain.Question, error) {
	if quizID <= 0 {
		return domain.Question{}, domain.ErrQuizNotFound
	}
	q, err := NormalizeQuestion(in)
	if err != nil {
		return domain.Question{}, err
	}
	created, err := s.bank.AddQuestion(ctx, quizID, q)
	if err != nil {
		return domain.Question{}, err
	}
	s.invalidate(ctx, quizID)
	return created, nil
}

func (s *CatalogService) UpdateQuestion(ctx context.Context, questionID int64, in domain.QuestionInput) (domain.Question, error) {
	if questionID <= 0 {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	q, err := NormalizeQuestion(in)
	if err != nil {
		return domain.Question{}, err
	}
	updated, err := s.bank.UpdateQuestion(ctx, questionID, q)
	if err != nil {
		return domain.Question{}, err
	}
	s.invalidate(ctx, updated.QuizID)
	return updated, nil
}

func (s *CatalogService) DeleteQuestion(ctx context.Context, questionID int64) error {
	if questionID <= 0 {
		return domain.ErrQuestionNotFound
	}
	quizID, err := s.bank.DeleteQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	s.invalidate(ctx, quizID)
	return nil
}

// invalidate only affects the learner-facing view; scoring always reads the store directly.
func (s *CatalogService) invalidate(ctx context.Context, quizID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, quizID); err != nil {
		s.log.Warn().Err(err).Int64("quiz_id", quizID).Msg("invalidate quiz cache")
	}
}

// normalizeQuiz validates quiz fields shared by create and update.
// pass_score 0 is a legal threshold on update; only CreateQuiz defaults it.
func normalizeQuiz(in domain.QuizInput) (domain.QuizInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	switch {
	case in.CourseID <= 0:
		return in, fmt.Errorf("%w: course_id is required", domain.ErrInvalidQuiz)
	case in.Title == "":
		return in, fmt.Errorf("%w: title is required", domain.ErrInvalidQuiz)
	case in.TimeLimit < 0:
		return in, fmt.Errorf("%w: time_limit must be positive", domain.ErrInvalidQuiz)
	case in.PassScore < 0 || in.PassScore > 100:
		return in, fmt.Errorf("%w: pass_score must be between 0 and 100", domain.ErrInvalidQuiz)
	}
	if in.TimeLimit == 0 {
		in.TimeLimit = DefaultTimeLimit
	}
	return in, nil
}

// NormalizeQuestion validates an authored question and resolves its
// correct answer to a populated slot letter.
func NormalizeQuestion(in domain.QuestionInput) (domain.Question, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return domain.Question{}, fmt.Errorf("%w: question_text is required", domain.ErrInvalidQuestion)
	}
	if len(in.Options) > domain.MaxOptions {
		return domain.Question{}, fmt.Errorf("%w: at most %d options", domain.ErrInvalidQuestion, domain.MaxOptions)
	}
	if in.Points < 0 {
		return domain.Question{}, fmt.Errorf("%w: points must be positive", domain.ErrInvalidQuestion)
	}

	options := make([]string, domain.MaxOptions)
	for i, opt := range in.Options {
		options[i] = strings.TrimSpace(opt)
	}
	if options[0] == "" || options[1] == "" {
		return domain.Question{}, fmt.Errorf("%w: options A and B are required", domain.ErrInvalidQuestion)
	}

	q := domain.Question{
		Text:        text,
		Type:        domain.QuestionTypeMultipleChoice,
		Options:     options,
		Points:      in.Points,
		Explanation: strings.TrimSpace(in.Explanation),
	}
	if q.Points == 0 {
		q.Points = 1
	}

	correct := NormalizeAnswer(q, in.CorrectAnswer)
	if _, ok := q.Option(correct); !ok {
		return domain.Question{}, fmt.Errorf("%w: correct_answer must name a populated option", domain.ErrInvalidQuestion)
	}
	q.CorrectAnswer = correct
	return q, nil
}
