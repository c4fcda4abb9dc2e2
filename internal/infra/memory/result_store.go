package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"jcert-quiz-service/internal/domain"
)

// CatalogReader is what the result store joins against.
type CatalogReader interface {
	LoadQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
	Course(courseID int64) (domain.Course, bool)
}

// ResultStore keeps results and their answer details in process.
// A result and its details become visible together under one lock.
type ResultStore struct {
	catalog CatalogReader

	mu      sync.RWMutex
	nextID  int64
	results map[int64]storedResult
}

type storedResult struct {
	result  domain.Result
	details []domain.AnswerDetail
}

func NewResultStore(catalog CatalogReader) *ResultStore {
	return &ResultStore{
		catalog: catalog,
		results: make(map[int64]storedResult),
	}
}

func (s *ResultStore) SaveResult(ctx context.Context, userID int64, score domain.ScoreResult, completedAt time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	details := append([]domain.AnswerDetail(nil), score.Details...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.results[id] = storedResult{
		result: domain.Result{
			ID:             id,
			UserID:         userID,
			QuizID:         score.QuizID,
			Score:          score.ScorePercentage,
			TotalQuestions: score.TotalQuestions,
			CorrectAnswers: score.CorrectCount,
			TimeTaken:      score.TimeTaken,
			Passed:         score.Passed,
			CompletedAt:    completedAt,
		},
		details: details,
	}
	return id, nil
}

func (s *ResultStore) ListResults(ctx context.Context, userID int64) ([]domain.ResultSummary, error) {
	s.mu.RLock()
	owned := make([]domain.Result, 0)
	for _, stored := range s.results {
		if stored.result.UserID == userID {
			owned = append(owned, stored.result)
		}
	}
	s.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].CompletedAt.Equal(owned[j].CompletedAt) {
			return owned[i].CompletedAt.After(owned[j].CompletedAt)
		}
		return owned[i].ID > owned[j].ID
	})

	out := make([]domain.ResultSummary, 0, len(owned))
	for _, r := range owned {
		summary := domain.ResultSummary{Result: r}
		quiz, err := s.catalog.LoadQuiz(ctx, r.QuizID)
		if err != nil {
			// quiz deleted after the attempt; the cascade will drop this row
			continue
		}
		summary.QuizTitle = quiz.Title
		if course, ok := s.catalog.Course(quiz.CourseID); ok {
			summary.CourseTitle = course.Title
			summary.CourseLevel = course.Level
		}
		out = append(out, summary)
	}
	return out, nil
}

func (s *ResultStore) GetResultDetail(ctx context.Context, resultID, userID int64) (domain.ResultDetail, error) {
	s.mu.RLock()
	stored, ok := s.results[resultID]
	s.mu.RUnlock()
	if !ok || stored.result.UserID != userID {
		return domain.ResultDetail{}, domain.ErrResultNotFound
	}

	quiz, err := s.catalog.LoadQuiz(ctx, stored.result.QuizID)
	if err != nil {
		return domain.ResultDetail{}, domain.ErrResultNotFound
	}
	detail := domain.ResultDetail{
		Result:    stored.result,
		QuizTitle: quiz.Title,
		Answers:   make([]domain.ReviewItem, 0, len(stored.details)),
	}
	if course, ok := s.catalog.Course(quiz.CourseID); ok {
		detail.CourseTitle = course.Title
	}

	byQuestion := make(map[int64]domain.AnswerDetail, len(stored.details))
	for _, d := range stored.details {
		byQuestion[d.QuestionID] = d
	}
	for _, q := range quiz.Questions {
		if d, ok := byQuestion[q.ID]; ok {
			detail.Answers = append(detail.Answers, domain.NewReviewItem(q, d))
		}
	}
	return detail, nil
}

// PurgeQuiz removes every result recorded against quizID.
func (s *ResultStore) PurgeQuiz(quizID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, stored := range s.results {
		if stored.result.QuizID == quizID {
			delete(s.results, id)
		}
	}
}
