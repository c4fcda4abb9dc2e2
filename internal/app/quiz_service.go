package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"jcert-quiz-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
}

// AnswerKeyStore reads the authoritative quiz, answer key included, bypassing any cache.
type AnswerKeyStore interface {
	LoadQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
}

// ResultRepository persists scored attempts and serves them back.
type ResultRepository interface {
	SaveResult(ctx context.Context, userID int64, score domain.ScoreResult, completedAt time.Time) (int64, error)
	ListResults(ctx context.Context, userID int64) ([]domain.ResultSummary, error)
	GetResultDetail(ctx context.Context, resultID, userID int64) (domain.ResultDetail, error)
}

// ResultFeed fans committed results out to live subscribers.
type ResultFeed interface {
	Publish(ctx context.Context, event domain.ResultEvent) error
	Subscribe(ctx context.Context) (<-chan domain.ResultEvent, func(), error)
}

// ErrFeedUnavailable is returned by Subscribe when no feed is configured.
var ErrFeedUnavailable = errors.New("result feed not configured")

// QuizService contains the quiz-taking use cases.
type QuizService struct {
	views   QuizRepository
	keys    AnswerKeyStore
	results ResultRepository
	feed    ResultFeed
	policy  PassPolicy
	clamp   bool
	now     func() time.Time
	log     zerolog.Logger
}

// Option configures a QuizService.
type Option func(*QuizService)

// WithFeed publishes every committed result to feed.
func WithFeed(feed ResultFeed) Option {
	return func(s *QuizService) { s.feed = feed }
}

// WithPassPolicy overrides the default per-quiz threshold.
func WithPassPolicy(policy PassPolicy) Option {
	return func(s *QuizService) { s.policy = policy }
}

// WithTimeClamp caps reported time_taken at the quiz time limit.
func WithTimeClamp(enabled bool) Option {
	return func(s *QuizService) { s.clamp = enabled }
}

// WithClock is test-only for deterministic completion timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithLogger attaches a logger; the default discards output.
func WithLogger(log zerolog.Logger) Option {
	return func(s *QuizService) { s.log = log.With().Str("component", "quiz_service").Logger() }
}

func NewQuizService(views QuizRepository, keys AnswerKeyStore, results ResultRepository, opts ...Option) *QuizService {
	s := &QuizService{
		views:   views,
		keys:    keys,
		results: results,
		clamp:   true,
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadQuizForTaking returns the quiz without its answer key.
func (s *QuizService) LoadQuizForTaking(ctx context.Context, quizID int64) (domain.QuizView, error) {
	if quizID <= 0 {
		return domain.QuizView{}, domain.ErrQuizNotFound
	}
	quiz, err := s.views.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizView{}, err
	}
	return quiz.View(), nil
}

// Submit scores a submission against the stored key and persists the outcome.
// Nothing is written unless the submission is valid and the quiz has questions.
func (s *QuizService) Submit(ctx context.Context, sub domain.Submission) (domain.Result, error) {
	if sub.UserID <= 0 {
		return domain.Result{}, domain.ErrUnauthenticated
	}
	if sub.QuizID <= 0 {
		return domain.Result{}, domain.ErrQuizNotFound
	}
	if sub.TimeTaken < 0 {
		return domain.Result{}, fmt.Errorf("%w: time_taken must not be negative", domain.ErrInvalidSubmission)
	}

	quiz, err := s.keys.LoadQuiz(ctx, sub.QuizID)
	if err != nil {
		return domain.Result{}, err
	}
	if len(quiz.Questions) == 0 {
		return domain.Result{}, domain.ErrEmptyQuiz
	}

	timeTaken := sub.TimeTaken
	if limit := quiz.TimeLimit * 60; s.clamp && limit > 0 && timeTaken > limit {
		s.log.Debug().Int64("quiz_id", quiz.ID).Int("reported", timeTaken).Int("limit", limit).Msg("clamping time_taken")
		timeTaken = limit
	}

	if unknown := countUnknown(quiz, sub.Answers); unknown > 0 {
		s.log.Debug().Int64("quiz_id", quiz.ID).Int("ignored", unknown).Msg("answers for unknown questions ignored")
	}

	score := Score(quiz, sub.Answers, timeTaken, s.policy.Threshold(quiz))
	completedAt := s.now().UTC()

	id, err := s.results.SaveResult(ctx, sub.UserID, score, completedAt)
	if err != nil {
		return domain.Result{}, err
	}

	result := domain.Result{
		ID:             id,
		UserID:         sub.UserID,
		QuizID:         quiz.ID,
		Score:          score.ScorePercentage,
		TotalQuestions: score.TotalQuestions,
		CorrectAnswers: score.CorrectCount,
		TimeTaken:      score.TimeTaken,
		Passed:         score.Passed,
		CompletedAt:    completedAt,
	}
	s.log.Info().
		Int64("result_id", id).
		Int64("user_id", sub.UserID).
		Int64("quiz_id", quiz.ID).
		Float64("score", result.Score).
		Bool("passed", result.Passed).
		Msg("result recorded")

	if s.feed != nil {
		// the result is already committed; a feed outage only costs live viewers an update
		if err := s.feed.Publish(ctx, eventFor(result)); err != nil {
			s.log.Warn().Err(err).Int64("result_id", id).Msg("publish result event")
		}
	}
	return result, nil
}

// ListResults returns the caller's history, newest first.
func (s *QuizService) ListResults(ctx context.Context, userID int64) ([]domain.ResultSummary, error) {
	if userID <= 0 {
		return nil, domain.ErrUnauthenticated
	}
	return s.results.ListResults(ctx, userID)
}

// GetResultDetail returns one of the caller's results with its answer review.
func (s *QuizService) GetResultDetail(ctx context.Context, resultID, userID int64) (domain.ResultDetail, error) {
	if userID <= 0 {
		return domain.ResultDetail{}, domain.ErrUnauthenticated
	}
	if resultID <= 0 {
		return domain.ResultDetail{}, domain.ErrResultNotFound
	}
	return s.results.GetResultDetail(ctx, resultID, userID)
}

// Subscribe returns a channel of committed result events.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(ctx context.Context) (<-chan domain.ResultEvent, func(), error) {
	if s.feed == nil {
		return nil, nil, ErrFeedUnavailable
	}
	return s.feed.Subscribe(ctx)
}

func eventFor(r domain.Result) domain.ResultEvent {
	return domain.ResultEvent{
		ResultID:    r.ID,
		UserID:      r.UserID,
		QuizID:      r.QuizID,
		Score:       r.Score,
		Passed:      r.Passed,
		CompletedAt: r.CompletedAt,
	}
}

func countUnknown(quiz domain.Quiz, answers map[int64]string) int {
	if len(answers) == 0 {
		return 0
	}
	known := make(map[int64]struct{}, len(quiz.Questions))
	for _, q := range quiz.Questions {
		known[q.ID] = struct{}{}
	}
	unknown := 0
	for id := range answers {
		if _, ok := known[id]; !ok {
			unknown++
		}
	}
	return unknown
}
