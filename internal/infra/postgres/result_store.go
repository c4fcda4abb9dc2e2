package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"jcert-quiz-service/internal/domain"
)

// ResultStore persists scored attempts. A result and its answer rows are
// written in one transaction; on any failure nothing is kept.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

const insertResult = `
INSERT INTO quiz_results (user_id, quiz_id, score, total_questions, correct_answers, time_taken, passed, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`

var answerColumns = []string{"result_id", "question_id", "user_answer", "is_correct"}

func (s *ResultStore) SaveResult(ctx context.Context, userID int64, score domain.ScoreResult, completedAt time.Time) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, persistErr("begin result tx", err)
	}
	// no-op once committed
	defer tx.Rollback(ctx) //nolint:errcheck

	var id int64
	err = tx.QueryRow(ctx, insertResult,
		userID, score.QuizID, score.ScorePercentage, score.TotalQuestions,
		score.CorrectCount, score.TimeTaken, score.Passed, completedAt,
	).Scan(&id)
	if err != nil {
		return 0, persistErr("insert result", err)
	}

	if len(score.Details) > 0 {
		rows := make([][]interface{}, 0, len(score.Details))
		for _, d := range score.Details {
			rows = append(rows, []interface{}{id, d.QuestionID, d.UserAnswer, d.IsCorrect})
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"user_answers"}, answerColumns, pgx.CopyFromRows(rows)); err != nil {
			return 0, persistErr("insert answers", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, persistErr("commit result", err)
	}
	return id, nil
}

const selectResults = `
SELECT qr.id, qr.user_id, qr.quiz_id, qr.score, qr.total_questions, qr.correct_answers,
       qr.time_taken, qr.passed, qr.completed_at,
       q.title, COALESCE(c.title, ''), COALESCE(c.level, '')
FROM quiz_results qr
JOIN quizzes q ON q.id = qr.quiz_id
LEFT JOIN courses c ON c.id = q.course_id
WHERE qr.user_id = $1
ORDER BY qr.completed_at DESC, qr.id DESC`

func (s *ResultStore) ListResults(ctx context.Context, userID int64) ([]domain.ResultSummary, error) {
	rows, err := s.pool.Query(ctx, selectResults, userID)
	if err != nil {
		return nil, persistErr("list results", err)
	}
	defer rows.Close()

	out := make([]domain.ResultSummary, 0)
	for rows.Next() {
		var r domain.ResultSummary
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.QuizID, &r.Score, &r.TotalQuestions, &r.CorrectAnswers,
			&r.TimeTaken, &r.Passed, &r.CompletedAt,
			&r.QuizTitle, &r.CourseTitle, &r.CourseLevel,
		); err != nil {
			return nil, persistErr("scan result", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list results", err)
	}
	return out, nil
}

// ownership is part of the predicate, so another user's result reads as missing
const selectResult = `
SELECT qr.id, qr.user_id, qr.quiz_id, qr.score, qr.total_questions, qr.correct_answers,
       qr.time_taken, qr.passed, qr.completed_at,
       q.title, COALESCE(c.title, '')
FROM quiz_results qr
JOIN quizzes q ON q.id = qr.quiz_id
LEFT JOIN courses c ON c.id = q.course_id
WHERE qr.id = $1 AND qr.user_id = $2`

const selectReview = `
SELECT ua.question_id, ua.user_answer, ua.is_correct,
       qu.id, qu.quiz_id, qu.question_text, qu.question_type, qu.correct_answer,
       qu.option_a, qu.option_b, qu.option_c, qu.option_d, qu.points, qu.explanation
FROM user_answers ua
JOIN questions qu ON qu.id = ua.question_id
WHERE ua.result_id = $1
ORDER BY qu.id`

func (s *ResultStore) GetResultDetail(ctx context.Context, resultID, userID int64) (domain.ResultDetail, error) {
	var d domain.ResultDetail
	err := s.pool.QueryRow(ctx, selectResult, resultID, userID).Scan(
		&d.ID, &d.UserID, &d.QuizID, &d.Score, &d.TotalQuestions, &d.CorrectAnswers,
		&d.TimeTaken, &d.Passed, &d.CompletedAt,
		&d.QuizTitle, &d.CourseTitle,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ResultDetail{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.ResultDetail{}, persistErr("load result", err)
	}

	rows, err := s.pool.Query(ctx, selectReview, resultID)
	if err != nil {
		return domain.ResultDetail{}, persistErr("load review", err)
	}
	defer rows.Close()

	d.Answers = make([]domain.ReviewItem, 0)
	for rows.Next() {
		var (
			answer           domain.AnswerDetail
			q                domain.Question
			optA, optB       string
			optC, optD, expl *string
		)
		if err := rows.Scan(
			&answer.QuestionID, &answer.UserAnswer, &answer.IsCorrect,
			&q.ID, &q.QuizID, &q.Text, &q.Type, &q.CorrectAnswer,
			&optA, &optB, &optC, &optD, &q.Points, &expl,
		); err != nil {
			return domain.ResultDetail{}, persistErr("scan review", err)
		}
		q.Options = []string{optA, optB, deref(optC), deref(optD)}
		q.Explanation = deref(expl)
		d.Answers = append(d.Answers, domain.NewReviewItem(q, answer))
	}
	if err := rows.Err(); err != nil {
		return domain.ResultDetail{}, persistErr("load review", err)
	}
	return d, nil
}
