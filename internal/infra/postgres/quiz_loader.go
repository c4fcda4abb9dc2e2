package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"jcert-quiz-service/internal/domain"
)

// QuizLoader reads quizzes and their answer keys straight from Postgres.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

const selectQuiz = `
SELECT id, course_id, title, description, time_limit, pass_score
FROM quizzes
WHERE id = $1`

const selectQuestions = `
SELECT id, quiz_id, question_text, question_type, correct_answer,
       option_a, option_b, option_c, option_d, points, explanation
FROM questions
WHERE quiz_id = $1
ORDER BY id`

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := l.pool.QueryRow(ctx, selectQuiz, quizID).Scan(
		&quiz.ID, &quiz.CourseID, &quiz.Title, &quiz.Description, &quiz.TimeLimit, &quiz.PassScore,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, persistErr("load quiz", err)
	}

	rows, err := l.pool.Query(ctx, selectQuestions, quizID)
	if err != nil {
		return domain.Quiz{}, persistErr("load questions", err)
	}
	defer rows.Close()

	quiz.Questions = make([]domain.Question, 0)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return domain.Quiz{}, persistErr("scan question", err)
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.Quiz{}, persistErr("load questions", err)
	}
	return quiz, nil
}

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var (
		q                domain.Question
		optA, optB       string
		optC, optD, expl *string
	)
	if err := row.Scan(&q.ID, &q.QuizID, &q.Text, &q.Type, &q.CorrectAnswer, &optA, &optB, &optC, &optD, &q.Points, &expl); err != nil {
		return domain.Question{}, err
	}
	q.Options = []string{optA, optB, deref(optC), deref(optD)}
	q.Explanation = deref(expl)
	return q, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
}
