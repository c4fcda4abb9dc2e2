package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"jcert-quiz-service/internal/domain"
)

type courseRow struct {
	bun.BaseModel `bun:"table:courses,alias:c"`

	ID    int64  `bun:"id,pk,autoincrement"`
	Title string `bun:"title,notnull"`
	Level string `bun:"level,notnull"`
}

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes,alias:qz"`

	ID             int64     `bun:"id,pk,autoincrement"`
	CourseID       int64     `bun:"course_id,notnull"`
	Title          string    `bun:"title,notnull"`
	Description    string    `bun:"description,notnull"`
	TimeLimit      int       `bun:"time_limit,notnull"`
	PassScore      float64   `bun:"pass_score,notnull"`
	TotalQuestions int       `bun:"total_questions,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:qu"`

	ID            int64  `bun:"id,pk,autoincrement"`
	QuizID        int64  `bun:"quiz_id,notnull"`
	Text          string `bun:"question_text,notnull"`
	Type          string `bun:"question_type,notnull"`
	CorrectAnswer string `bun:"correct_answer,notnull"`
	OptionA       string `bun:"option_a,notnull"`
	OptionB       string `bun:"option_b,notnull"`
	OptionC       string `bun:"option_c,nullzero"`
	OptionD       string `bun:"option_d,nullzero"`
	Points        int    `bun:"points,notnull"`
	Explanation   string `bun:"explanation,nullzero"`
}

func (r quizRow) toDomain() domain.Quiz {
	return domain.Quiz{
		ID:          r.ID,
		CourseID:    r.CourseID,
		Title:       r.Title,
		Description: r.Description,
		TimeLimit:   r.TimeLimit,
		PassScore:   r.PassScore,
		Questions:   []domain.Question{},
	}
}

func (r questionRow) toDomain() domain.Question {
	return domain.Question{
		ID:            r.ID,
		QuizID:        r.QuizID,
		Text:          r.Text,
		Type:          r.Type,
		Options:       []string{r.OptionA, r.OptionB, r.OptionC, r.OptionD},
		CorrectAnswer: r.CorrectAnswer,
		Points:        r.Points,
		Explanation:   r.Explanation,
	}
}

func toQuestionRow(quizID int64, q domain.Question) *questionRow {
	opts := make([]string, domain.MaxOptions)
	copy(opts, q.Options)
	return &questionRow{
		ID:            q.ID,
		QuizID:        quizID,
		Text:          q.Text,
		Type:          q.Type,
		CorrectAnswer: q.CorrectAnswer,
		OptionA:       opts[0],
		OptionB:       opts[1],
		OptionC:       opts[2],
		OptionD:       opts[3],
		Points:        q.Points,
		Explanation:   q.Explanation,
	}
}

// QuestionBank is the admin-facing store for courses, quizzes and questions.
// Every question insert or delete recomputes quizzes.total_questions in the same transaction.
type QuestionBank struct {
	db *bun.DB
}

func NewQuestionBank(db *bun.DB) *QuestionBank {
	return &QuestionBank{db: db}
}

func (b *QuestionBank) CreateCourse(ctx context.Context, course domain.Course) (domain.Course, error) {
	row := &courseRow{Title: course.Title, Level: course.Level}
	if _, err := b.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return domain.Course{}, persistErr("insert course", err)
	}
	return domain.Course{ID: row.ID, Title: row.Title, Level: row.Level}, nil
}

func (b *QuestionBank) ListCourseQuizzes(ctx context.Context, courseID int64) ([]domain.QuizSummary, error) {
	exists, err := b.db.NewSelect().Model((*courseRow)(nil)).Where("id = ?", courseID).Exists(ctx)
	if err != nil {
		return nil, persistErr("find course", err)
	}
	if !exists {
		return nil, domain.ErrCourseNotFound
	}

	var rows []quizRow
	if err := b.db.NewSelect().Model(&rows).Where("course_id = ?", courseID).Order("id ASC").Scan(ctx); err != nil {
		return nil, persistErr("list quizzes", err)
	}
	out := make([]domain.QuizSummary, 0, len(rows))
	for _, r := range rows {
		summary := r.toDomain().Summary()
		summary.TotalQuestions = r.TotalQuestions
		out = append(out, summary)
	}
	return out, nil
}

func (b *QuestionBank) CreateQuiz(ctx context.Context, in domain.QuizInput) (domain.Quiz, error) {
	row := &quizRow{
		CourseID:    in.CourseID,
		Title:       in.Title,
		Description: in.Description,
		TimeLimit:   in.TimeLimit,
		PassScore:   in.PassScore,
	}
	err := b.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := courseExists(ctx, tx, in.CourseID); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(row).Exec(ctx)
		return err
	})
	if err != nil {
		return domain.Quiz{}, wrapBankErr("create quiz", err)
	}
	return row.toDomain(), nil
}

func (b *QuestionBank) UpdateQuiz(ctx context.Context, quizID int64, in domain.QuizInput) (domain.Quiz, error) {
	row := &quizRow{
		ID:          quizID,
		CourseID:    in.CourseID,
		Title:       in.Title,
		Description: in.Description,
		TimeLimit:   in.TimeLimit,
		PassScore:   in.PassScore,
	}
	var questions []domain.Question
	err := b.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := courseExists(ctx, tx, in.CourseID); err != nil {
			return err
		}
		res, err := tx.NewUpdate().Model(row).
			Column("course_id", "title", "description", "time_limit", "pass_score").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrQuizNotFound
		}
		questions, err = listQuestions(ctx, tx, quizID)
		return err
	})
	if err != nil {
		return domain.Quiz{}, wrapBankErr("update quiz", err)
	}
	quiz := row.toDomain()
	quiz.Questions = questions
	return quiz, nil
}

// DeleteQuiz removes the quiz with its questions, results and answers.
func (b *QuestionBank) DeleteQuiz(ctx context.Context, quizID int64) error {
	err := b.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		results := tx.NewSelect().Table("quiz_results").Column("id").Where("quiz_id = ?", quizID)
		if _, err := tx.NewDelete().Table("user_answers").Where("result_id IN (?)", results).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Table("quiz_results").Where("quiz_id = ?", quizID).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*questionRow)(nil)).Where("quiz_id = ?", quizID).Exec(ctx); err != nil {
			return err
		}
		res, err := tx.NewDelete().Model((*quizRow)(nil)).Where("id = ?", quizID).Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrQuizNotFound
		}
		return nil
	})
	return wrapBankErr("delete quiz", err)
}

func (b *QuestionBank) ListQuestions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	var questions []domain.Question
	err := b.db.RunInTx(ctx, &sql.TxOptions{ReadOnly: true}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*quizRow)(nil)).Where("id = ?", quizID).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrQuizNotFound
		}
		questions, err = listQuestions(ctx, tx, quizID)
		return err
	})
	if err != nil {
		return nil, wrapBankErr("list questions", err)
	}
	return questions, nil
}

func (b *QuestionBank) AddQuestion(ctx context.Context, quizID int64, q domain.Question) (domain.Question, error) {
	row := toQuestionRow(quizID, q)
	row.ID = 0
	err := b.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockQuiz(ctx, tx, quizID); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return err
		}
		return recountQuestions(ctx, tx, quizID)
	})
	if err != nil {
		return domain.Question{}, wrapBankErr("add question", err)
	}
	return row.toDomain(), nil
}

func (b *QuestionBank) UpdateQuestion(ctx context.Context, questionID int64, q domain.Question) (domain.Question, error) {
	var row *questionRow
	err := b.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		quizID, err := questionQuiz(ctx, tx, questionID)
		if err != nil {
			return err
		}
		row = toQuestionRow(quizID, q)
		row.ID = questionID
		_, err = tx.NewUpdate().Model(row).
			Column("question_text", "question_type", "correct_answer",
				"option_a", "option_b", "option_c", "option_d", "points", "explanation").
			WherePK().
			Exec(ctx)
		return err
	})
	if err != nil {
		return domain.Question{}, wrapBankErr("update question", err)
	}
	return row.toDomain(), nil
}

func (b *QuestionBank) DeleteQuestion(ctx context.Context, questionID int64) (int64, error) {
	var quizID int64
	err := b.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		quizID, err = questionQuiz(ctx, tx, questionID)
		if err != nil {
			return err
		}
		if err := lockQuiz(ctx, tx, quizID); err != nil {
			return err
		}
		// recorded answers stay with their results; the review join omits them
		if _, err := tx.NewDelete().Model((*questionRow)(nil)).Where("id = ?", questionID).Exec(ctx); err != nil {
			return err
		}
		return recountQuestions(ctx, tx, quizID)
	})
	if err != nil {
		return 0, wrapBankErr("delete question", err)
	}
	return quizID, nil
}

func listQuestions(ctx context.Context, tx bun.Tx, quizID int64) ([]domain.Question, error) {
	var rows []questionRow
	if err := tx.NewSelect().Model(&rows).Where("quiz_id = ?", quizID).Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Question, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func courseExists(ctx context.Context, tx bun.Tx, courseID int64) error {
	exists, err := tx.NewSelect().Model((*courseRow)(nil)).Where("id = ?", courseID).Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrCourseNotFound
	}
	return nil
}

// lockQuiz serializes question-count updates for one quiz.
func lockQuiz(ctx context.Context, tx bun.Tx, quizID int64) error {
	var id int64
	err := tx.NewSelect().Model((*quizRow)(nil)).Column("id").Where("id = ?", quizID).For("UPDATE").Scan(ctx, &id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrQuizNotFound
	}
	return err
}

func questionQuiz(ctx context.Context, tx bun.Tx, questionID int64) (int64, error) {
	var quizID int64
	err := tx.NewSelect().Model((*questionRow)(nil)).Column("quiz_id").Where("id = ?", questionID).Scan(ctx, &quizID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrQuestionNotFound
	}
	return quizID, err
}

func recountQuestions(ctx context.Context, tx bun.Tx, quizID int64) error {
	_, err := tx.NewUpdate().Model((*quizRow)(nil)).
		Set("total_questions = (SELECT COUNT(*) FROM questions WHERE quiz_id = ?)", quizID).
		Where("id = ?", quizID).
		Exec(ctx)
	return err
}

// wrapBankErr passes domain sentinels through and marks everything else as a storage failure.
func wrapBankErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrCourseNotFound):
		return err
	default:
		return persistErr(op, err)
	}
}
