package domain

import (
	"strings"
	"time"
)

// QuestionTypeMultipleChoice is the only question type the scoring core accepts.
const QuestionTypeMultipleChoice = "multiple_choice"

// MaxOptions is the number of option slots a question can carry (A through D).
const MaxOptions = 4

// OptionKeys lists the slot letters in display order.
var OptionKeys = []string{"A", "B", "C", "D"}

// Course is the minimal course projection the results views join against.
type Course struct {
	ID    int64  `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	Level string `json:"level" yaml:"level"`
}

// Question is the server-side projection of a question, answer key included.
// It must never be serialized to a client before submission; use QuestionView.
type Question struct {
	ID            int64    `json:"id"`
	QuizID        int64    `json:"quiz_id"`
	Text          string   `json:"question_text"`
	Type          string   `json:"question_type"`
	Options       []string `json:"options"` // index 0 is slot A; "" marks an empty slot
	CorrectAnswer string   `json:"correct_answer"`
	Points        int      `json:"points"` // defaults to 1 if zero
	Explanation   string   `json:"explanation,omitempty"`
}

// Option returns the text stored in the slot named by key.
func (q Question) Option(key string) (string, bool) {
	idx := OptionIndex(key)
	if idx < 0 || idx >= len(q.Options) || q.Options[idx] == "" {
		return "", false
	}
	return q.Options[idx], true
}

// Weight is the number of points the question contributes to the maximum score.
func (q Question) Weight() int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// OptionIndex maps a slot letter (case-insensitive) to its index, or -1.
func OptionIndex(key string) int {
	key = strings.ToUpper(strings.TrimSpace(key))
	for i, k := range OptionKeys {
		if k == key {
			return i
		}
	}
	return -1
}

// Quiz is a timed set of questions together with the authoritative answer key.
type Quiz struct {
	ID          int64      `json:"id"`
	CourseID    int64      `json:"course_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	TimeLimit   int        `json:"time_limit"` // minutes
	PassScore   float64    `json:"pass_score"` // percentage
	Questions   []Question `json:"questions"`
}

// TotalQuestions is derived from the live question list.
func (q Quiz) TotalQuestions() int {
	return len(q.Questions)
}

// View strips the answer key and explanations for client-facing reads.
func (q Quiz) View() QuizView {
	view := QuizView{
		ID:             q.ID,
		CourseID:       q.CourseID,
		Title:          q.Title,
		Description:    q.Description,
		TimeLimit:      q.TimeLimit,
		PassScore:      q.PassScore,
		TotalQuestions: q.TotalQuestions(),
		Questions:      make([]QuestionView, 0, len(q.Questions)),
	}
	for _, question := range q.Questions {
		qv := QuestionView{
			ID:      question.ID,
			Text:    question.Text,
			Type:    question.Type,
			Points:  question.Weight(),
			Options: make([]OptionView, 0, MaxOptions),
		}
		for i, text := range question.Options {
			if i >= MaxOptions || text == "" {
				continue
			}
			qv.Options = append(qv.Options, OptionView{Key: OptionKeys[i], Text: text})
		}
		view.Questions = append(view.Questions, qv)
	}
	return view
}

// Summary drops questions entirely, for course listings.
func (q Quiz) Summary() QuizSummary {
	return QuizSummary{
		ID:             q.ID,
		CourseID:       q.CourseID,
		Title:          q.Title,
		Description:    q.Description,
		TimeLimit:      q.TimeLimit,
		PassScore:      q.PassScore,
		TotalQuestions: q.TotalQuestions(),
	}
}

// OptionView is a populated option slot as shown to learners.
type OptionView struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// QuestionView is a question without its correct answer or explanation.
type QuestionView struct {
	ID      int64        `json:"id"`
	Text    string       `json:"question_text"`
	Type    string       `json:"question_type"`
	Points  int          `json:"points"`
	Options []OptionView `json:"options"`
}

// QuizView is what a learner receives before taking a quiz.
type QuizView struct {
	ID             int64          `json:"id"`
	CourseID       int64          `json:"course_id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	TimeLimit      int            `json:"time_limit"`
	PassScore      float64        `json:"pass_score"`
	TotalQuestions int            `json:"total_questions"`
	Questions      []QuestionView `json:"questions"`
}

// QuizSummary is a quiz listing entry.
type QuizSummary struct {
	ID             int64   `json:"id"`
	CourseID       int64   `json:"course_id"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	TimeLimit      int     `json:"time_limit"`
	PassScore      float64 `json:"pass_score"`
	TotalQuestions int     `json:"total_questions"`
}

// Submission is one learner's set of answers for a quiz. It only lives for one scoring call.
type Submission struct {
	QuizID    int64
	UserID    int64
	Answers   map[int64]string
	TimeTaken int // seconds, client-reported
}

// AnswerDetail is the per-question outcome backing a Result.
type AnswerDetail struct {
	QuestionID int64  `json:"question_id"`
	UserAnswer string `json:"user_answer"`
	IsCorrect  bool   `json:"is_correct"`
}

// ScoreResult is the transient output of the scoring engine.
type ScoreResult struct {
	QuizID          int64          `json:"quiz_id"`
	CorrectCount    int            `json:"correct_answers"`
	TotalQuestions  int            `json:"total_questions"`
	ScorePercentage float64        `json:"score"`
	TimeTaken       int            `json:"time_taken"`
	Passed          bool           `json:"passed"`
	PassThreshold   float64        `json:"pass_threshold"`
	Details         []AnswerDetail `json:"-"`
}

// Result is the durable record of one completed attempt.
type Result struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	QuizID         int64     `json:"quiz_id"`
	Score          float64   `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	CorrectAnswers int       `json:"correct_answers"`
	TimeTaken      int       `json:"time_taken"`
	Passed         bool      `json:"passed"`
	CompletedAt    time.Time `json:"completed_at"`
}

// ResultSummary is a history entry joined with display titles.
type ResultSummary struct {
	Result
	QuizTitle   string `json:"quiz_title"`
	CourseTitle string `json:"course_title"`
	CourseLevel string `json:"level"`
}

// ReviewItem pairs a stored answer with the question it answered.
type ReviewItem struct {
	QuestionID        int64  `json:"question_id"`
	QuestionText      string `json:"question_text"`
	UserAnswer        string `json:"user_answer"`
	UserAnswerText    string `json:"user_answer_text,omitempty"`
	CorrectAnswer     string `json:"correct_answer"`
	CorrectAnswerText string `json:"correct_answer_text,omitempty"`
	IsCorrect         bool   `json:"is_correct"`
	Explanation       string `json:"explanation,omitempty"`
}

// NewReviewItem joins a stored answer with the question it answered.
func NewReviewItem(q Question, detail AnswerDetail) ReviewItem {
	item := ReviewItem{
		QuestionID:    detail.QuestionID,
		QuestionText:  q.Text,
		UserAnswer:    detail.UserAnswer,
		CorrectAnswer: q.CorrectAnswer,
		IsCorrect:     detail.IsCorrect,
		Explanation:   q.Explanation,
	}
	item.UserAnswerText, _ = q.Option(detail.UserAnswer)
	item.CorrectAnswerText, _ = q.Option(q.CorrectAnswer)
	return item
}

// ResultDetail is a single result with its answer review.
type ResultDetail struct {
	Result
	QuizTitle   string       `json:"quiz_title"`
	CourseTitle string       `json:"course_title"`
	Answers     []ReviewItem `json:"answers"`
}

// ResultEvent is published after a result has been committed.
type ResultEvent struct {
	ResultID    int64     `json:"result_id"`
	UserID      int64     `json:"user_id"`
	QuizID      int64     `json:"quiz_id"`
	Score       float64   `json:"score"`
	Passed      bool      `json:"passed"`
	CompletedAt time.Time `json:"completed_at"`
}

// QuizInput carries administrator-editable quiz metadata.
type QuizInput struct {
	CourseID    int64
	Title       string
	Description string
	TimeLimit   int
	PassScore   float64
}

// QuestionInput carries an administrator-authored question.
type QuestionInput struct {
	Text          string
	Options       []string
	CorrectAnswer string
	Points        int
	Explanation   string
}
