package memory

import (
	"context"
	"sort"
	"sync"

	"jcert-quiz-service/internal/domain"
)

// Catalog is an in-process answer key store and question bank.
// It backs the service when no Postgres URL is configured, and the tests.
type Catalog struct {
	mu           sync.RWMutex
	courses      map[int64]domain.Course
	quizzes      map[int64]*domain.Quiz
	questionQuiz map[int64]int64 // question id -> quiz id
	nextCourse   int64
	nextQuiz     int64
	nextQuestion int64
	onDelete     []func(quizID int64)
}

func NewCatalog() *Catalog {
	return &Catalog{
		courses:      make(map[int64]domain.Course),
		quizzes:      make(map[int64]*domain.Quiz),
		questionQuiz: make(map[int64]int64),
	}
}

// OnQuizDeleted registers a hook run after a quiz is removed, used to cascade into results.
func (c *Catalog) OnQuizDeleted(fn func(quizID int64)) {
	c.mu.Lock()
	c.onDelete = append(c.onDelete, fn)
	c.mu.Unlock()
}

func (c *Catalog) LoadQuiz(_ context.Context, quizID int64) (domain.Quiz, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	quiz, ok := c.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return cloneQuiz(*quiz), nil
}

// Course returns a course by id.
func (c *Catalog) Course(courseID int64) (domain.Course, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	course, ok := c.courses[courseID]
	return course, ok
}

func (c *Catalog) CreateCourse(_ context.Context, course domain.Course) (domain.Course, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextCourse++
	course.ID = c.nextCourse
	c.courses[course.ID] = course
	return course, nil
}

func (c *Catalog) ListCourseQuizzes(_ context.Context, courseID int64) ([]domain.QuizSummary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.courses[courseID]; !ok {
		return nil, domain.ErrCourseNotFound
	}
	out := make([]domain.QuizSummary, 0)
	for _, quiz := range c.quizzes {
		if quiz.CourseID == courseID {
			out = append(out, quiz.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Catalog) CreateQuiz(_ context.Context, in domain.QuizInput) (domain.Quiz, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.courses[in.CourseID]; !ok {
		return domain.Quiz{}, domain.ErrCourseNotFound
	}
	c.nextQuiz++
	quiz := &domain.Quiz{
		ID:          c.nextQuiz,
		CourseID:    in.CourseID,
		Title:       in.Title,
		Description: in.Description,
		TimeLimit:   in.TimeLimit,
		PassScore:   in.PassScore,
		Questions:   []domain.Question{},
	}
	c.quizzes[quiz.ID] = quiz
	return cloneQuiz(*quiz), nil
}

func (c *Catalog) UpdateQuiz(_ context.Context, quizID int64, in domain.QuizInput) (domain.Quiz, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	quiz, ok := c.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if _, ok := c.courses[in.CourseID]; !ok {
		return domain.Quiz{}, domain.ErrCourseNotFound
	}
	quiz.CourseID = in.CourseID
	quiz.Title = in.Title
	quiz.Description = in.Description
	quiz.TimeLimit = in.TimeLimit
	quiz.PassScore = in.PassScore
	return cloneQuiz(*quiz), nil
}

func (c *Catalog) DeleteQuiz(_ context.Context, quizID int64) error {
	c.mu.Lock()
	quiz, ok := c.quizzes[quizID]
	if !ok {
		c.mu.Unlock()
		return domain.ErrQuizNotFound
	}
	for _, q := range quiz.Questions {
		delete(c.questionQuiz, q.ID)
	}
	delete(c.quizzes, quizID)
	hooks := append([]func(int64){}, c.onDelete...)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn(quizID)
	}
	return nil
}

func (c *Catalog) ListQuestions(_ context.Context, quizID int64) ([]domain.Question, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	quiz, ok := c.quizzes[quizID]
	if !ok {
		return nil, domain.ErrQuizNotFound
	}
	return cloneQuiz(*quiz).Questions, nil
}

func (c *Catalog) AddQuestion(_ context.Context, quizID int64, q domain.Question) (domain.Question, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	quiz, ok := c.quizzes[quizID]
	if !ok {
		return domain.Question{}, domain.ErrQuizNotFound
	}
	c.nextQuestion++
	q.ID = c.nextQuestion
	q.QuizID = quizID
	q.Options = append([]string(nil), q.Options...)
	quiz.Questions = append(quiz.Questions, q)
	c.questionQuiz[q.ID] = quizID
	return q, nil
}

func (c *Catalog) UpdateQuestion(_ context.Context, questionID int64, q domain.Question) (domain.Question, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	quiz, idx := c.findQuestionLocked(questionID)
	if idx < 0 {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	q.ID = questionID
	q.QuizID = quiz.ID
	q.Options = append([]string(nil), q.Options...)
	quiz.Questions[idx] = q
	return q, nil
}

func (c *Catalog) DeleteQuestion(_ context.Context, questionID int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	quiz, idx := c.findQuestionLocked(questionID)
	if idx < 0 {
		return 0, domain.ErrQuestionNotFound
	}
	quiz.Questions = append(quiz.Questions[:idx], quiz.Questions[idx+1:]...)
	delete(c.questionQuiz, questionID)
	return quiz.ID, nil
}

func (c *Catalog) findQuestionLocked(questionID int64) (*domain.Quiz, int) {
	quizID, ok := c.questionQuiz[questionID]
	if !ok {
		return nil, -1
	}
	quiz := c.quizzes[quizID]
	for i := range quiz.Questions {
		if quiz.Questions[i].ID == questionID {
			return quiz, i
		}
	}
	return nil, -1
}

func cloneQuiz(q domain.Quiz) domain.Quiz {
	questions := make([]domain.Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Options = append([]string(nil), question.Options...)
		questions[i] = question
	}
	q.Questions = questions
	return q
}
