// Package seed loads YAML fixtures of courses, quizzes and questions.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"jcert-quiz-service/internal/domain"
)

//go:embed sample.yaml
var sample []byte

type Fixture struct {
	Courses []Course `yaml:"courses"`
}

type Course struct {
	Title   string `yaml:"title"`
	Level   string `yaml:"level"`
	Quizzes []Quiz `yaml:"quizzes"`
}

type Quiz struct {
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	TimeLimit   int        `yaml:"time_limit"`
	PassScore   float64    `yaml:"pass_score"`
	Questions   []Question `yaml:"questions"`
}

type Question struct {
	Text          string   `yaml:"text"`
	Options       []string `yaml:"options"`
	CorrectAnswer string   `yaml:"correct_answer"`
	Points        int      `yaml:"points"`
	Explanation   string   `yaml:"explanation"`
}

// Target is the catalog a fixture is written into; *app.CatalogService satisfies it.
type Target interface {
	CreateCourse(ctx context.Context, course domain.Course) (domain.Course, error)
	CreateQuiz(ctx context.Context, in domain.QuizInput) (domain.Quiz, error)
	AddQuestion(ctx context.Context, quizID int64, in domain.QuestionInput) (domain.Question, error)
}

// Load reads a fixture file; an empty path yields the embedded sample.
func Load(path string) (Fixture, error) {
	data := sample
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Fixture{}, err
		}
		data = raw
	}
	return Parse(data)
}

func Parse(data []byte) (Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture: %w", err)
	}
	return f, nil
}

// Apply creates every course, quiz and question in order and stops at the first error.
func Apply(ctx context.Context, target Target, f Fixture, log zerolog.Logger) error {
	for _, c := range f.Courses {
		course, err := target.CreateCourse(ctx, domain.Course{Title: c.Title, Level: c.Level})
		if err != nil {
			return fmt.Errorf("course %q: %w", c.Title, err)
		}
		for _, q := range c.Quizzes {
			quiz, err := target.CreateQuiz(ctx, domain.QuizInput{
				CourseID:    course.ID,
				Title:       q.Title,
				Description: q.Description,
				TimeLimit:   q.TimeLimit,
				PassScore:   q.PassScore,
			})
			if err != nil {
				return fmt.Errorf("quiz %q: %w", q.Title, err)
			}
			for i, question := range q.Questions {
				_, err := target.AddQuestion(ctx, quiz.ID, domain.QuestionInput{
					Text:          question.Text,
					Options:       question.Options,
					CorrectAnswer: question.CorrectAnswer,
					Points:        question.Points,
					Explanation:   question.Explanation,
				})
				if err != nil {
					return fmt.Errorf("quiz %q question %d: %w", q.Title, i+1, err)
				}
			}
			log.Info().Int64("quiz_id", quiz.ID).Str("title", quiz.Title).Int("questions", len(q.Questions)).Msg("seeded quiz")
		}
	}
	return nil
}
