package memory

import (
	"context"
	"testing"

	"jcert-quiz-service/internal/domain"
)

func TestCatalogQuestionLifecycle(t *testing.T) {
	ctx := context.Background()
	catalog, quizID := seededCatalog(t)

	quiz, err := catalog.LoadQuiz(ctx, quizID)
	if err != nil {
		t.Fatalf("load quiz: %v", err)
	}
	if quiz.TotalQuestions() != 2 {
		t.Fatalf("expected 2 questions, got %d", quiz.TotalQuestions())
	}

	updated, err := catalog.UpdateQuestion(ctx, quiz.Questions[0].ID, domain.Question{
		Text:          "う",
		Options:       []string{"a", "i", "u", ""},
		CorrectAnswer: "C",
		Points:        1,
	})
	if err != nil {
		t.Fatalf("update question: %v", err)
	}
	if updated.QuizID != quizID {
		t.Fatalf("expected quiz id %d, got %d", quizID, updated.QuizID)
	}

	owner, err := catalog.DeleteQuestion(ctx, quiz.Questions[1].ID)
	if err != nil {
		t.Fatalf("delete question: %v", err)
	}
	if owner != quizID {
		t.Fatalf("expected owner %d, got %d", quizID, owner)
	}

	quiz, _ = catalog.LoadQuiz(ctx, quizID)
	if quiz.TotalQuestions() != 1 || quiz.Questions[0].CorrectAnswer != "C" {
		t.Fatalf("unexpected quiz after edits: %+v", quiz.Questions)
	}

	if _, err := catalog.DeleteQuestion(ctx, quiz.Questions[0].ID+100); err != domain.ErrQuestionNotFound {
		t.Fatalf("expected question not found, got %v", err)
	}
}

func TestCatalogReturnsCopies(t *testing.T) {
	ctx := context.Background()
	catalog, quizID := seededCatalog(t)

	quiz, _ := catalog.LoadQuiz(ctx, quizID)
	quiz.Questions[0].Options[0] = "mutated"
	quiz.Questions[0].CorrectAnswer = "D"

	again, _ := catalog.LoadQuiz(ctx, quizID)
	if again.Questions[0].Options[0] != "a" || again.Questions[0].CorrectAnswer != "A" {
		t.Fatalf("catalog state leaked through returned quiz: %+v", again.Questions[0])
	}
}

func TestCatalogDeleteQuizRunsHooks(t *testing.T) {
	ctx := context.Background()
	catalog, quizID := seededCatalog(t)

	var purged int64
	catalog.OnQuizDeleted(func(id int64) { purged = id })

	if err := catalog.DeleteQuiz(ctx, quizID); err != nil {
		t.Fatalf("delete quiz: %v", err)
	}
	if purged != quizID {
		t.Fatalf("expected hook for quiz %d, got %d", quizID, purged)
	}
	if _, err := catalog.LoadQuiz(ctx, quizID); err != domain.ErrQuizNotFound {
		t.Fatalf("expected quiz gone, got %v", err)
	}
	if err := catalog.DeleteQuiz(ctx, quizID); err != domain.ErrQuizNotFound {
		t.Fatalf("expected second delete to miss, got %v", err)
	}
}

func TestCatalogListsCourseQuizzes(t *testing.T) {
	ctx := context.Background()
	catalog, quizID := seededCatalog(t)

	summaries, err := catalog.ListCourseQuizzes(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != quizID || summaries[0].TotalQuestions != 2 {
		t.Fatalf("unexpected summaries: %+v", summaries)
	}

	if _, err := catalog.ListCourseQuizzes(ctx, 42); err != domain.ErrCourseNotFound {
		t.Fatalf("expected course not found, got %v", err)
	}
	if _, err := catalog.CreateQuiz(ctx, domain.QuizInput{CourseID: 42, Title: "x"}); err != domain.ErrCourseNotFound {
		t.Fatalf("expected course not found on create, got %v", err)
	}
}
