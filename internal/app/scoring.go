package app

import (
	"strings"

	"jcert-quiz-service/internal/domain"
)

// LegacyPassThreshold is the fixed cut-off older deployments graded against.
const LegacyPassThreshold = 60.0

// PassPolicy decides which threshold a quiz is graded against.
// A zero Fixed value means each quiz's own pass_score applies.
type PassPolicy struct {
	Fixed float64
}

// Threshold returns the pass percentage for the given quiz.
func (p PassPolicy) Threshold(quiz domain.Quiz) float64 {
	if p.Fixed > 0 {
		return p.Fixed
	}
	return quiz.PassScore
}

// Score grades answers against the quiz's answer key. It is pure: the same
// inputs always produce the same result, and nothing is read from the client
// beyond the raw submitted values.
func Score(quiz domain.Quiz, answers map[int64]string, timeTaken int, threshold float64) domain.ScoreResult {
	result := domain.ScoreResult{
		QuizID:         quiz.ID,
		TotalQuestions: len(quiz.Questions),
		TimeTaken:      timeTaken,
		PassThreshold:  threshold,
		Details:        make([]domain.AnswerDetail, 0, len(quiz.Questions)),
	}

	totalScore, maxScore := 0, 0
	for _, q := range quiz.Questions {
		points := q.Weight()
		maxScore += points

		submitted := NormalizeAnswer(q, answers[q.ID])
		correct := submitted != "" && submitted == q.CorrectAnswer
		if correct {
			totalScore += points
			result.CorrectCount++
		}
		result.Details = append(result.Details, domain.AnswerDetail{
			QuestionID: q.ID,
			UserAnswer: submitted,
			IsCorrect:  correct,
		})
	}

	if maxScore > 0 {
		result.ScorePercentage = float64(totalScore) * 100 / float64(maxScore)
	}
	// an empty quiz never passes, even against a zero threshold
	result.Passed = maxScore > 0 && result.ScorePercentage >= threshold
	return result
}

// NormalizeAnswer maps a submitted value onto the canonical option letter.
// Letters win over texts: "B" is always slot B when slot B is populated.
// Values that resolve to no slot are returned trimmed and will never match.
func NormalizeAnswer(q domain.Question, raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	if _, ok := q.Option(value); ok {
		return strings.ToUpper(value)
	}
	for i, text := range q.Options {
		if i >= domain.MaxOptions || text == "" {
			continue
		}
		if text == raw || strings.TrimSpace(text) == value {
			return domain.OptionKeys[i]
		}
	}
	return value
}
