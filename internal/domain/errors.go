package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a question id does not resolve.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrResultNotFound covers both missing results and results owned by someone else.
	ErrResultNotFound = errors.New("result not found")
	// ErrCourseNotFound is returned when a quiz references an unknown course.
	ErrCourseNotFound = errors.New("course not found")

	// ErrInvalidSubmission is returned for malformed submissions.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrEmptyQuiz is returned when a learner submits answers for a quiz with no questions.
	ErrEmptyQuiz = errors.New("quiz has no questions")
	// ErrInvalidQuestion is returned when an authored question breaks the answer-key invariants.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrInvalidQuiz is returned when quiz metadata is out of range.
	ErrInvalidQuiz = errors.New("invalid quiz")

	// ErrPersistence wraps storage failures; nothing partial is kept when it is returned from a write.
	ErrPersistence = errors.New("persistence failure")

	// ErrUnauthenticated is returned when no verified identity is attached to a request.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is returned when the identity lacks the admin role.
	ErrForbidden = errors.New("admin access required")
)
