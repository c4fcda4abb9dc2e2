package memory

import (
	"context"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"jcert-quiz-service/internal/domain"
)

// QuizLoader fetches quiz content from the backing store.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
}

// QuizRepository caches quiz definitions with TTL to avoid repeated DB hits.
// Only the learner-facing read path goes through it.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	cache map[int64]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		cache:  make(map[int64]cachedQuiz),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	if quiz, ok := r.lookup(quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(strconv.FormatInt(quizID, 10), func() (interface{}, error) {
		if quiz, ok := r.lookup(quizID); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		if r.ttl <= 0 {
			return quiz, nil
		}

		r.mu.Lock()
		r.cache[quizID] = cachedQuiz{
			quiz:      quiz,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Invalidate drops the cached definition so the next read reloads it.
func (r *QuizRepository) Invalidate(_ context.Context, quizID int64) error {
	r.mu.Lock()
	delete(r.cache, quizID)
	r.mu.Unlock()
	return nil
}

func (r *QuizRepository) lookup(quizID int64) (domain.Quiz, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[quizID]
	if !ok || !entry.expiresAt.After(now) {
		return domain.Quiz{}, false
	}
	return entry.quiz, true
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(rand.Int64N(jitterMax+1))
}
