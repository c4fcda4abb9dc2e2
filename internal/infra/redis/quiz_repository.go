package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"jcert-quiz-service/internal/domain"
)

// QuizLoader fetches quiz content from the backing store.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
}

// QuizRepository caches quiz definitions in Redis and falls back to a loader on cache miss.
// Definitions are stored as: SET quiz:{quizID}:definition {json} EX ttl
// Redis errors degrade to the loader; they never fail a read on their own.
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group
	log    zerolog.Logger
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration, log zerolog.Logger) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		log:    log.With().Str("component", "redis_quiz_cache").Logger(),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	key := definitionKey(quizID)
	if quiz, ok := r.cached(ctx, key); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(ctx, key); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		payload, err := json.Marshal(quiz)
		if err != nil {
			return quiz, nil
		}
		if err := r.client.Set(ctx, key, payload, r.ttlWithJitter()).Err(); err != nil {
			r.log.Warn().Err(err).Int64("quiz_id", quizID).Msg("cache quiz definition")
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Invalidate deletes the cached definition.
func (r *QuizRepository) Invalidate(ctx context.Context, quizID int64) error {
	return r.client.Del(ctx, definitionKey(quizID)).Err()
}

func (r *QuizRepository) cached(ctx context.Context, key string) (domain.Quiz, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn().Err(err).Str("key", key).Msg("read quiz definition")
		}
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("decode quiz definition")
		return domain.Quiz{}, false
	}
	return quiz, true
}

func definitionKey(quizID int64) string {
	return "quiz:" + strconv.FormatInt(quizID, 10) + ":definition"
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(rand.Int64N(jitterMax+1))
}
