package redis

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"jcert-quiz-service/internal/domain"
)

// DefaultFeedChannel is the Pub/Sub channel result events travel on.
const DefaultFeedChannel = "quiz:results"

// Feed fans result events out across instances through Redis Pub/Sub.
type Feed struct {
	client  *redis.Client
	channel string
	log     zerolog.Logger
}

func NewFeed(client *redis.Client, channel string, log zerolog.Logger) *Feed {
	if channel == "" {
		channel = DefaultFeedChannel
	}
	return &Feed{
		client:  client,
		channel: channel,
		log:     log.With().Str("component", "redis_feed").Logger(),
	}
}

func (f *Feed) Publish(ctx context.Context, event domain.ResultEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, f.channel, payload).Err()
}

// Subscribe waits for the subscription to be confirmed before returning,
// so events published afterwards are not missed.
func (f *Feed) Subscribe(ctx context.Context) (<-chan domain.ResultEvent, func(), error) {
	sub := f.client.Subscribe(ctx, f.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan domain.ResultEvent, 8)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var event domain.ResultEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				f.log.Warn().Err(err).Msg("decode result event")
				continue
			}
			select {
			case out <- event:
			default:
				select {
				case <-out:
				default:
				}
				out <- event
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() { _ = sub.Close() })
	}
	return out, cancel, nil
}
