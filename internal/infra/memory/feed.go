package memory

import (
	"context"
	"sync"

	"jcert-quiz-service/internal/domain"
)

// Feed broadcasts result events to in-process subscribers.
type Feed struct {
	mu          sync.Mutex
	subscribers map[chan domain.ResultEvent]struct{}
}

func NewFeed() *Feed {
	return &Feed{subscribers: make(map[chan domain.ResultEvent]struct{})}
}

func (f *Feed) Publish(_ context.Context, event domain.ResultEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- event:
		default:
			// slow subscriber: drop its oldest pending event rather than block the publisher
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
	return nil
}

func (f *Feed) Subscribe(_ context.Context) (<-chan domain.ResultEvent, func(), error) {
	ch := make(chan domain.ResultEvent, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel, nil
}
