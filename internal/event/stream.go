package event

import (
	"context"
	"sync"
)

// queue is an unbounded subscriber that never blocks the emitter.
type queue struct {
	mu     sync.Mutex
	items  []Event
	notify chan struct{}
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

func (q *queue) Receive(e Event) {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *queue) drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Stream replays the buffer of b and then follows it live, delivering every
// event on the returned channel. The channel is closed after the first event
// for which stop returns true has been sent, or when ctx is done.
// A nil stop defaults to [Event.IsPipelineComplete].
func (b *Bus) Stream(ctx context.Context, stop func(Event) bool) <-chan Event {
	if stop == nil {
		stop = Event.IsPipelineComplete
	}

	q := newQueue()
	id := b.Replay(q)
	out := make(chan Event)

	go func() {
		defer close(out)
		defer b.Unsubscribe(id)

		for {
			for _, e := range q.drain() {
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
				if stop(e) {
					return
				}
			}
			select {
			case <-q.notify:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
