package server

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexaa/internal/browse"
)

const subscriberBuffer = 16

// broadcaster copies every event from one source channel to each subscriber. A subscriber whose
// buffer is full misses the event; the others still get it.
type broadcaster struct {
	src    func() <-chan browse.Event
	logger *log.Logger
	once   sync.Once

	mu     sync.Mutex
	subs   map[chan browse.Event]struct{}
	closed bool
}

func newBroadcaster(src func() <-chan browse.Event, logger *log.Logger) *broadcaster {
	return &broadcaster{src: src, logger: logger, subs: make(map[chan browse.Event]struct{})}
}

// subscribe registers a subscriber and starts reading the source on first use. The channel is
// closed by the returned cancel func or when the source closes.
func (b *broadcaster) subscribe() (<-chan browse.Event, func()) {
	ch := make(chan browse.Event, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	b.once.Do(func() { go b.run(b.src()) })
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
}

func (b *broadcaster) run(src <-chan browse.Event) {
	for e := range src {
		b.mu.Lock()
		for ch := range b.subs {
			select {
			case ch <- e:
			default:
				b.logger.Warn("event subscriber is behind, dropping event", "event", e.Name)
			}
		}
		b.mu.Unlock()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

func (b *broadcaster) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
