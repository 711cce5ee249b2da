package capture

import (
	"log"
	"sync"

	"github.com/mhollis/marginote/backend/internal/model/capture"
)

// Broadcaster fans manager events out to live subscribers (websocket
// connections, SSE streams). Publish never blocks: a subscriber that
// stops draining loses events rather than stalling the session.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan capture.Event
	next int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan capture.Event)}
}

// Publish delivers an event to every subscriber. Safe to pass directly
// as the manager's onEvent callback.
func (b *Broadcaster) Publish(ev capture.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("[broadcast] subscriber %d lagging, dropping event %s", id, ev.Type)
		}
	}
}

// Subscribe registers a new listener. The returned cancel function
// removes the subscription and closes the channel.
func (b *Broadcaster) Subscribe() (<-chan capture.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan capture.Event, 32)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}
