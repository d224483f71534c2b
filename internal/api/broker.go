package api

import (
	"sync"

	"lastmile/internal/model"
)

// EventBroker fans session events out to stream subscribers. It also
// satisfies sim.Publisher.
type EventBroker interface {
	Subscribe(sessionID string) chan model.Event
	Unsubscribe(sessionID string, ch chan model.Event)
	Publish(sessionID string, evt model.Event)
}

// Broker is the in-process EventBroker.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan model.Event]struct{} // sessionId -> set of channels
	size int
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan model.Event]struct{}{}, size: 64}
}

func (b *Broker) Subscribe(sessionID string) chan model.Event {
	ch := make(chan model.Event, b.size)
	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = map[chan model.Event]struct{}{}
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(sessionID string, ch chan model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[sessionID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, sessionID)
	}
	close(ch)
}

// Publish never blocks: slow subscribers miss events.
func (b *Broker) Publish(sessionID string, evt model.Event) {
	b.mu.Lock()
	for ch := range b.subs[sessionID] {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}

// Subscribers returns the number of subscribers of a session.
func (b *Broker) Subscribers(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[sessionID])
}
