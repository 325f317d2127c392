// Package eventbus provides in-process pub/sub for run events, feeding
// live streams like the SSE endpoint.
package eventbus

import (
	"sync"

	"github.com/jxucoder/autopr/model"
)

// Bus fans run events out to subscribers keyed by run ID.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]chan *model.Event
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{
		subs: make(map[string][]chan *model.Event),
	}
}

// Subscribe creates a channel that receives events for a run.
func (b *Bus) Subscribe(runID string) chan *model.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *model.Event, 64)
	b.subs[runID] = append(b.subs[runID], ch)
	return ch
}

// Unsubscribe removes a channel from the run's subscribers and closes it.
func (b *Bus) Unsubscribe(runID string, ch chan *model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[runID]
	for i, s := range subs {
		if s == ch {
			b.subs[runID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish sends an event to all subscribers for a run.
func (b *Bus) Publish(runID string, event *model.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[runID] {
		select {
		case ch <- event:
		default:
			// Drop event if subscriber is too slow.
		}
	}
}
