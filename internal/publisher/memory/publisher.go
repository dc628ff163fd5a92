// Package memory records published events for inspection in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/licitawatch/licitawatch/internal/publisher"
)

// Publisher keeps every published event in order.
type Publisher struct {
	mu     sync.RWMutex
	events []publisher.Event
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish appends the event and returns a pseudo message id.
func (p *Publisher) Publish(_ context.Context, ev publisher.Event) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return fmt.Sprintf("memory-%d", len(p.events)), nil
}

// Events returns a copy of everything published so far.
func (p *Publisher) Events() []publisher.Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]publisher.Event, len(p.events))
	copy(out, p.events)
	return out
}
