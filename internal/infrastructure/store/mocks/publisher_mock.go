package mocks

import (
	"context"
	"sync"

	"github.com/example/stock-ledger/internal/infrastructure/store"
)

// MockPublisher records published events.
type MockPublisher struct {
	mu         sync.Mutex
	Published  []PublishCall
	PublishErr error
}

// PublishCall records parameters passed to Publish
type PublishCall struct {
	Key   string
	Event store.Event
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (p *MockPublisher) Publish(ctx context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, _ := event.(store.Event)
	p.Published = append(p.Published, PublishCall{Key: key, Event: e})
	return p.PublishErr
}

// EventTypes lists the published event types in order.
func (p *MockPublisher) EventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.Published))
	for i, c := range p.Published {
		types[i] = c.Event.EventType
	}
	return types
}
