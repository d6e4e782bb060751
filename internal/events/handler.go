// internal/events/handler.go
package events

import (
	"context"
	"sync"
)

// Handler processes events. Handlers run on the bus worker in publish order
// and should return quickly.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

type subscriber struct {
	id        string
	eventType EventType
	handler   Handler
}

func (s subscriber) matches(t EventType) bool {
	return s.eventType == AllEvents || s.eventType == t
}

// Subscription is a registered handler.
type Subscription struct {
	id   string
	bus  *Bus
	once sync.Once
}

func (s *Subscription) ID() string {
	return s.id
}

// Unsubscribe removes the handler. Calling it again is a no-op.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { s.bus.remove(s.id) })
}
