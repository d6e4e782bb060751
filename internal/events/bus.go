// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrBusClosed   = errors.New("event bus is shutting down")
	ErrChannelFull = errors.New("event channel full")
)

// Bus fans execution events out to subscribers. Publish queues for a single
// worker, so handlers see events in publish order; PublishSync runs them
// inline. Handlers of one event run in subscription order.
type Bus struct {
	mu   sync.RWMutex
	subs []subscriber

	queue  chan Event
	stop   chan struct{}
	done   chan struct{}
	closed atomic.Bool

	published atomic.Uint64
	dropped   atomic.Uint64
	logger    *zap.Logger
}

// NewBus starts a bus whose queue holds bufferSize events.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	b := &Bus{
		queue:  make(chan Event, bufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger.Named("event_bus"),
	}
	go b.run()
	return b
}

// Subscribe registers handler for eventType; AllEvents receives everything.
func (b *Bus) Subscribe(eventType EventType, handler Handler) *Subscription {
	id := uuid.NewString()

	b.mu.Lock()
	b.subs = append(b.subs, subscriber{id: id, eventType: eventType, handler: handler})
	b.mu.Unlock()

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))
	return &Subscription{id: id, bus: b}
}

func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) *Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

func (b *Bus) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			b.logger.Debug("Handler unsubscribed", zap.String("subscription_id", id))
			return
		}
	}
}

// Publish queues event without blocking. A full queue drops it.
func (b *Bus) Publish(event Event) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	select {
	case b.queue <- event:
		b.published.Add(1)
		return nil
	default:
		b.dropped.Add(1)
		b.logger.Warn("Event channel full, dropping event",
			zap.String("event_type", string(event.Type())))
		return ErrChannelFull
	}
}

// PublishSync delivers event to every matching handler before returning.
// Handler errors are joined; one failing handler does not stop the rest.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range b.matching(event.Type()) {
		if err := s.handler.Handle(ctx, event); err != nil {
			b.logger.Error("Handler error",
				zap.String("event_type", string(event.Type())),
				zap.String("handler_id", s.id),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("handlers failed: %w", errors.Join(errs...))
	}
	return nil
}

// matching snapshots the subscribers of t so handlers run unlocked.
func (b *Bus) matching(t EventType) []subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []subscriber
	for _, s := range b.subs {
		if s.matches(t) {
			out = append(out, s)
		}
	}
	return out
}

func (b *Bus) run() {
	defer close(b.done)
	for {
		select {
		case event := <-b.queue:
			b.deliver(event)
		case <-b.stop:
			// Deliver what was accepted before shutdown.
			for {
				select {
				case event := <-b.queue:
					b.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) deliver(event Event) {
	if err := b.PublishSync(context.Background(), event); err != nil {
		b.logger.Error("Failed to process event",
			zap.String("event_type", string(event.Type())),
			zap.Error(err))
	}
}

// Shutdown stops accepting events and waits until the queued ones are
// delivered or ctx ends.
func (b *Bus) Shutdown(ctx context.Context) error {
	if b.closed.CompareAndSwap(false, true) {
		b.logger.Info("Shutting down event bus")
		close(b.stop)
	}
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout")
		return ctx.Err()
	}
}

// Stats is a point-in-time view of the bus.
type Stats struct {
	BufferSize      int            `json:"buffer_size"`
	PendingEvents   int            `json:"pending_events"`
	EventTypes      int            `json:"event_types"`
	HandlersPerType map[string]int `json:"handlers_per_type"`
	Published       uint64         `json:"published"`
	Dropped         uint64         `json:"dropped"`
}

func (b *Bus) Stats() Stats {
	b.mu.RLock()
	counts := make(map[string]int)
	for _, s := range b.subs {
		counts[string(s.eventType)]++
	}
	b.mu.RUnlock()

	return Stats{
		BufferSize:      cap(b.queue),
		PendingEvents:   len(b.queue),
		EventTypes:      len(counts),
		HandlersPerType: counts,
		Published:       b.published.Load(),
		Dropped:         b.dropped.Load(),
	}
}
