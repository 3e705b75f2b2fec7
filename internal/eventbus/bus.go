// Package eventbus is the in-process notification channel used to tell
// dashboards, caches and relays that something happened to an order.
//
// A Bus is constructed once at startup and handed to whoever needs it.
// Delivery is at-most-once with no persistence.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pdv-service/internal/util"

	"go.uber.org/zap"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("event bus closed")

// Handler receives the payload of a published event.
type Handler func(ctx context.Context, payload interface{}) error

type subscription struct {
	id      uint64
	handler Handler
}

// Bus maps event names to ordered subscriber lists
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID uint64
	async  bool
	closed bool
	wg     sync.WaitGroup
	logger *zap.Logger
}

// Option configures a Bus
type Option func(*Bus)

// WithAsync dispatches every handler in its own goroutine.
func WithAsync() Option {
	return func(b *Bus) { b.async = true }
}

// WithLogger overrides the bus logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bus) { b.logger = logger }
}

// New creates a new event bus
func New(opts ...Option) *Bus {
	b := &Bus{
		subs:   make(map[string][]subscription),
		logger: util.GetLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for event and returns a function that removes it.
func (b *Bus) Subscribe(event string, handler Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[event] = append(b.subs[event], subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(event, id) })
	}
}

func (b *Bus) remove(event string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.subs[event]
	kept := make([]subscription, 0, len(current))
	for _, s := range current {
		if s.id != id {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(b.subs, event)
		return
	}
	b.subs[event] = kept
}

// SubscriberCount returns how many handlers are registered for event.
func (b *Bus) SubscriberCount(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[event])
}

// Publish invokes every current subscriber of event in registration order.
// A failing or panicking handler does not stop the others; in synchronous
// mode all handler errors are returned joined.
func (b *Bus) Publish(ctx context.Context, event string, payload interface{}) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	handlers := make([]subscription, len(b.subs[event]))
	copy(handlers, b.subs[event])
	if b.async {
		b.wg.Add(len(handlers))
	}
	b.mu.RUnlock()

	util.EventsPublishedTotal.WithLabelValues(event).Inc()

	if b.async {
		for _, s := range handlers {
			go func(s subscription) {
				defer b.wg.Done()
				if err := b.invoke(ctx, event, s, payload); err != nil {
					b.logger.Error("Async event handler failed",
						zap.String("event", event),
						zap.Uint64("subscriber", s.id),
						zap.Error(err))
				}
			}(s)
		}
		return nil
	}

	var errs []error
	for _, s := range handlers {
		if err := b.invoke(ctx, event, s, payload); err != nil {
			b.logger.Error("Event handler failed",
				zap.String("event", event),
				zap.Uint64("subscriber", s.id),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) invoke(ctx context.Context, event string, s subscription, payload interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler %d for %s panicked: %v", s.id, event, r)
		}
		if err != nil {
			util.EventHandlerFailuresTotal.WithLabelValues(event).Inc()
		}
	}()
	return s.handler(ctx, payload)
}

// Close rejects further publishes and waits for in-flight async handlers.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
}
