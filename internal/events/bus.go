package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/challenge-api/internal/observability"
)

// Handler reacts to a lifecycle event in-process.
type Handler func(ctx context.Context, event LifecycleEvent) error

// Publisher forwards lifecycle events to an external stream.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, event LifecycleEvent) error
}

type namedHandler struct {
	name string
	fn   Handler
}

// Bus fans committed lifecycle events out to subscribers and publishers.
// Delivery failures and panics are logged and never reach the caller.
type Bus struct {
	mu         sync.RWMutex
	handlers   []namedHandler
	publishers []Publisher
	logger     zerolog.Logger
}

// NewBus constructs an empty bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{logger: logger.With().Str("component", "lifecycle_bus").Logger()}
}

// Subscribe registers an in-process handler.
func (b *Bus) Subscribe(name string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, namedHandler{name: name, fn: fn})
}

// AddPublisher registers an external stream publisher.
func (b *Bus) AddPublisher(publisher Publisher) {
	if publisher == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishers = append(b.publishers, publisher)
}

// Dispatch delivers the event. Callers invoke it only after the transition has committed.
func (b *Bus) Dispatch(ctx context.Context, event LifecycleEvent) {
	b.mu.RLock()
	handlers := append([]namedHandler(nil), b.handlers...)
	publishers := append([]Publisher(nil), b.publishers...)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(h.name, event, func() error { return h.fn(ctx, event) })
	}
	for _, p := range publishers {
		p := p
		b.deliver(p.Name(), event, func() error { return p.Publish(ctx, event) })
	}
}

func (b *Bus) deliver(target string, event LifecycleEvent, fn func() error) {
	err := safeCall(fn)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		b.logger.Warn().
			Err(err).
			Str("target", target).
			Uint("challenge_id", event.ChallengeID).
			Str("previous", string(event.Previous)).
			Str("next", string(event.Next)).
			Msg("lifecycle event delivery failed")
	}
	observability.LifecycleEvents().WithLabelValues(target, outcome).Inc()
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
