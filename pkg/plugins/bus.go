package plugins

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// HandlerFunc handles one event
type HandlerFunc func(ctx context.Context, event Event) error

// Bus is an asynchronous publish-subscribe hook bus. Handlers run on their
// own goroutines; their errors and panics are logged and never reach the
// emitter.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]handlerEntry
	stopCh   chan struct{}
	stopped  bool
	wg       sync.WaitGroup
	log      zerolog.Logger
	now      func() time.Time
}

type handlerEntry struct {
	name    string
	handler HandlerFunc
}

// NewBus creates a bus that logs through logger
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]handlerEntry),
		stopCh:   make(chan struct{}),
		log:      logger,
		now:      time.Now,
	}
}

// Subscribe registers a named handler for an event type
func (b *Bus) Subscribe(eventType EventType, name string, handler HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handlerEntry{
		name:    name,
		handler: handler,
	})

	b.log.Debug().
		Str("event", string(eventType)).
		Str("handler", name).
		Msg("subscribed to event")
}

// Unsubscribe removes every handler registered under name for eventType
func (b *Bus) Unsubscribe(eventType EventType, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers, exists := b.handlers[eventType]
	if !exists {
		return
	}

	filtered := make([]handlerEntry, 0, len(handlers))
	for _, h := range handlers {
		if h.name != name {
			filtered = append(filtered, h)
		}
	}
	b.handlers[eventType] = filtered
}

// Emit delivers event to its subscribers asynchronously. A zero Time is
// stamped with the current time.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.stopped {
		return
	}

	handlers := b.handlers[event.Type]
	if len(handlers) == 0 {
		return
	}
	if event.Time.IsZero() {
		event.Time = b.now()
	}

	for _, h := range handlers {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.run(ctx, h, event)
		}()
	}
}

// EmitSync delivers event and waits for every handler. It returns the
// first handler error.
func (b *Bus) EmitSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	if b.stopped {
		b.mu.RUnlock()
		return nil
	}
	handlers := append([]handlerEntry(nil), b.handlers[event.Type]...)
	b.mu.RUnlock()

	if event.Time.IsZero() {
		event.Time = b.now()
	}

	var (
		firstErr error
		errOnce  sync.Once
		wg       sync.WaitGroup
	)
	for _, h := range handlers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.run(ctx, h, event); err != nil {
				errOnce.Do(func() { firstErr = err })
			}
		}()
	}
	wg.Wait()
	return firstErr
}

func (b *Bus) run(ctx context.Context, h handlerEntry, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("event", string(event.Type)).
				Str("handler", h.name).
				Interface("panic", r).
				Msg("handler panicked")
		}
	}()

	if err = h.handler(ctx, event); err != nil {
		b.log.Error().
			Err(err).
			Str("event", string(event.Type)).
			Str("handler", h.name).
			Msg("handler returned error")
	}
	return err
}

// Stop rejects further events and waits for in-flight handlers
func (b *Bus) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	close(b.stopCh)
	b.mu.Unlock()

	b.wg.Wait()
	b.log.Info().Msg("plugin bus stopped")
}

// StopCh is closed when the bus stops
func (b *Bus) StopCh() <-chan struct{} {
	return b.stopCh
}

// HandlerCount returns the number of handlers for eventType
func (b *Bus) HandlerCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}
