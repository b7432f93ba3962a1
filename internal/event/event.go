package event

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

const (
	defaultMaxInFlight    = 10000
	defaultHandlerTimeout = 30 * time.Second
)

type Event interface {
	Name() string
}

type Handler func(ctx context.Context, e Event) error

// Bus is an in-memory event bus. Handlers run asynchronously; Publish never
// blocks on handler work as long as fewer than the in-flight limit are
// running.
type Bus struct {
	inflight chan struct{}
	timeout  time.Duration

	wg       sync.WaitGroup
	mu       sync.RWMutex
	handlers map[string][]Handler
}

type Option func(*Bus)

// WithMaxInFlight caps the number of concurrently running handlers.
func WithMaxInFlight(n int) Option {
	return func(b *Bus) {
		b.inflight = make(chan struct{}, n)
	}
}

// WithHandlerTimeout bounds how long a single handler may run.
func WithHandlerTimeout(d time.Duration) Option {
	return func(b *Bus) {
		b.timeout = d
	}
}

// NewBus creates a new event bus. Callers should call Stop on shutdown to
// drain in-flight handlers.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		inflight: make(chan struct{}, defaultMaxInFlight),
		timeout:  defaultHandlerTimeout,
		handlers: make(map[string][]Handler),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Subscribe registers h for events with the given name.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[name] = append(b.handlers[name], h)
}

// Publish dispatches e to every handler subscribed to its name.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, h := range b.handlers[e.Name()] {
		b.dispatch(ctx, h, e)
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, e Event) {
	b.wg.Add(1)
	b.inflight <- struct{}{}

	go func() {
		// Handlers outlive the request that published the event.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ctx, "event: handler panic",
					"event", e.Name(),
					"error", fmt.Errorf("%v, stack: %s", r, debug.Stack()),
				)
			}

			cancel()
			<-b.inflight
			b.wg.Done()
		}()

		if err := h(ctx, e); err != nil {
			slog.ErrorContext(ctx, "event: handle event failed",
				"event", e.Name(),
				"error", err,
			)
		}
	}()
}

// Stop waits for all in-flight handlers to finish.
func (b *Bus) Stop() {
	b.wg.Wait()
}
