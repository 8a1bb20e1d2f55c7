// Package events carries platform events to module handlers: an in-process
// buffered bus and the registry that binds module handlers to it.
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leeforge/bot/errors"
	"github.com/leeforge/bot/extension"
	"go.uber.org/zap"
)

// DefaultBufferSize is the bus buffer used when none is configured.
const DefaultBufferSize = 1024

// Bus implements extension.EventBus with a buffered channel and backpressure.
// Every handler runs on its own goroutine.
type Bus struct {
	subscribers map[string][]subscriberEntry
	mu          sync.RWMutex
	sendMu      sync.RWMutex // held by Publish while sending; Close takes it to flip closed
	ch          chan eventEnvelope
	wg          sync.WaitGroup
	closed      atomic.Bool
	logger      *zap.Logger
	nextID      atomic.Uint64
	done        chan struct{} // signals dispatcher goroutine to stop
	stopped     chan struct{} // closed when the dispatcher returns
}

var _ extension.EventBus = (*Bus)(nil)

type eventEnvelope struct {
	ctx   context.Context
	event extension.Event
}

type subscriberEntry struct {
	id      uint64
	handler extension.EventHandler
}

// subscription implements extension.Subscription.
type subscription struct {
	bus   *Bus
	topic string
	id    uint64
}

func (s *subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	subs := s.bus.subscribers[s.topic]
	for i, entry := range subs {
		if entry.id == s.id {
			s.bus.subscribers[s.topic] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// NewBus creates a Bus with the given buffer size.
func NewBus(bufferSize int, logger *zap.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	bus := &Bus{
		subscribers: make(map[string][]subscriberEntry),
		ch:          make(chan eventEnvelope, bufferSize),
		logger:      logger,
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}

	go bus.dispatch()
	return bus
}

func (b *Bus) dispatch() {
	defer close(b.stopped)
	for {
		select {
		case env := <-b.ch:
			b.fanOut(env)
		case <-b.done:
			// Drain remaining events in channel
			for {
				select {
				case env := <-b.ch:
					b.fanOut(env)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) fanOut(env eventEnvelope) {
	b.mu.RLock()
	subs := append([]subscriberEntry{}, b.subscribers[env.event.Name]...)
	b.mu.RUnlock()

	for _, entry := range subs {
		b.wg.Add(1)
		go b.invoke(env, entry.handler)
	}
}

func (b *Bus) invoke(env eventEnvelope, h extension.EventHandler) {
	defer b.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("event", env.event.Name),
				zap.Error(errors.FromPanic(r)))
		}
	}()

	if err := h(env.ctx, env.event); err != nil {
		b.logger.Warn("event handler error",
			zap.String("event", env.event.Name),
			zap.String("tenant", env.event.TenantID),
			zap.Error(err))
	}
}

// Publish sends an event. Blocks until buffer has space or ctx expires.
// An event accepted with a nil error is always delivered before Close returns.
func (b *Bus) Publish(ctx context.Context, event extension.Event) error {
	if b.closed.Load() {
		return extension.ErrBusClosed
	}

	b.sendMu.RLock()
	defer b.sendMu.RUnlock()
	if b.closed.Load() {
		return extension.ErrBusClosed
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	env := eventEnvelope{ctx: ctx, event: event}

	select {
	case b.ch <- env:
		return nil
	default:
		// Buffer full -- block with backpressure
		select {
		case b.ch <- env:
			return nil
		case <-ctx.Done():
			return extension.ErrPublishTimeout
		}
	}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic string, handler extension.EventHandler) extension.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID.Add(1)
	b.subscribers[topic] = append(b.subscribers[topic], subscriberEntry{
		id:      id,
		handler: handler,
	})

	return &subscription{bus: b, topic: topic, id: id}
}

// Close stops accepting new events, drains pending, and waits for in-flight handlers.
func (b *Bus) Close() error {
	b.sendMu.Lock()
	already := b.closed.Swap(true)
	b.sendMu.Unlock()
	if already {
		return nil
	}

	close(b.done) // signal dispatcher to drain and stop
	<-b.stopped   // no fan-out after this point
	b.wg.Wait()   // wait for in-flight handlers
	return nil
}
