package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/pkg/logger"
)

// Handler reacts to one event. A returned error is logged and counted.
type Handler func(ctx context.Context, evt Event) error

// HandlerID identifies a registration for Unregister.
type HandlerID uint64

type registration struct {
	id   HandlerID
	name string
	fn   Handler
}

// Bus is the in-process publish/subscribe backbone. Emit never blocks; a single
// dispatch goroutine delivers events FIFO to handlers in registration order.
type Bus struct {
	log         *logger.Logger
	stopTimeout time.Duration

	mu        sync.RWMutex
	handlers  map[Type][]registration
	observers []registration
	nextID    HandlerID

	qmu    sync.Mutex
	queue  []Event
	notify chan struct{}

	stateMu sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	cancel  context.CancelFunc

	processed atomic.Uint64
	failures  atomic.Uint64
}

// NewBus creates a stopped bus.
func NewBus(log *logger.Logger, stopTimeout time.Duration) *Bus {
	if stopTimeout <= 0 {
		stopTimeout = 2 * time.Second
	}
	return &Bus{
		log:         log,
		stopTimeout: stopTimeout,
		handlers:    make(map[Type][]registration),
		notify:      make(chan struct{}, 1),
	}
}

// Register subscribes fn to events of type t.
func (b *Bus) Register(t Type, name string, fn Handler) HandlerID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[t] = append(b.handlers[t], registration{id: b.nextID, name: name, fn: fn})
	return b.nextID
}

// Unregister removes a handler. It reports whether the handler was found.
func (b *Bus) Unregister(t Type, id HandlerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	regs := b.handlers[t]
	for i, r := range regs {
		if r.id == id {
			b.handlers[t] = append(regs[:i:i], regs[i+1:]...)
			return true
		}
	}
	return false
}

// AddObserver subscribes fn to every event type. Observers run after typed handlers.
func (b *Bus) AddObserver(name string, fn Handler) HandlerID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.observers = append(b.observers, registration{id: b.nextID, name: name, fn: fn})
	return b.nextID
}

// RemoveObserver removes an observer added with AddObserver.
func (b *Bus) RemoveObserver(id HandlerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, r := range b.observers {
		if r.id == id {
			b.observers = append(b.observers[:i:i], b.observers[i+1:]...)
			return true
		}
	}
	return false
}

// Emit enqueues evt without blocking.
func (b *Bus) Emit(evt Event) {
	b.qmu.Lock()
	b.queue = append(b.queue, evt)
	b.qmu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Publish builds an event from p and enqueues it.
func (b *Bus) Publish(p Payload) error {
	evt, err := New(p)
	if err != nil {
		return err
	}
	b.Emit(evt)
	return nil
}

// Start launches the dispatch loop. Calling Start on a running bus is a no-op.
// It reports false when a loop abandoned by a timed out Stop is still
// draining.
func (b *Bus) Start() bool {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	if b.running {
		return true
	}
	if b.doneCh != nil {
		select {
		case <-b.doneCh:
		default:
			b.log.Warn("Event bus still draining, start refused")
			return false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.stopCh = make(chan struct{})
	b.doneCh = make(chan struct{})
	b.running = true

	go b.loop(ctx, b.stopCh, b.doneCh)
	b.log.Info("Event bus started")
	return true
}

// Stop signals the loop to drain and waits up to the stop timeout.
// It reports false when the bus was not running.
func (b *Bus) Stop() bool {
	b.stateMu.Lock()
	if !b.running {
		b.stateMu.Unlock()
		return false
	}
	b.running = false
	close(b.stopCh)
	done, cancel := b.doneCh, b.cancel
	b.stateMu.Unlock()

	timer := time.NewTimer(b.stopTimeout)
	defer timer.Stop()
	select {
	case <-done:
		b.log.Info("Event bus stopped")
	case <-timer.C:
		b.log.Warn("Event bus stop timed out, abandoning queued events",
			logger.DurationField("timeout", b.stopTimeout),
			logger.IntField("queued", b.queued()))
	}
	cancel()
	return true
}

// Running reports whether the dispatch loop is active.
func (b *Bus) Running() bool {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return b.running
}

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() dto.BusStats {
	return dto.BusStats{
		Running:         b.Running(),
		Queued:          b.queued(),
		Processed:       b.processed.Load(),
		HandlerFailures: b.failures.Load(),
	}
}

func (b *Bus) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		if evt, ok := b.pop(); ok {
			b.dispatch(ctx, evt)
			continue
		}
		select {
		case <-stop:
			for {
				evt, ok := b.pop()
				if !ok {
					return
				}
				b.dispatch(ctx, evt)
			}
		case <-b.notify:
		}
	}
}

func (b *Bus) pop() (Event, bool) {
	b.qmu.Lock()
	defer b.qmu.Unlock()
	if len(b.queue) == 0 {
		return Event{}, false
	}
	evt := b.queue[0]
	b.queue[0] = Event{}
	b.queue = b.queue[1:]
	return evt, true
}

func (b *Bus) queued() int {
	b.qmu.Lock()
	defer b.qmu.Unlock()
	return len(b.queue)
}

func (b *Bus) dispatch(ctx context.Context, evt Event) {
	b.mu.RLock()
	regs := make([]registration, 0, len(b.handlers[evt.Type])+len(b.observers))
	regs = append(regs, b.handlers[evt.Type]...)
	regs = append(regs, b.observers...)
	b.mu.RUnlock()

	for _, r := range regs {
		b.invoke(ctx, r, evt)
	}
	b.processed.Add(1)
}

func (b *Bus) invoke(ctx context.Context, r registration, evt Event) {
	defer func() {
		if rec := recover(); rec != nil {
			b.failures.Add(1)
			b.log.Error("Event handler panicked",
				logger.StringField("handler", r.name),
				logger.StringField("event_type", string(evt.Type)),
				logger.ErrorField(fmt.Errorf("%v", rec)))
		}
	}()

	if err := r.fn(ctx, evt); err != nil {
		b.failures.Add(1)
		b.log.Error("Event handler failed",
			logger.StringField("handler", r.name),
			logger.StringField("event_type", string(evt.Type)),
			logger.ErrorField(err))
	}
}
