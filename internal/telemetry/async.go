package telemetry

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sells-group/control-assist/internal/model"
)

// DefaultBuffer is the event queue size used when none is given.
const DefaultBuffer = 256

// Async delivers events to the wrapped sink on a background goroutine.
// Record never blocks; events are dropped when the queue is full.
type Async struct {
	next    Sink
	events  chan model.GenerationEvent
	done    chan struct{}
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewAsync starts the delivery goroutine. Call Close to drain and stop it.
func NewAsync(next Sink, buffer int) *Async {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	a := &Async{
		next:   next,
		events: make(chan model.GenerationEvent, buffer),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Record implements Sink. It enqueues ev and returns immediately.
func (a *Async) Record(_ context.Context, ev model.GenerationEvent) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		return nil
	}
	select {
	case a.events <- ev:
	default:
		a.dropped.Add(1)
	}
	return nil
}

// Dropped returns the number of events discarded because the queue was
// full or the sink was closed.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits until queued events are delivered
// or ctx is done.
func (a *Async) Close(ctx context.Context) error {
	a.once.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.events)
		a.mu.Unlock()
	})
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Async) run() {
	defer close(a.done)
	for ev := range a.events {
		if err := a.next.Record(context.Background(), ev); err != nil {
			zap.L().Debug("telemetry: sink failed",
				zap.String("event_id", ev.ID),
				zap.Error(err),
			)
		}
	}
}
